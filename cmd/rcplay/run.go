package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/ownership/internal/playground"
)

var runCmd = &cobra.Command{
	Use:   "run [script...]",
	Short: "Run ownership scripts",
	Long:  "Run one or more ownership scripts. A script named - is read from stdin.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScripts,
}

func init() {
	runCmd.Flags().Bool("show", false, "render the bindings after every command")
	runCmd.Flags().Bool("quiet", false, "only report failures and totals")
}

func runScripts(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close(cmd.Context())

	show, _ := cmd.Flags().GetBool("show")
	quiet, _ := cmd.Flags().GetBool("quiet")
	out := cmd.OutOrStdout()

	for _, path := range args {
		if err := runScript(e, out, path, show, quiet); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), e.renderer.Error(err))
			return fail("%s failed", path)
		}
	}
	return nil
}

func runScript(e *env, out io.Writer, path string, show, quiet bool) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	s := playground.NewSession(e.source, e.cfg.Counts, e.logger.Named("session"))
	defer s.Close()

	if !quiet {
		fmt.Fprintln(out, e.renderer.Styles().Title.Render(path))
	}
	err := s.Run(r, func(step playground.Step) {
		if quiet {
			return
		}
		fmt.Fprintln(out, e.renderer.Step(step))
		if show || step.Show {
			fmt.Fprintln(out, e.renderer.Rows(s.Snapshot()))
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, e.renderer.Stats(s.Stats()))
	return nil
}
