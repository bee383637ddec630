package playground

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/wippyai/ownership/rc"
)

// Styles used when rendering. The zero Styles renders plain text.
type Styles struct {
	Title   lipgloss.Style
	Command lipgloss.Style
	Result  lipgloss.Style
	Event   lipgloss.Style
	Dropped lipgloss.Style
	Error   lipgloss.Style
	Help    lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Expired lipgloss.Style
}

// ColorStyles returns the styles used on color terminals.
func ColorStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		Command: lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98")),
		Result:  lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90")),
		Event:   lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		Dropped: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1),
		Cell:    lipgloss.NewStyle().Padding(0, 1),
		Expired: lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Padding(0, 1),
	}
}

// PlainStyles returns styles without colors.
func PlainStyles() Styles {
	cell := lipgloss.NewStyle().Padding(0, 1)
	return Styles{Header: cell, Cell: cell, Expired: cell}
}

// Renderer formats session output.
type Renderer struct {
	styles Styles
}

// NewRenderer returns a renderer using color styles if color is set.
func NewRenderer(color bool) *Renderer {
	if color {
		return &Renderer{styles: ColorStyles()}
	}
	return &Renderer{styles: PlainStyles()}
}

// Styles returns the renderer's styles.
func (r *Renderer) Styles() Styles { return r.styles }

// Step renders one executed command with its block events.
func (r *Renderer) Step(step Step) string {
	var b strings.Builder
	b.WriteString(r.styles.Command.Render(fmt.Sprintf("%3d  %s", step.Line, step.Command)))
	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(r.styles.Result.Render(step.Message))
	}
	for _, e := range step.Events {
		b.WriteString("\n     ")
		b.WriteString(r.styles.Event.Render(formatEvent(e)))
	}
	for _, name := range step.Dropped {
		b.WriteString("\n     ")
		b.WriteString(r.styles.Dropped.Render("dropped " + name))
	}
	return b.String()
}

// Rows renders the bound names as a table.
func (r *Renderer) Rows(rows []Row) string {
	if len(rows) == 0 {
		return r.styles.Help.Render("(no bindings)")
	}
	data := make([][]string, len(rows))
	for i, row := range rows {
		handle := "-"
		if row.Kind == BindStrong {
			handle = strconv.FormatUint(uint64(row.Handle), 10)
		}
		data[i] = []string{
			row.Name,
			row.Kind.String(),
			handle,
			row.Object,
			strconv.FormatInt(row.Value, 10),
			strconv.Itoa(row.UseCount),
			strconv.Itoa(row.WeakCount),
			strconv.FormatUint(uint64(row.Borrows), 10),
			row.State,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("name", "kind", "handle", "object", "value", "use", "weak", "borrows", "state").
		Rows(data...).
		StyleFunc(func(i, _ int) lipgloss.Style {
			if i == table.HeaderRow {
				return r.styles.Header
			}
			if i >= 0 && i < len(rows) && rows[i].State == "expired" {
				return r.styles.Expired
			}
			return r.styles.Cell
		})
	return t.Render()
}

// Stats renders block totals.
func (r *Renderer) Stats(st Stats) string {
	return r.styles.Help.Render(fmt.Sprintf(
		"memory %s  blocks allocated %d  payloads destroyed %d  blocks released %d  bytes in use %d",
		st.Memory, st.Allocated, st.Destroyed, st.Released, st.LiveBytes))
}

// Error renders a failure.
func (r *Renderer) Error(err error) string {
	return r.styles.Error.Render("error: " + err.Error())
}

func formatEvent(e rc.Event) string {
	return fmt.Sprintf("%s %s block %s @%d (%d bytes)", e.Type, e.Kind, e.GoType, e.Addr, e.Size)
}
