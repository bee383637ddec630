package playground

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	rterrors "github.com/wippyai/ownership/errors"
)

func newSession(t *testing.T, cfg MemoryConfig) *Session {
	t.Helper()
	src, err := NewSource(context.Background(), cfg)
	require.NoError(t, err)
	s := NewSession(src, CountsConfig{}, nil)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
		require.NoError(t, src.Close(context.Background()))
	})
	return s
}

func run(t *testing.T, s *Session, script string) []Step {
	t.Helper()
	var steps []Step
	require.NoError(t, s.Run(strings.NewReader(script), func(st Step) {
		steps = append(steps, st)
	}))
	return steps
}

func TestScenarioAdoptWeak(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceHeap})
	steps := run(t, s, `
		adopt a 1
		weak w a
		expect a use 1
		expect a weak 1
		release a
		expect w expired
		expect destroyed 1
		expect frees 0
		lock l w
		release w
		expect frees 1
		expect blocks 0
	`)
	require.Len(t, steps, 12)
	require.Equal(t, []string{"a"}, steps[4].Dropped)
	require.Contains(t, steps[8].Message, "expired")
}

func TestScenarioMakeClone(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceHeap})
	run(t, s, `
		new a 7
		clone b a
		expect a use 2
		expect b value 7
		release a
		expect b use 1
		expect destroyed 0
		release b
		expect destroyed 1
		expect frees 1
	`)
}

func TestAliasAndSet(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceHeap})
	run(t, s, `
		new a 1
		alias v a
		expect v use 2
		set v 42
		expect a value 42
		release a
		expect destroyed 0
		expect v value 42
		release v
		expect destroyed 1
	`)
}

func TestSelfAndTry(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceHeap})
	steps := run(t, s, `
		new a 1
		self s a
		expect a use 2
		try self x missing
		release a
		release s
		expect destroyed 1
	`)
	require.Contains(t, steps[3].Message, "failed as expected")
}

func TestMoveAndReset(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceHeap})
	run(t, s, `
		new a 1
		new b 2
		move c a
		expect c use 1
		try expect a use 1
		reset b c
		expect destroyed 1
		expect b use 2
		reset b b
		expect b use 2
		reset c
		expect b use 1
	`)
}

func TestBorrowBlocksRebind(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceHeap})
	_, err := s.Exec("new a 1")
	require.NoError(t, err)
	_, err = s.Exec("borrow a")
	require.NoError(t, err)

	_, err = s.Exec("release a")
	require.ErrorIs(t, err, rterrors.ErrBorrowed)

	_, err = s.Exec("return a")
	require.NoError(t, err)
	_, err = s.Exec("release a")
	require.NoError(t, err)
}

func TestExpectationFailure(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceHeap})
	err := s.Run(strings.NewReader("new a 1\n\n# comment\nexpect a use 3\n"), nil)
	require.Error(t, err)
	require.True(t, rterrors.HasKind(err, rterrors.KindExpectation))

	var e *rterrors.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, []string{"line 4"}, e.Path)
}

func TestWeakOfAliasUnsupported(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceHeap})
	run(t, s, "new a 1\nalias v a\n")
	_, err := s.Exec("weak w v")
	require.True(t, rterrors.HasKind(err, rterrors.KindUnsupported))
	run(t, s, "expect a use 2\nrelease v\nrelease a\nexpect destroyed 1\n")
}

func TestParseErrors(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceHeap})
	for _, line := range []string{
		"frobnicate a",
		"new a",
		"new a x",
		"reset",
		"expect a",
		"move a a",
	} {
		_, err := s.Exec(line)
		require.Error(t, err, line)
		require.True(t, rterrors.HasKind(err, rterrors.KindInvalidData), line)
	}
}

func TestLinearSource(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceLinear, Pages: 1})
	run(t, s, `
		new a 1
		adopt b 2
		expect blocks 2
		release a
		release b
		expect frees 2
	`)
	require.Equal(t, 0, s.source.Linear.Live())
	require.Equal(t, "linear", s.Stats().Memory)
}

func TestLimitedSource(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceHeap, Limit: 1})
	_, err := s.Exec("new a 1")
	require.True(t, rterrors.HasKind(err, rterrors.KindAllocation))
}

func TestSnapshot(t *testing.T) {
	s := newSession(t, MemoryConfig{Source: SourceHeap})
	run(t, s, `
		new b 2
		weak w b
		alias v b
		borrow b
	`)
	rows := s.Snapshot()
	require.Len(t, rows, 3)

	require.Equal(t, "b", rows[0].Name)
	require.Equal(t, BindStrong, rows[0].Kind)
	require.Equal(t, 2, rows[0].UseCount)
	require.Equal(t, 1, rows[0].WeakCount)
	require.EqualValues(t, 1, rows[0].Borrows)

	require.Equal(t, "v", rows[1].Name)
	require.Equal(t, BindAlias, rows[1].Kind)
	require.EqualValues(t, 2, rows[1].Value)

	require.Equal(t, "w", rows[2].Name)
	require.Equal(t, "alive", rows[2].State)
	require.Equal(t, 2, rows[2].UseCount)
	require.Equal(t, "b", rows[2].Object)

	out := NewRenderer(false).Rows(rows)
	require.Contains(t, out, "shared")
	require.Contains(t, out, "alias")
}
