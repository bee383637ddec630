package rc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/ownership/memory"
	"github.com/wippyai/ownership/rc"
)

func TestLockIffNotExpired(t *testing.T) {
	s, err := rc.New(5)
	require.NoError(t, err)
	w := s.Weak()
	defer w.Release()

	for i := 0; i < 3; i++ {
		require.False(t, w.Expired())
		l := w.Lock()
		require.False(t, l.Empty())
		require.Equal(t, 5, *l.Get())
		require.Equal(t, 2, w.UseCount())
		l.Release()
	}

	s.Release()
	require.True(t, w.Expired())
	l := w.Lock()
	require.NotNil(t, l)
	require.True(t, l.Empty())
	require.Equal(t, 0, w.UseCount())
}

func TestWeakCloneMoveAssign(t *testing.T) {
	alloc := memory.NewCounting(nil)
	s, err := rc.Allocate(rc.Options{Allocator: alloc}, func(p *int) error {
		*p = 1
		return nil
	})
	require.NoError(t, err)

	w1 := s.Weak()
	w2 := w1.Clone()
	require.Equal(t, 2, s.WeakCount())
	require.Equal(t, 2, w1.WeakCount())

	w3 := w2.Move()
	require.True(t, w2.Expired())
	require.Equal(t, 0, w2.WeakCount())
	require.Equal(t, 2, s.WeakCount())

	var w4 rc.Weak[int]
	w4.Assign(w3)
	require.Equal(t, 3, s.WeakCount())

	s.Release()
	require.EqualValues(t, 0, alloc.Frees())

	w1.Release()
	w3.Release()
	require.EqualValues(t, 0, alloc.Frees())
	w4.Reset()
	require.EqualValues(t, 1, alloc.Frees())
}

func TestWeakOutlivesAllStrong(t *testing.T) {
	rec := &rc.Recorder{}
	drops := 0
	s, err := rc.AdoptWith(&tracked{drops: &drops}, nil, rc.Options{Observer: rec})
	require.NoError(t, err)

	w := s.Weak()
	c := s.Clone()
	s.Release()
	c.Release()

	require.Equal(t, 1, rec.Count(rc.EventPayloadDestroyed))
	require.Equal(t, 0, rec.Count(rc.EventBlockReleased))

	w.Release()
	require.Equal(t, 1, rec.Count(rc.EventBlockReleased))
	require.Equal(t, 0, rec.Live())
}

func TestWeakFromEmpty(t *testing.T) {
	var s rc.Shared[int]
	w := s.Weak()
	require.True(t, w.Expired())
	require.True(t, w.Lock().Empty())
	require.True(t, w.Clone().Expired())
	w.Release()
}

func TestAdoptWeak(t *testing.T) {
	alloc := memory.NewCounting(nil)
	drops := 0

	w, err := rc.AdoptWeak(&tracked{drops: &drops}, nil, rc.Options{Allocator: alloc})
	require.NoError(t, err)
	require.True(t, w.Expired())
	require.True(t, w.Lock().Empty(), "a weak-only block never gains an owner")
	require.Equal(t, 1, w.WeakCount())

	c := w.Clone()
	w.Release()
	require.Equal(t, 0, drops)
	require.EqualValues(t, 0, alloc.Frees())

	c.Release()
	require.Equal(t, 1, drops, "payload destroyed with the block")
	require.EqualValues(t, 1, alloc.Frees())
}

func TestAdoptWeakNil(t *testing.T) {
	_, err := rc.AdoptWeak[int](nil, nil, rc.Options{})
	require.Error(t, err)
}
