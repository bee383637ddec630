package resource

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	rterrors "github.com/wippyai/ownership/errors"
	"github.com/wippyai/ownership/rc"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func insert[T any](t *testing.T, table *Table[T], typeID uint32, v T) Handle {
	t.Helper()
	s, err := rc.New(v)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h, err := table.Insert(typeID, s)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !s.Empty() {
		t.Fatal("Insert should leave the source owner empty")
	}
	return h
}

func TestTable_Basic(t *testing.T) {
	table := NewTable[string]()

	h := insert(t, table, 1, "test")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	// Get
	s, err := table.Get(h)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *s.Get() != "test" {
		t.Fatalf("Expected 'test', got %v", *s.Get())
	}
	if s.UseCount() != 2 {
		t.Fatalf("Expected UseCount 2, got %d", s.UseCount())
	}
	s.Release()

	// GetTyped with correct type
	s, err = table.GetTyped(h, 1)
	if err != nil {
		t.Fatalf("GetTyped with correct type failed: %v", err)
	}
	s.Release()

	// GetTyped with wrong type
	if _, err = table.GetTyped(h, 2); !rterrors.HasKind(err, rterrors.KindInvalidInput) {
		t.Fatalf("GetTyped with wrong type should fail, got %v", err)
	}

	if typeID, ok := table.TypeID(h); !ok || typeID != 1 {
		t.Fatalf("TypeID = %d, %v", typeID, ok)
	}

	// Remove
	if err := table.Remove(h); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
	if _, err := table.Get(h); !rterrors.HasKind(err, rterrors.KindNotFound) {
		t.Fatalf("Expected not found after Remove, got %v", err)
	}
}

func TestTable_InsertEmpty(t *testing.T) {
	table := NewTable[int]()
	if _, err := table.Insert(1, &rc.Shared[int]{}); err == nil {
		t.Fatal("Expected error inserting an empty owner")
	}
	if _, err := table.Insert(1, nil); err == nil {
		t.Fatal("Expected error inserting a nil owner")
	}
}

func TestTable_RemoveKeepsOutsideOwners(t *testing.T) {
	table := NewTable[*dropCounter]()
	d := &dropCounter{}
	h := insert(t, table, 1, d)

	s, err := table.Get(h)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	w, err := table.Observe(h)
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	if err := table.Remove(h); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if d.count != 0 {
		t.Fatal("payload destroyed while an outside owner is live")
	}
	if w.Expired() {
		t.Fatal("weak handle expired while an outside owner is live")
	}

	s.Release()
	if d.count != 1 {
		t.Fatalf("Expected Drop() to be called once, called %d times", d.count)
	}
	if !w.Expired() {
		t.Fatal("weak handle should expire with the last owner")
	}
	w.Release()
}

func TestTable_Borrow(t *testing.T) {
	table := NewTable[int]()
	h := insert(t, table, 1, 100)

	for i := 0; i < 3; i++ {
		p, err := table.Borrow(h)
		if err != nil {
			t.Fatalf("Borrow %d failed: %v", i, err)
		}
		if *p != 100 {
			t.Fatalf("Expected 100, got %d", *p)
		}
	}

	err := table.Remove(h)
	if !errors.Is(err, rterrors.ErrBorrowed) {
		t.Fatalf("Remove should fail with outstanding borrows, got %v", err)
	}

	entries := table.Entries()
	if len(entries) != 1 || entries[0].Borrows != 3 || entries[0].UseCount != 1 {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	for i := 0; i < 3; i++ {
		if err := table.ReturnBorrow(h); err != nil {
			t.Fatalf("ReturnBorrow %d failed: %v", i, err)
		}
	}
	if err := table.ReturnBorrow(h); err == nil {
		t.Fatal("ReturnBorrow without a borrow should fail")
	}

	if err := table.Remove(h); err != nil {
		t.Fatalf("Remove should succeed after returning borrows: %v", err)
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable[string]()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := insert(t, table, 1, "test")
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated || obs.events[0].Handle != h {
		t.Fatalf("unexpected event %+v", obs.events[0])
	}

	if _, err := table.Borrow(h); err != nil {
		t.Fatal(err)
	}
	if err := table.ReturnBorrow(h); err != nil {
		t.Fatal(err)
	}
	if err := table.Remove(h); err != nil {
		t.Fatal(err)
	}

	want := []EventType{EventCreated, EventBorrowed, EventBorrowReturned, EventDropped}
	if len(obs.events) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(obs.events))
	}
	for i, typ := range want {
		if obs.events[i].Type != typ {
			t.Fatalf("event %d: expected %s, got %s", i, typ, obs.events[i].Type)
		}
	}

	// Unsubscribe
	table.Unsubscribe(obs)
	insert(t, table, 1, "test2")
	if len(obs.events) != len(want) {
		t.Fatal("Should not receive events after Unsubscribe")
	}
}

func TestTable_Clear(t *testing.T) {
	table := NewTable[string]()

	insert(t, table, 1, "a")
	h := insert(t, table, 1, "b")
	insert(t, table, 1, "c")

	if table.Len() != 3 {
		t.Fatal("Expected Len() == 3")
	}

	if _, err := table.Borrow(h); err != nil {
		t.Fatal(err)
	}
	table.Clear()

	if table.Len() != 1 {
		t.Fatalf("Expected borrowed handle to survive Clear, Len() = %d", table.Len())
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable[*dropCounter]()
	d1, d2 := &dropCounter{}, &dropCounter{}

	insert(t, table, 1, d1)
	h := insert(t, table, 1, d2)
	if _, err := table.Borrow(h); err != nil {
		t.Fatal(err)
	}

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if d1.count != 1 || d2.count != 1 {
		t.Fatalf("Expected every payload dropped once, got %d and %d", d1.count, d2.count)
	}
	if err := table.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	s, _ := rc.New(&dropCounter{})
	if _, err := table.Insert(1, s); !errors.Is(err, rterrors.ErrClosed) {
		t.Fatalf("Expected ErrClosed after Close, got %v", err)
	}
	if _, err := table.Get(h); !errors.Is(err, rterrors.ErrClosed) {
		t.Fatalf("Expected ErrClosed from Get, got %v", err)
	}
	s.Release()
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable[int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s, err := rc.Allocate(rc.Options{Synchronized: true}, func(p *int) error {
				*p = id
				return nil
			})
			if err != nil {
				t.Error(err)
				return
			}
			h, err := table.Insert(1, s)
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := table.Borrow(h); err != nil {
				t.Error(err)
			}
			if err := table.ReturnBorrow(h); err != nil {
				t.Error(err)
			}
			if err := table.Remove(h); err != nil {
				t.Error(err)
			}
		}(i)
	}

	wg.Wait()
	if table.Len() != 0 {
		t.Fatalf("Expected empty table, got %d", table.Len())
	}
}

func TestTable_ConcurrentGetDefaultCounts(t *testing.T) {
	d := &dropCounter{}
	s, err := rc.Adopt(d)
	if err != nil {
		t.Fatalf("Adopt failed: %v", err)
	}
	table := NewTable[dropCounter]()
	h, err := table.Insert(1, s)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	const workers, rounds = 8, 500
	owners := make([][]*rc.Shared[dropCounter], workers)
	watchers := make([][]*rc.Weak[dropCounter], workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				o, err := table.Get(h)
				if err != nil {
					t.Error(err)
					return
				}
				owners[i] = append(owners[i], o)
				typed, err := table.GetTyped(h, 1)
				if err != nil {
					t.Error(err)
					return
				}
				owners[i] = append(owners[i], typed)
				w, err := table.Observe(h)
				if err != nil {
					t.Error(err)
					return
				}
				watchers[i] = append(watchers[i], w)
			}
		}(i)
	}
	wg.Wait()

	entries := table.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if want := 1 + 2*workers*rounds; entries[0].UseCount != want {
		t.Fatalf("UseCount = %d, want %d", entries[0].UseCount, want)
	}
	if want := workers * rounds; entries[0].WeakCount != want {
		t.Fatalf("WeakCount = %d, want %d", entries[0].WeakCount, want)
	}

	for i := range owners {
		for _, o := range owners[i] {
			o.Release()
		}
	}
	if err := table.Remove(h); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if d.count != 1 {
		t.Fatalf("Expected exactly one drop, got %d", d.count)
	}
	for i := range watchers {
		for _, w := range watchers[i] {
			if !w.Expired() {
				t.Fatal("Observer outlived the payload")
			}
			w.Release()
		}
	}
}

func TestTable_ClearSkipsLateBorrow(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rc.SetLogger(zap.New(core))
	t.Cleanup(func() { rc.SetLogger(nil) })

	table := NewTable[int]()
	first := insert(t, table, 1, 10)
	second := insert(t, table, 1, 20)

	table.Subscribe(ObserverFunc(func(e Event) {
		if e.Type == EventDropped && e.Handle == first {
			if _, err := table.Borrow(second); err != nil {
				t.Errorf("Borrow failed: %v", err)
			}
		}
	}))

	table.Clear()
	if table.Len() != 1 {
		t.Fatalf("Expected the borrowed handle to survive, Len = %d", table.Len())
	}
	skipped := logs.FilterMessage("clear skipped handle").All()
	if len(skipped) != 1 {
		t.Fatalf("Expected one skip log, got %d", len(skipped))
	}
	if got := skipped[0].ContextMap()["handle"]; got != uint32(second) {
		t.Fatalf("Logged handle = %v, want %d", got, second)
	}

	if err := table.ReturnBorrow(second); err != nil {
		t.Fatalf("ReturnBorrow failed: %v", err)
	}
	table.Clear()
	if table.Len() != 0 {
		t.Fatalf("Expected empty table, got %d", table.Len())
	}
}
