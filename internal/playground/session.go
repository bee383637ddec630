package playground

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/ownership/errors"
	"github.com/wippyai/ownership/rc"
	"github.com/wippyai/ownership/resource"
)

// objectTypeID is the table type ID of script objects.
const objectTypeID = 1

// Object is the payload scripts create. It can hand out owners of itself.
type Object struct {
	rc.SelfRef[Object]
	onDrop func(*Object)
	Name   string
	Value  int64
}

// Drop reports the destruction to the owning session.
func (o *Object) Drop() {
	if o.onDrop != nil {
		o.onDrop(o)
	}
}

// BindingKind is the kind of handle a script name is bound to.
type BindingKind uint8

const (
	BindStrong BindingKind = iota
	BindWeak
	BindAlias

	bindNone BindingKind = 255
)

func (k BindingKind) String() string {
	switch k {
	case BindStrong:
		return "shared"
	case BindWeak:
		return "weak"
	case BindAlias:
		return "alias"
	}
	return "unknown"
}

// Step is the outcome of one script line.
type Step struct {
	Command string
	Message string
	Events  []rc.Event
	Dropped []string
	Line    int
	// Show asks the caller to render the current state.
	Show bool
}

// Row describes one bound name.
type Row struct {
	Name      string
	Object    string
	State     string
	Kind      BindingKind
	Handle    resource.Handle
	Value     int64
	UseCount  int
	WeakCount int
	Borrows   uint32
}

// Session interprets ownership scripts. Strong names live in a resource
// table; weak names and aliases are held by the session. Not thread-safe.
type Session struct {
	log     *zap.Logger
	source  *Source
	table   *resource.Table[Object]
	rec     *rc.Recorder
	strong  map[string]resource.Handle
	weak    map[string]*rc.Weak[Object]
	alias   map[string]*rc.Shared[int64]
	dropped []string
	opts    rc.Options
	line    int
}

// NewSession creates a session allocating control blocks from src.
func NewSession(src *Source, counts CountsConfig, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	rec := &rc.Recorder{}
	return &Session{
		log:    log,
		source: src,
		table:  resource.NewTable[Object](),
		rec:    rec,
		strong: make(map[string]resource.Handle),
		weak:   make(map[string]*rc.Weak[Object]),
		alias:  make(map[string]*rc.Shared[int64]),
		opts: rc.Options{
			Allocator:    src.Allocator,
			Observer:     rec,
			Synchronized: counts.Synchronized,
		},
	}
}

// Run executes every line of r, calling fn after each command. It stops at
// the first failing line.
func (s *Session) Run(r io.Reader, fn func(Step)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		step, err := s.Exec(scanner.Text())
		if err != nil {
			return err
		}
		if step.Command != "" && fn != nil {
			fn(step)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(errors.PhaseScript, errors.KindInvalidData, err, "read script")
	}
	return nil
}

// Exec runs a single script line. Blank lines and # comments produce an
// empty Step.
func (s *Session) Exec(line string) (Step, error) {
	s.line++
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Step{Line: s.line}, nil
	}

	before := len(s.rec.Events())
	droppedBefore := len(s.dropped)

	cmd, args := fields[0], fields[1:]
	step := Step{Line: s.line, Command: cmd}
	msg, err := s.dispatch(cmd, args, &step)
	if err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) && len(e.Path) == 0 {
			e.Path = []string{"line " + strconv.Itoa(s.line)}
		}
		s.log.Debug("script command failed",
			zap.Int("line", s.line),
			zap.String("command", cmd),
			zap.Error(err))
		return step, err
	}

	step.Message = msg
	step.Events = s.rec.Events()[before:]
	step.Dropped = append([]string(nil), s.dropped[droppedBefore:]...)
	s.log.Debug("script command",
		zap.Int("line", s.line),
		zap.String("command", cmd),
		zap.Int("events", len(step.Events)))
	return step, nil
}

func (s *Session) dispatch(cmd string, args []string, step *Step) (string, error) {
	switch cmd {
	case "new", "adopt":
		if err := s.arity(cmd, args, 2); err != nil {
			return "", err
		}
		v, err := s.parseInt(args[1])
		if err != nil {
			return "", err
		}
		return s.create(cmd, args[0], v)
	case "clone":
		if err := s.arity(cmd, args, 2); err != nil {
			return "", err
		}
		return s.clone(args[0], args[1])
	case "move":
		if err := s.arity(cmd, args, 2); err != nil {
			return "", err
		}
		return s.move(args[0], args[1])
	case "weak":
		if err := s.arity(cmd, args, 2); err != nil {
			return "", err
		}
		return s.observe(args[0], args[1])
	case "lock":
		if err := s.arity(cmd, args, 2); err != nil {
			return "", err
		}
		return s.lock(args[0], args[1])
	case "alias":
		if err := s.arity(cmd, args, 2); err != nil {
			return "", err
		}
		return s.aliasOf(args[0], args[1])
	case "self":
		if err := s.arity(cmd, args, 2); err != nil {
			return "", err
		}
		return s.self(args[0], args[1])
	case "set":
		if err := s.arity(cmd, args, 2); err != nil {
			return "", err
		}
		v, err := s.parseInt(args[1])
		if err != nil {
			return "", err
		}
		return s.set(args[0], v)
	case "release":
		if err := s.arity(cmd, args, 1); err != nil {
			return "", err
		}
		return s.release(args[0])
	case "reset":
		switch len(args) {
		case 1:
			return s.release(args[0])
		case 2:
			return s.resetTo(args[0], args[1])
		}
		return "", s.parseError("reset takes NAME [SOURCE]")
	case "borrow":
		if err := s.arity(cmd, args, 1); err != nil {
			return "", err
		}
		return s.borrow(args[0])
	case "return":
		if err := s.arity(cmd, args, 1); err != nil {
			return "", err
		}
		return s.returnBorrow(args[0])
	case "show":
		step.Show = true
		return "", nil
	case "expect":
		return s.expect(args)
	case "try":
		if len(args) == 0 {
			return "", s.parseError("try takes a command")
		}
		msg, err := s.dispatch(args[0], args[1:], step)
		if err == nil {
			return "", s.expectation("expected %q to fail, got %q", args[0], msg)
		}
		return "failed as expected: " + err.Error(), nil
	}
	return "", s.parseError(fmt.Sprintf("unknown command %q", cmd))
}

func (s *Session) create(cmd, name string, v int64) (string, error) {
	var (
		owner *rc.Shared[Object]
		err   error
	)
	if cmd == "new" {
		owner, err = rc.Allocate(s.opts, func(o *Object) error {
			o.Name, o.Value, o.onDrop = name, v, s.onDrop
			return nil
		})
	} else {
		owner, err = rc.AdoptWith(&Object{Name: name, Value: v, onDrop: s.onDrop}, nil, s.opts)
	}
	if err != nil {
		return "", err
	}
	if err := s.rebindStrong(name, owner); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s(%d)", name, cmd, v), nil
}

func (s *Session) clone(dst, src string) (string, error) {
	switch s.kindOf(src) {
	case BindStrong:
		owner, err := s.table.Get(s.strong[src])
		if err != nil {
			return "", err
		}
		if err := s.rebindStrong(dst, owner); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = clone %s (use %d)", dst, src, s.useCount(dst)), nil
	case BindWeak:
		w := s.weak[src].Clone()
		if err := s.free(dst); err != nil {
			w.Release()
			return "", err
		}
		s.weak[dst] = w
		return fmt.Sprintf("%s = clone %s (weak %d)", dst, src, w.WeakCount()), nil
	case BindAlias:
		a := s.alias[src].Clone()
		if err := s.free(dst); err != nil {
			a.Release()
			return "", err
		}
		s.alias[dst] = a
		return fmt.Sprintf("%s = clone %s (use %d)", dst, src, a.UseCount()), nil
	}
	return "", s.unbound(src)
}

func (s *Session) move(dst, src string) (string, error) {
	if dst == src {
		return "", s.parseError("move needs distinct names")
	}
	if s.kindOf(src) == bindNone {
		return "", s.unbound(src)
	}
	if err := s.free(dst); err != nil {
		return "", err
	}
	switch s.kindOf(src) {
	case BindStrong:
		h := s.strong[src]
		owner, err := s.table.Get(h)
		if err != nil {
			return "", err
		}
		if err := s.table.Remove(h); err != nil {
			owner.Release()
			return "", err
		}
		delete(s.strong, src)
		if err := s.bindStrong(dst, owner); err != nil {
			return "", err
		}
	case BindWeak:
		s.weak[dst] = s.weak[src].Move()
		delete(s.weak, src)
	case BindAlias:
		s.alias[dst] = s.alias[src].Move()
		delete(s.alias, src)
	default:
		return "", s.unbound(src)
	}
	return fmt.Sprintf("%s = move %s", dst, src), nil
}

func (s *Session) observe(dst, src string) (string, error) {
	var w *rc.Weak[Object]
	switch s.kindOf(src) {
	case BindStrong:
		var err error
		if w, err = s.table.Observe(s.strong[src]); err != nil {
			return "", err
		}
	case BindWeak:
		w = s.weak[src].Clone()
	case BindAlias:
		return "", errors.Unsupported(errors.PhaseScript, "weak handle of alias "+src)
	default:
		return "", s.unbound(src)
	}
	if err := s.free(dst); err != nil {
		w.Release()
		return "", err
	}
	s.weak[dst] = w
	return fmt.Sprintf("%s = weak %s (weak %d)", dst, src, w.WeakCount()), nil
}

func (s *Session) lock(dst, src string) (string, error) {
	w, ok := s.weak[src]
	if !ok {
		return "", s.invalid(src + " is not a weak handle")
	}
	owner := w.Lock()
	if owner.Empty() {
		return fmt.Sprintf("lock %s: expired, %s not bound", src, dst), nil
	}
	if err := s.rebindStrong(dst, owner); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = lock %s (use %d)", dst, src, s.useCount(dst)), nil
}

func (s *Session) aliasOf(dst, src string) (string, error) {
	h, ok := s.strong[src]
	if !ok {
		return "", s.invalid(src + " is not a shared handle")
	}
	owner, err := s.table.Get(h)
	if err != nil {
		return "", err
	}
	a := rc.Alias(owner, &owner.Get().Value)
	owner.Release()
	if err := s.free(dst); err != nil {
		a.Release()
		return "", err
	}
	s.alias[dst] = a
	return fmt.Sprintf("%s = alias %s.value (use %d)", dst, src, a.UseCount()), nil
}

func (s *Session) self(dst, src string) (string, error) {
	h, ok := s.strong[src]
	if !ok {
		return "", s.invalid(src + " is not a shared handle")
	}
	p, err := s.table.Borrow(h)
	if err != nil {
		return "", err
	}
	self, err := p.Self()
	if rerr := s.table.ReturnBorrow(h); rerr != nil && err == nil {
		self.Release()
		err = rerr
	}
	if err != nil {
		return "", err
	}
	if err := s.rebindStrong(dst, self); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s.self (use %d)", dst, src, s.useCount(dst)), nil
}

func (s *Session) set(name string, v int64) (string, error) {
	switch s.kindOf(name) {
	case BindStrong:
		p, err := s.table.Borrow(s.strong[name])
		if err != nil {
			return "", err
		}
		p.Value = v
		if err := s.table.ReturnBorrow(s.strong[name]); err != nil {
			return "", err
		}
	case BindAlias:
		*s.alias[name].Get() = v
	case BindWeak:
		return "", s.invalid(name + " is a weak handle; lock it first")
	default:
		return "", s.unbound(name)
	}
	return fmt.Sprintf("%s.value = %d", name, v), nil
}

func (s *Session) release(name string) (string, error) {
	if s.kindOf(name) == bindNone {
		return "", s.unbound(name)
	}
	if err := s.free(name); err != nil {
		return "", err
	}
	return "released " + name, nil
}

func (s *Session) resetTo(dst, src string) (string, error) {
	h, ok := s.strong[src]
	if !ok {
		return "", s.invalid(src + " is not a shared handle")
	}
	next, err := s.table.Get(h)
	if err != nil {
		return "", err
	}
	if err := s.rebindStrong(dst, next); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = reset to %s (use %d)", dst, src, s.useCount(dst)), nil
}

func (s *Session) borrow(name string) (string, error) {
	h, ok := s.strong[name]
	if !ok {
		return "", s.invalid(name + " is not a shared handle")
	}
	p, err := s.table.Borrow(h)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("borrowed %s (%s = %d)", name, p.Name, p.Value), nil
}

func (s *Session) returnBorrow(name string) (string, error) {
	h, ok := s.strong[name]
	if !ok {
		return "", s.invalid(name + " is not a shared handle")
	}
	if err := s.table.ReturnBorrow(h); err != nil {
		return "", err
	}
	return "returned " + name, nil
}

// free unbinds name if it is bound, releasing whatever it held.
func (s *Session) free(name string) error {
	if h, ok := s.strong[name]; ok {
		if err := s.table.Remove(h); err != nil {
			return err
		}
		delete(s.strong, name)
	}
	if w, ok := s.weak[name]; ok {
		w.Release()
		delete(s.weak, name)
	}
	if a, ok := s.alias[name]; ok {
		a.Release()
		delete(s.alias, name)
	}
	return nil
}

// rebindStrong frees name and binds it to owner. owner is acquired before
// the old binding goes away, so rebinding a name to its own object is safe.
func (s *Session) rebindStrong(name string, owner *rc.Shared[Object]) error {
	if err := s.free(name); err != nil {
		owner.Release()
		return err
	}
	return s.bindStrong(name, owner)
}

func (s *Session) bindStrong(name string, owner *rc.Shared[Object]) error {
	h, err := s.table.Insert(objectTypeID, owner)
	if err != nil {
		owner.Release()
		return err
	}
	s.strong[name] = h
	return nil
}

func (s *Session) onDrop(o *Object) {
	s.dropped = append(s.dropped, o.Name)
}

// kindOf returns the binding kind of name, or bindNone.
func (s *Session) kindOf(name string) BindingKind {
	if _, ok := s.strong[name]; ok {
		return BindStrong
	}
	if _, ok := s.weak[name]; ok {
		return BindWeak
	}
	if _, ok := s.alias[name]; ok {
		return BindAlias
	}
	return bindNone
}

func (s *Session) useCount(name string) int {
	for _, e := range s.table.Entries() {
		if e.Handle == s.strong[name] {
			return e.UseCount
		}
	}
	return 0
}

// Snapshot describes every bound name, sorted by name.
func (s *Session) Snapshot() []Row {
	entries := make(map[resource.Handle]resource.Entry)
	for _, e := range s.table.Entries() {
		entries[e.Handle] = e
	}

	var rows []Row
	for name, h := range s.strong {
		row := Row{Name: name, Kind: BindStrong, Handle: h, State: "alive"}
		if e, ok := entries[h]; ok {
			row.UseCount, row.WeakCount, row.Borrows = e.UseCount, e.WeakCount, e.Borrows
		}
		if p, err := s.table.Borrow(h); err == nil {
			row.Object, row.Value = p.Name, p.Value
			_ = s.table.ReturnBorrow(h)
		}
		rows = append(rows, row)
	}
	for name, w := range s.weak {
		row := Row{Name: name, Kind: BindWeak, UseCount: w.UseCount(), WeakCount: w.WeakCount(), State: "expired"}
		if l := w.Lock(); !l.Empty() {
			row.State = "alive"
			row.Object, row.Value = l.Get().Name, l.Get().Value
			l.Release()
		}
		rows = append(rows, row)
	}
	for name, a := range s.alias {
		rows = append(rows, Row{
			Name:      name,
			Kind:      BindAlias,
			Value:     *a.Get(),
			UseCount:  a.UseCount(),
			WeakCount: a.WeakCount(),
			State:     "alive",
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

// Stats reports control block and allocation totals.
type Stats struct {
	Memory    string
	Allocated int
	Destroyed int
	Released  int
	LiveBytes int64
}

// Stats returns the session's block totals.
func (s *Session) Stats() Stats {
	st := s.source.Counting.Stats()
	return Stats{
		Memory:    s.source.Name(),
		Allocated: s.rec.Count(rc.EventAllocated),
		Destroyed: s.rec.Count(rc.EventPayloadDestroyed),
		Released:  s.rec.Count(rc.EventBlockReleased),
		LiveBytes: st.BytesInUse,
	}
}

// Close releases every binding.
func (s *Session) Close() error {
	for name, w := range s.weak {
		w.Release()
		delete(s.weak, name)
	}
	for name, a := range s.alias {
		a.Release()
		delete(s.alias, name)
	}
	clear(s.strong)
	return s.table.Close()
}

func (s *Session) arity(cmd string, args []string, n int) error {
	if len(args) != n {
		return s.parseError(fmt.Sprintf("%s takes %d argument(s), got %d", cmd, n, len(args)))
	}
	return nil
}

func (s *Session) parseInt(v string) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, s.parseError(fmt.Sprintf("invalid integer %q", v))
	}
	return n, nil
}

func (s *Session) parseError(detail string) error {
	return errors.ParseFailed(s.line, detail)
}

func (s *Session) unbound(name string) error {
	return errors.NotFound(errors.PhaseScript, "name", name)
}

func (s *Session) invalid(detail string) error {
	return errors.InvalidInput(errors.PhaseScript, detail)
}

func (s *Session) expect(args []string) (string, error) {
	if len(args) < 2 {
		return "", s.parseError("expect takes NAME PROPERTY [VALUE] or destroyed|blocks|frees N")
	}

	var got int64
	switch args[0] {
	case "destroyed":
		got = int64(s.rec.Count(rc.EventPayloadDestroyed))
	case "blocks":
		got = int64(s.rec.Live())
	case "frees":
		got = s.source.Counting.Frees()
	default:
		return s.expectName(args[0], args[1:])
	}

	if len(args) != 2 {
		return "", s.parseError("expect " + args[0] + " takes one value")
	}
	want, err := s.parseInt(args[1])
	if err != nil {
		return "", err
	}
	if got != want {
		return "", s.expectation("%s = %d, want %d", args[0], got, want)
	}
	return fmt.Sprintf("ok: %s = %d", args[0], got), nil
}

func (s *Session) expectName(name string, args []string) (string, error) {
	row, ok := s.row(name)
	if !ok {
		return "", s.unbound(name)
	}

	switch args[0] {
	case "expired", "alive":
		if len(args) != 1 {
			return "", s.parseError("expect NAME " + args[0] + " takes no value")
		}
		if row.State != args[0] {
			return "", s.expectation("%s is %s, want %s", name, row.State, args[0])
		}
		return fmt.Sprintf("ok: %s %s", name, row.State), nil
	case "use", "weak", "value":
		if len(args) != 2 {
			return "", s.parseError("expect NAME " + args[0] + " takes a value")
		}
		want, err := s.parseInt(args[1])
		if err != nil {
			return "", err
		}
		got := row.Value
		switch args[0] {
		case "use":
			got = int64(row.UseCount)
		case "weak":
			got = int64(row.WeakCount)
		}
		if got != want {
			return "", s.expectation("%s %s = %d, want %d", name, args[0], got, want)
		}
		return fmt.Sprintf("ok: %s %s = %d", name, args[0], got), nil
	}
	return "", s.parseError(fmt.Sprintf("unknown property %q", args[0]))
}

func (s *Session) row(name string) (Row, bool) {
	for _, r := range s.Snapshot() {
		if r.Name == name {
			return r, true
		}
	}
	return Row{}, false
}

func (s *Session) expectation(format string, args ...any) error {
	return errors.New(errors.PhaseScript, errors.KindExpectation).
		Detail(format, args...).
		Build()
}
