package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/shopcheck/internal/target"
)

// Operation names used by FakeTarget for call recording, failure injection
// and hangs.
const (
	OpNavigate       = "navigate"
	OpFill           = "fill"
	OpClick          = "click"
	OpSelect         = "select"
	OpReadText       = "read_text"
	OpReadTexts      = "read_texts"
	OpReadVisibility = "read_visibility"
	OpReadCount      = "read_count"
	OpReadURL        = "read_url"
	OpWaitStable     = "wait_stable"
)

// Element is a fake DOM node set. Texts holds one entry per matching node.
type Element struct {
	Texts  []string
	Hidden bool
}

// FakeTarget is an in-memory Target for tests.
//
// Tests script page behavior with OnNavigate and OnClick handlers that
// mutate the fake's elements. Every operation is recorded in Calls, and any
// operation can be made to fail (Fail) or to block until its context
// expires (Hang).
//
// Thread-safety: all methods are safe for concurrent use. Handlers run
// without the internal lock held and may call any method.
type FakeTarget struct {
	mu         sync.Mutex
	url        string
	elements   map[target.Locator]*Element
	fields     map[target.Locator]string
	options    map[target.Locator]string
	onClick    map[target.Locator]func(*FakeTarget) error
	onNavigate func(*FakeTarget, string) error
	failures   map[string]error
	hangs      map[string]bool
	calls      []string
	closed     bool
	resets     int
}

// NewFakeTarget creates an empty page at about:blank.
func NewFakeTarget() *FakeTarget {
	ft := &FakeTarget{}
	ft.clear()
	return ft
}

func (f *FakeTarget) clear() {
	f.url = "about:blank"
	f.elements = make(map[target.Locator]*Element)
	f.fields = make(map[target.Locator]string)
	f.options = make(map[target.Locator]string)
	f.onClick = make(map[target.Locator]func(*FakeTarget) error)
	f.onNavigate = nil
	f.failures = make(map[string]error)
	f.hangs = make(map[string]bool)
}

// OnNavigate installs the navigation handler. Without one, Navigate only
// updates the URL.
func (f *FakeTarget) OnNavigate(fn func(ft *FakeTarget, url string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onNavigate = fn
}

// OnClick installs a click handler for loc.
func (f *FakeTarget) OnClick(loc target.Locator, fn func(ft *FakeTarget) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onClick[loc] = fn
}

// Fail makes every later call of op return err.
func (f *FakeTarget) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// Hang makes every later call of op block until its context is done.
func (f *FakeTarget) Hang(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangs[op] = true
}

// SetURL sets the current URL without recording a call.
func (f *FakeTarget) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
}

// Show adds (or replaces) a visible element set at loc, one node per text.
// Without texts a single empty node is added.
func (f *FakeTarget) Show(loc target.Locator, texts ...string) {
	if len(texts) == 0 {
		texts = []string{""}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[loc] = &Element{Texts: append([]string(nil), texts...)}
}

// ClearPage removes every element, field value, selection and click
// handler, as a page load would. The navigation handler stays.
func (f *FakeTarget) ClearPage() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements = make(map[target.Locator]*Element)
	f.fields = make(map[target.Locator]string)
	f.options = make(map[target.Locator]string)
	f.onClick = make(map[target.Locator]func(*FakeTarget) error)
}

// Hide keeps the elements at loc in the DOM but makes them invisible.
func (f *FakeTarget) Hide(loc target.Locator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if el, ok := f.elements[loc]; ok {
		el.Hidden = true
	}
}

// Remove deletes the elements at loc.
func (f *FakeTarget) Remove(loc target.Locator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.elements, loc)
}

// Field returns the value last filled into loc.
func (f *FakeTarget) Field(loc target.Locator) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields[loc]
}

// Selected returns the option last selected in loc.
func (f *FakeTarget) Selected(loc target.Locator) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.options[loc]
}

// Calls returns the recorded operations in order, e.g. "click #login".
func (f *FakeTarget) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Closed reports whether Close was called.
func (f *FakeTarget) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Resets returns how many times the target was reset for reuse.
func (f *FakeTarget) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

// enter records the call and applies injected failures and hangs.
func (f *FakeTarget) enter(ctx context.Context, op, detail string) error {
	f.mu.Lock()
	call := op
	if detail != "" {
		call = op + " " + detail
	}
	f.calls = append(f.calls, call)
	closed := f.closed
	err := f.failures[op]
	hang := f.hangs[op]
	f.mu.Unlock()

	if closed {
		return target.Unavailable(op, fmt.Errorf("fake target closed"))
	}
	if err != nil {
		return err
	}
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return ctx.Err()
}

func (f *FakeTarget) Navigate(ctx context.Context, url string) error {
	if err := f.enter(ctx, OpNavigate, url); err != nil {
		return err
	}
	f.mu.Lock()
	f.url = url
	handler := f.onNavigate
	f.mu.Unlock()
	if handler != nil {
		return handler(f, url)
	}
	return nil
}

func (f *FakeTarget) Fill(ctx context.Context, loc target.Locator, value string) error {
	if err := f.enter(ctx, OpFill, string(loc)); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.elements[loc]; !ok {
		return fmt.Errorf("fill: no element matches %q", loc)
	}
	f.fields[loc] = value
	return nil
}

func (f *FakeTarget) Click(ctx context.Context, loc target.Locator) error {
	if err := f.enter(ctx, OpClick, string(loc)); err != nil {
		return err
	}
	f.mu.Lock()
	el, ok := f.elements[loc]
	handler := f.onClick[loc]
	f.mu.Unlock()
	if !ok || el.Hidden {
		return fmt.Errorf("click: no visible element matches %q", loc)
	}
	if handler != nil {
		return handler(f)
	}
	return nil
}

func (f *FakeTarget) SelectOption(ctx context.Context, loc target.Locator, value string) error {
	if err := f.enter(ctx, OpSelect, string(loc)); err != nil {
		return err
	}
	f.mu.Lock()
	_, ok := f.elements[loc]
	if ok {
		f.options[loc] = value
	}
	handler := f.onClick[loc]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("select: no element matches %q", loc)
	}
	if handler != nil {
		return handler(f)
	}
	return nil
}

func (f *FakeTarget) ReadText(ctx context.Context, loc target.Locator) (string, error) {
	if err := f.enter(ctx, OpReadText, string(loc)); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[loc]
	if !ok || len(el.Texts) == 0 {
		return "", fmt.Errorf("read text: no element matches %q", loc)
	}
	return el.Texts[0], nil
}

func (f *FakeTarget) ReadTexts(ctx context.Context, loc target.Locator) ([]string, error) {
	if err := f.enter(ctx, OpReadTexts, string(loc)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[loc]
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), el.Texts...), nil
}

func (f *FakeTarget) ReadVisibility(ctx context.Context, loc target.Locator) (bool, error) {
	if err := f.enter(ctx, OpReadVisibility, string(loc)); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[loc]
	return ok && !el.Hidden, nil
}

func (f *FakeTarget) ReadCount(ctx context.Context, loc target.Locator) (int, error) {
	if err := f.enter(ctx, OpReadCount, string(loc)); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if el, ok := f.elements[loc]; ok {
		return len(el.Texts), nil
	}
	return 0, nil
}

func (f *FakeTarget) ReadURL(ctx context.Context) (string, error) {
	if err := f.enter(ctx, OpReadURL, ""); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *FakeTarget) WaitStable(ctx context.Context) error {
	return f.enter(ctx, OpWaitStable, "")
}

func (f *FakeTarget) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// ReusableFakeTarget is a FakeTarget that a target.Pool may reuse.
type ReusableFakeTarget struct {
	*FakeTarget
	setup func(*FakeTarget)
}

// Reset wipes all page state and reapplies the factory setup.
func (r *ReusableFakeTarget) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.clear()
	r.calls = nil
	r.resets++
	r.mu.Unlock()
	if r.setup != nil {
		r.setup(r.FakeTarget)
	}
	return nil
}

// FakeFactory creates FakeTargets and remembers every target it created.
type FakeFactory struct {
	// Setup, if set, scripts each new target.
	Setup func(ft *FakeTarget)
	// Reusable makes created targets implement target.Resetter.
	Reusable bool
	// Err, if set, is returned by NewTarget instead of a target.
	Err error

	mu      sync.Mutex
	created []*FakeTarget
	closed  bool
}

// NewTarget implements target.Factory.
func (f *FakeFactory) NewTarget(ctx context.Context) (target.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	ft := NewFakeTarget()
	if f.Setup != nil {
		f.Setup(ft)
	}
	f.created = append(f.created, ft)
	if f.Reusable {
		return &ReusableFakeTarget{FakeTarget: ft, setup: f.Setup}, nil
	}
	return ft, nil
}

// Close implements target.Factory.
func (f *FakeFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Created returns every target created so far, in creation order.
func (f *FakeFactory) Created() []*FakeTarget {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeTarget(nil), f.created...)
}

// Closed reports whether the factory was closed.
func (f *FakeFactory) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
