package harness

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
)

// Selector narrows a run to matching suites and cases.
//
// Names are path.Match patterns tested against the suite name (selecting
// the whole suite) and against "suite/case" (selecting one case). Tags match
// suite tags (whole suite) or case tags (that case). A case runs when it
// satisfies the name patterns AND the tags; an empty list matches anything.
type Selector struct {
	Names []string
	Tags  []string
}

// Validate checks that every name pattern is well formed.
func (s Selector) Validate() error {
	for _, p := range s.Names {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("invalid name pattern %q: %w", p, err)
		}
	}
	return nil
}

// Empty reports whether the selector matches everything.
func (s Selector) Empty() bool {
	return len(s.Names) == 0 && len(s.Tags) == 0
}

// String renders the selector for logs and run history.
func (s Selector) String() string {
	var parts []string
	if len(s.Names) > 0 {
		parts = append(parts, "names="+strings.Join(s.Names, ","))
	}
	if len(s.Tags) > 0 {
		parts = append(parts, "tags="+strings.Join(s.Tags, ","))
	}
	return strings.Join(parts, " ")
}

func (s Selector) matchesName(suite *Suite, c *Case) bool {
	if len(s.Names) == 0 {
		return true
	}
	for _, p := range s.Names {
		if ok, _ := path.Match(p, suite.Name); ok {
			return true
		}
		if ok, _ := path.Match(p, suite.Name+"/"+c.Name); ok {
			return true
		}
	}
	return false
}

func (s Selector) matchesTags(suite *Suite, c *Case) bool {
	if len(s.Tags) == 0 {
		return true
	}
	for _, tag := range s.Tags {
		if slices.Contains(suite.Tags, tag) || slices.Contains(c.Tags, tag) {
			return true
		}
	}
	return false
}

// Registry holds suites in registration order. Registration order is
// execution order.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	suites []*Suite
	names  map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register adds s. It fails with *DuplicateNameError if the suite name is
// taken or if s repeats a case name.
func (r *Registry) Register(s *Suite) error {
	if s == nil || s.Name == "" {
		return fmt.Errorf("register: suite name is required")
	}
	if err := checkCaseNames(s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.names[s.Name]; taken {
		return &DuplicateNameError{Kind: "suite", Name: s.Name}
	}
	r.names[s.Name] = struct{}{}
	r.suites = append(r.suites, s)
	return nil
}

// Suites returns all registered suites in registration order.
func (r *Registry) Suites() []*Suite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.suites)
}

// Select returns the suites matching sel, each reduced to its matching
// cases. Suites with no matching case are left out. The returned suites
// share their cases with the registry.
func (r *Registry) Select(sel Selector) []*Suite {
	var out []*Suite
	for _, s := range r.Suites() {
		if sel.Empty() {
			out = append(out, s)
			continue
		}
		var cases []*Case
		for _, c := range s.Cases {
			if sel.matchesName(s, c) && sel.matchesTags(s, c) {
				cases = append(cases, c)
			}
		}
		if len(cases) == 0 {
			continue
		}
		narrowed := *s
		narrowed.Cases = cases
		out = append(out, &narrowed)
	}
	return out
}

// Run executes the suites matching sel with runner.
func (r *Registry) Run(ctx context.Context, runner *Runner, sel Selector) (*Report, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	return runner.Run(ctx, r.Select(sel))
}

func checkNames(suites []*Suite) error {
	seen := make(map[string]struct{}, len(suites))
	for _, s := range suites {
		if s == nil {
			return fmt.Errorf("run: nil suite")
		}
		if _, dup := seen[s.Name]; dup {
			return &DuplicateNameError{Kind: "suite", Name: s.Name}
		}
		seen[s.Name] = struct{}{}
		if err := checkCaseNames(s); err != nil {
			return err
		}
	}
	return nil
}

func checkCaseNames(s *Suite) error {
	seen := make(map[string]struct{}, len(s.Cases))
	for _, c := range s.Cases {
		if _, dup := seen[c.Name]; dup {
			return &DuplicateNameError{Kind: "case", Name: c.Name, Suite: s.Name}
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}
