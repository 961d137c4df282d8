package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/shopcheck/internal/harness"
	"github.com/roach88/shopcheck/suites"
)

// LoadMode controls how errors are handled during suite loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll checks every file before returning.
	LoadModeCollectAll
)

// FileResult is the outcome of loading one suite file.
type FileResult struct {
	File  string `json:"file"`
	Suite string `json:"suite,omitempty"`
	Cases int    `json:"cases,omitempty"`
	Error string `json:"error,omitempty"`
}

// LoadResult contains the suites loaded from a set of paths.
type LoadResult struct {
	Registry *harness.Registry
	Files    []FileResult
	Bundled  bool // no paths were given; the bundled suites were loaded
}

// LoadError represents an error that occurred during suite loading.
type LoadError struct {
	Code    string
	Message string
	File    string
	Err     error
}

func (e *LoadError) Error() string {
	if e.File != "" && !strings.Contains(e.Message, e.File) {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// suiteSource is one file to load, from disk or from the bundled suites.
type suiteSource struct {
	name string
	read func() ([]byte, error)
}

// LoadSuites parses the suite files under paths into a registry. With no
// paths the bundled SauceDemo suites are loaded. A directory contributes
// its *.yaml and *.yml files in lexical order.
//
// In LoadModeFailFast the first error ends loading and the result is nil.
// In LoadModeCollectAll every file is checked and the result lists each
// file's outcome; only valid suites are registered.
func LoadSuites(paths []string, mode LoadMode) (*LoadResult, []error) {
	sources, err := collectSources(paths)
	if err != nil {
		return nil, []error{err}
	}
	if len(sources) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoSuites, Message: fmt.Sprintf("no suite files found in %s", strings.Join(paths, ", "))}}
	}

	result := &LoadResult{Registry: harness.NewRegistry(), Bundled: len(paths) == 0}
	var errs []error
	for _, src := range sources {
		fr := FileResult{File: src.name}
		s, err := parseSource(src)
		if err == nil {
			err = register(result.Registry, s)
		}
		if err != nil {
			fr.Error = err.Error()
			result.Files = append(result.Files, fr)
			errs = append(errs, err)
			if mode == LoadModeFailFast {
				return nil, errs
			}
			continue
		}
		fr.Suite = s.Name
		fr.Cases = len(s.Cases)
		result.Files = append(result.Files, fr)
	}
	return result, errs
}

func parseSource(src suiteSource) (*harness.Suite, error) {
	data, err := src.read()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), File: src.name, Err: err}
	}
	s, err := harness.ParseSuite(data, src.name)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidSuite, Message: err.Error(), File: src.name, Err: err}
	}
	return s, nil
}

func register(reg *harness.Registry, s *harness.Suite) error {
	err := reg.Register(s)
	if err == nil {
		return nil
	}
	code := ErrCodeInvalidSuite
	var dup *harness.DuplicateNameError
	if errors.As(err, &dup) {
		code = ErrCodeDuplicate
	}
	return &LoadError{Code: code, Message: err.Error(), File: s.Source, Err: err}
}

func collectSources(paths []string) ([]suiteSource, error) {
	if len(paths) == 0 {
		return fsSources(suites.FS(), suites.Dir)
	}

	var out []suiteSource
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("suite path not found: %s", p), Err: err}
			}
			return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), File: p, Err: err}
		}
		if !info.IsDir() {
			out = append(out, fileSource(p))
			continue
		}

		names, err := harness.SuiteFiles(os.DirFS(p), ".")
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), File: p, Err: err}
		}
		for _, name := range names {
			out = append(out, fileSource(filepath.Join(p, filepath.FromSlash(name))))
		}
	}
	return out, nil
}

func fileSource(p string) suiteSource {
	return suiteSource{name: p, read: func() ([]byte, error) { return os.ReadFile(p) }}
}

func fsSources(fsys fs.FS, dir string) ([]suiteSource, error) {
	names, err := harness.SuiteFiles(fsys, dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Err: err}
	}
	out := make([]suiteSource, 0, len(names))
	for _, name := range names {
		out = append(out, suiteSource{name: name, read: func() ([]byte, error) { return fs.ReadFile(fsys, name) }})
	}
	return out, nil
}
