package harness

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shopcheck/internal/target"
)

// suiteDoc is the YAML form of a Suite.
type suiteDoc struct {
	Suite       string    `yaml:"suite"`
	Description string    `yaml:"description"`
	Tags        []string  `yaml:"tags"`
	Setup       []stepDoc `yaml:"setup"`
	Cases       []caseDoc `yaml:"cases"`
}

type caseDoc struct {
	Name  string    `yaml:"name"`
	Tags  []string  `yaml:"tags"`
	Steps []stepDoc `yaml:"steps"`
}

// stepDoc is one step. Exactly one verb key is set; the schema enforces it.
type stepDoc struct {
	Navigate string  `yaml:"navigate"`
	Fill     string  `yaml:"fill"`
	Click    string  `yaml:"click"`
	Select   string  `yaml:"select"`
	Value    *string `yaml:"value"`

	URL      string  `yaml:"url"`
	Text     string  `yaml:"text"`
	Equals   *string `yaml:"equals"`
	Contains *string `yaml:"contains"`
	Visible  string  `yaml:"visible"`
	Hidden   string  `yaml:"hidden"`
	Count    string  `yaml:"count"`
	Is       *int    `yaml:"is"`
	Order    string  `yaml:"order"`
	Sort     string  `yaml:"sort"`
}

func (d stepDoc) step() (Step, error) {
	value := func() string {
		if d.Value == nil {
			return ""
		}
		return *d.Value
	}

	switch {
	case d.Navigate != "":
		return Navigate(d.Navigate), nil
	case d.Fill != "":
		return Fill(target.Locator(d.Fill), value()), nil
	case d.Click != "":
		return Click(target.Locator(d.Click)), nil
	case d.Select != "":
		return Select(target.Locator(d.Select), value()), nil
	case d.URL != "":
		return ExpectURL(d.URL), nil
	case d.Text != "":
		if d.Contains != nil {
			return ExpectContains(target.Locator(d.Text), *d.Contains), nil
		}
		if d.Equals != nil {
			return ExpectText(target.Locator(d.Text), *d.Equals), nil
		}
		return Step{}, fmt.Errorf("text step %q needs equals or contains", d.Text)
	case d.Visible != "":
		return ExpectVisible(target.Locator(d.Visible)), nil
	case d.Hidden != "":
		return ExpectHidden(target.Locator(d.Hidden)), nil
	case d.Count != "":
		if d.Is == nil {
			return Step{}, fmt.Errorf("count step %q needs is", d.Count)
		}
		return ExpectCount(target.Locator(d.Count), *d.Is), nil
	case d.Order != "":
		switch Mode(d.Sort) {
		case "", ModeNonDecreasing:
			return ExpectNonDecreasing(target.Locator(d.Order)), nil
		case ModeNonIncreasing:
			return ExpectNonIncreasing(target.Locator(d.Order)), nil
		default:
			return Step{}, fmt.Errorf("order step %q: unknown sort %q", d.Order, d.Sort)
		}
	default:
		return Step{}, fmt.Errorf("step has no action or assertion")
	}
}

func buildSteps(docs []stepDoc) ([]Step, error) {
	steps := make([]Step, 0, len(docs))
	for i, d := range docs {
		s, err := d.step()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// ParseSuite decodes one YAML suite document. source names the document in
// errors and is kept as Suite.Source.
//
// The document is checked against the suite schema, decoded strictly
// (unknown keys are rejected) and checked for duplicate case names.
func ParseSuite(data []byte, source string) (*Suite, error) {
	if err := ValidateSuiteDocument(data); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	var doc suiteDoc
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: failed to parse YAML: %w", source, err)
	}

	s := &Suite{
		Name:        doc.Suite,
		Description: doc.Description,
		Tags:        doc.Tags,
		Source:      source,
	}

	if len(doc.Setup) > 0 {
		steps, err := buildSteps(doc.Setup)
		if err != nil {
			return nil, fmt.Errorf("%s: setup: %w", source, err)
		}
		s.Precondition = &Setup{Steps: steps}
	}

	for _, cd := range doc.Cases {
		steps, err := buildSteps(cd.Steps)
		if err != nil {
			return nil, fmt.Errorf("%s: case %q: %w", source, cd.Name, err)
		}
		s.Cases = append(s.Cases, &Case{Name: cd.Name, Tags: cd.Tags, Steps: steps})
	}

	if err := checkCaseNames(s); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return s, nil
}

// SuiteFiles returns the paths of the *.yaml and *.yml files in dir of
// fsys, in lexical order. Subdirectories are not searched.
func SuiteFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !isSuiteFile(e.Name()) {
			continue
		}
		names = append(names, path.Join(dir, e.Name()))
	}
	sort.Strings(names)
	return names, nil
}

// LoadSuitesFS parses the suite files of dir in fsys, in SuiteFiles order.
func LoadSuitesFS(fsys fs.FS, dir string) ([]*Suite, error) {
	names, err := SuiteFiles(fsys, dir)
	if err != nil {
		return nil, err
	}

	suites := make([]*Suite, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read suite file: %w", err)
		}
		s, err := ParseSuite(data, name)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

func isSuiteFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
