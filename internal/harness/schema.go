package harness

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed suite.cue
var suiteSchema string

// schemaValidator checks raw suite documents against the embedded CUE
// schema. A cue.Context is not safe for concurrent use, so all access goes
// through mu.
type schemaValidator struct {
	mu    sync.Mutex
	ctx   *cue.Context
	suite cue.Value
	err   error
}

var (
	validatorOnce sync.Once
	validator     *schemaValidator
)

func suiteValidator() *schemaValidator {
	validatorOnce.Do(func() {
		v := &schemaValidator{ctx: cuecontext.New()}
		schema := v.ctx.CompileString(suiteSchema, cue.Filename("suite.cue"))
		if err := schema.Err(); err != nil {
			v.err = fmt.Errorf("compile suite schema: %w", err)
		} else {
			v.suite = schema.LookupPath(cue.ParsePath("#Suite"))
		}
		validator = v
	})
	return validator
}

// ValidateSuiteDocument checks that data is a YAML suite document with the
// expected structure. It does not check cross-field rules such as unique
// case names; ParseSuite does.
func ValidateSuiteDocument(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("empty suite document")
	}
	return suiteValidator().validate(raw)
}

func (v *schemaValidator) validate(raw any) error {
	if v.err != nil {
		return v.err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	doc := v.ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if err := v.suite.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}
