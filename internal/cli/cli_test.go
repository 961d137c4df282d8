package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shopcheck/internal/config"
	"github.com/roach88/shopcheck/internal/target"
	"github.com/roach88/shopcheck/internal/testutil"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// shopFactory serves the fake SauceDemo shop at the configured base URL.
func shopFactory(setup ...func(*testutil.FakeTarget)) FactoryBuilder {
	return func(ctx context.Context, cfg config.Config, install bool, logger *slog.Logger) (target.Factory, error) {
		shop := testutil.Shop(cfg.BaseURL)
		return &testutil.FakeFactory{Setup: func(ft *testutil.FakeTarget) {
			shop(ft)
			for _, fn := range setup {
				fn(ft)
			}
		}}, nil
	}
}

type cliResult struct {
	stdout string
	stderr string
	code   int
}

func runCLI(t *testing.T, opts *RootOptions, args ...string) cliResult {
	t.Helper()
	if opts == nil {
		opts = &RootOptions{}
	}
	if opts.Getenv == nil {
		opts.Getenv = func(string) string { return "" }
	}
	if opts.NewFactory == nil {
		opts.NewFactory = shopFactory()
	}

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), newRootCommand(opts), args, &stdout, &stderr)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

const failingSuite = `
suite: Broken cart
tags: [cart]
cases:
  - name: badge shows two
    steps:
      - navigate: /
      - fill: "#user-name"
        value: standard_user
      - fill: "#password"
        value: secret_sauce
      - click: "#login-button"
      - click: '[data-test="add-to-cart-sauce-labs-backpack"]'
      - text: .shopping_cart_badge
        equals: "2"
  - name: badge shows one
    steps:
      - navigate: /
      - fill: "#user-name"
        value: standard_user
      - fill: "#password"
        value: secret_sauce
      - click: "#login-button"
      - click: '[data-test="add-to-cart-sauce-labs-backpack"]'
      - text: .shopping_cart_badge
        equals: "1"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "shopcheck", cmd.Use)

	for _, name := range []string{"run", "list", "validate", "history", "diff"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	res := runCLI(t, nil, "list", "--format", "xml")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, `invalid format "xml"`)
}

func TestRun_BundledSuitesPass(t *testing.T) {
	res := runCLI(t, nil, "run", "--parallel", "4", "--no-progress")
	assert.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "SauceDemo - Checkout Flow")
	assert.Contains(t, res.stdout, "✓ should complete checkout successfully")
	assert.Contains(t, res.stdout, "Test Summary: 13 passed, 0 failed, 0 errored, 13 total")
	assert.Contains(t, res.stdout, "✓ All cases passed")
}

func TestRun_ProgressOnStderr(t *testing.T) {
	res := runCLI(t, nil, "run", "--tag", "smoke")
	assert.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stderr, "4 passed | 0 failed | 0 errored")
	assert.NotContains(t, res.stdout, "Running cases")
}

func TestRun_FailedCaseExitsOne(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cart.yaml", failingSuite)

	res := runCLI(t, nil, "run", path, "--assert-wait", "0", "--no-progress")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stdout, "✗ badge shows two")
	assert.Contains(t, res.stdout, "✓ badge shows one")
	assert.Contains(t, res.stdout, "Test Summary: 1 passed, 1 failed, 0 errored, 2 total")
	assert.NotContains(t, res.stderr, "Error:", "the report already explains the failure")
}

func TestRun_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cart.yaml", failingSuite)

	res := runCLI(t, nil, "run", path, "--assert-wait", "0", "--format", "json")
	assert.Equal(t, ExitFailure, res.code)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			RunID  string `json:"run_id"`
			Totals struct {
				Passed   int `json:"passed"`
				Failed   int `json:"failed"`
				ExitCode int `json:"exit_code"`
			} `json:"totals"`
		} `json:"data"`
		Error *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp), res.stdout)
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.Data.RunID)
	assert.Equal(t, 1, resp.Data.Totals.Passed)
	assert.Equal(t, 1, resp.Data.Totals.Failed)
	assert.Equal(t, 1, resp.Data.Totals.ExitCode)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCasesFailed, resp.Error.Code)
	assert.Empty(t, res.stderr, "no progress bar in json mode")
}

func TestRun_InfrastructureFailureExitsTwo(t *testing.T) {
	crash := func(ft *testutil.FakeTarget) {
		ft.Fail(testutil.OpNavigate, target.Unavailable("navigate", errors.New("browser crashed")))
	}
	res := runCLI(t, &RootOptions{NewFactory: shopFactory(crash)},
		"run", "--filter", "SauceDemo - Login", "--no-progress")

	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stdout, "Test Summary: 0 passed, 0 failed, 3 errored, 3 total")
	assert.Contains(t, res.stderr, ErrCodeInfra)
}

func TestRun_BrowserFailure(t *testing.T) {
	broken := func(context.Context, config.Config, bool, *slog.Logger) (target.Factory, error) {
		return nil, errors.New("chromium not installed")
	}
	res := runCLI(t, &RootOptions{NewFactory: broken}, "run")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "failed to start browser: chromium not installed")
}

func TestRun_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
		want string
	}{
		{"missing path", nil, []string{"run", "/nonexistent/suites"}, "suite path not found"},
		{"bad parallel flag", nil, []string{"run", "--parallel", "0"}, "parallel must be at least 1"},
		{"bad driver env", map[string]string{"SHOPCHECK_DRIVER": "selenium"}, []string{"run"}, "unknown driver"},
		{"bad filter", nil, []string{"run", "--filter", "[unclosed"}, "invalid name pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tt.env
			res := runCLI(t, &RootOptions{Getenv: func(k string) string { return env[k] }}, tt.args...)
			assert.Equal(t, ExitCommandError, res.code)
			assert.Contains(t, res.stderr, tt.want)
		})
	}
}

func TestRun_NoMatch(t *testing.T) {
	res := runCLI(t, nil, "run", "--tag", "nonexistent")
	assert.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "No cases matched the selection.")
}

func TestRun_ConfigFromEnv(t *testing.T) {
	var got config.Config
	capture := func(ctx context.Context, cfg config.Config, install bool, logger *slog.Logger) (target.Factory, error) {
		got = cfg
		return shopFactory()(ctx, cfg, install, logger)
	}
	env := map[string]string{
		"SHOPCHECK_PARALLEL": "3",
		"SHOPCHECK_TIMEOUT":  "7s",
		"SHOPCHECK_HEADLESS": "false",
	}
	res := runCLI(t, &RootOptions{NewFactory: capture, Getenv: func(k string) string { return env[k] }},
		"run", "--tag", "smoke", "--parallel", "2", "--no-progress")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	assert.Equal(t, 2, got.Parallel, "flags override the environment")
	assert.Equal(t, "7s", got.Timeout.String())
	assert.False(t, got.Headless)
}

func TestRun_FlagOverridesInvalidEnv(t *testing.T) {
	env := map[string]string{"SHOPCHECK_TIMEOUT": "0"}
	opts := func() *RootOptions {
		return &RootOptions{Getenv: func(k string) string { return env[k] }}
	}

	res := runCLI(t, opts(), "run", "--tag", "smoke", "--no-progress")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "timeout must be positive")

	res = runCLI(t, opts(), "run", "--tag", "smoke", "--timeout", "5s", "--no-progress")
	assert.Equal(t, ExitSuccess, res.code, res.stderr)
}

func TestRun_HistoryAndDiff(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	passing := writeFile(t, dir, "a.yaml", `
suite: Broken cart
cases:
  - name: badge shows two
    steps:
      - navigate: /
`)
	failing := writeFile(t, t.TempDir(), "a.yaml", failingSuite)

	res := runCLI(t, nil, "run", passing, "--db", db, "--no-progress")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	res = runCLI(t, nil, "run", failing, "--db", db, "--assert-wait", "0", "--no-progress")
	require.Equal(t, ExitFailure, res.code, res.stderr)

	res = runCLI(t, nil, "history", "--db", db, "--format", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	var history struct {
		Data []struct {
			ID     string `json:"id"`
			Totals struct {
				Total int `json:"total"`
			} `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &history))
	require.Len(t, history.Data, 2)
	assert.Equal(t, 2, history.Data[0].Totals.Total, "newest first")
	assert.Equal(t, 1, history.Data[1].Totals.Total)

	res = runCLI(t, nil, "diff", "--db", db, history.Data[1].ID, "latest")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Broken cart/badge shows two: passed -> failed")
	assert.Contains(t, res.stdout, "Broken cart/badge shows one: absent -> passed")
	assert.Contains(t, res.stdout, "2 case(s) changed")
}

func TestHistory_RequiresDB(t *testing.T) {
	res := runCLI(t, nil, "history")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "no history database")
}

func TestHistory_DBFromEnv(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	res := runCLI(t, &RootOptions{Getenv: func(k string) string {
		if k == "SHOPCHECK_DB" {
			return db
		}
		return ""
	}}, "history")
	assert.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "No runs recorded.")
}

func TestDiff_UnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	res := runCLI(t, nil, "diff", "--db", db, "abc", "latest")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "run not found")
}

func TestList(t *testing.T) {
	res := runCLI(t, nil, "list", "--tag", "smoke")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "SauceDemo - Login [login]")
	assert.Contains(t, res.stdout, "  should login successfully with valid credentials [smoke]")
	assert.NotContains(t, res.stdout, "should show error with invalid credentials")
	assert.Contains(t, res.stdout, "4 case(s) in 4 suite(s)")
}

func TestList_VerboseShowsSteps(t *testing.T) {
	res := runCLI(t, nil, "list", "--filter", "SauceDemo - Shopping Cart/should add product to cart", "-v")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, `0. click [data-test="add-to-cart-sauce-labs-backpack"]`)
	assert.Contains(t, res.stdout, `1. expect text .shopping_cart_badge equals "1"`)
	assert.Contains(t, res.stdout, "1 case(s) in 1 suite(s)")
}

func TestList_JSON(t *testing.T) {
	res := runCLI(t, nil, "list", "--format", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	var resp struct {
		Status string         `json:"status"`
		Data   []SuiteListing `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 4)
	assert.Equal(t, "SauceDemo - Checkout Flow", resp.Data[3].Suite)
	assert.Equal(t, 7, resp.Data[3].Setup)
	assert.Len(t, resp.Data[3].Cases, 3)
}

func TestValidate_Bundled(t *testing.T) {
	res := runCLI(t, nil, "validate")
	assert.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "✓ saucedemo/01-login.yaml (SauceDemo - Login, 3 case(s))")
	assert.Contains(t, res.stdout, "4 suite file(s) valid")
}

func TestValidate_ReportsEveryFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a-good.yaml", failingSuite)
	writeFile(t, dir, "b-bad.yaml", "suite: bad\ncases:\n  - name: x\n    steps:\n      - clik: '#a'\n")
	writeFile(t, dir, "c-dup.yml", "suite: Broken cart\ncases:\n  - name: x\n    steps: [{navigate: /}]\n")
	writeFile(t, dir, "notes.txt", "not a suite")

	res := runCLI(t, nil, "validate", dir)
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stdout, "✓ "+filepath.Join(dir, "a-good.yaml"))
	assert.Contains(t, res.stdout, "✗ "+filepath.Join(dir, "b-bad.yaml"))
	assert.Contains(t, res.stdout, "✗ "+filepath.Join(dir, "c-dup.yml"))
	assert.Contains(t, res.stdout, "2 of 3 suite file(s) invalid")
}

func TestValidate_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", "suite: bad\n")

	res := runCLI(t, nil, "validate", dir, "--format", "json")
	assert.Equal(t, ExitFailure, res.code)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Files, 1)
	assert.NotEmpty(t, resp.Data.Files[0].Error)
	assert.Equal(t, ErrCodeInvalidSuite, resp.Error.Code)
}

func TestValidate_EmptyDir(t *testing.T) {
	res := runCLI(t, nil, "validate", t.TempDir())
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "no suite files found")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "cases failed")))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("unknown flag")))
	wrapped := WrapExitError(ExitCommandError, "load", errors.New("boom"))
	assert.Equal(t, "load: boom", wrapped.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}
