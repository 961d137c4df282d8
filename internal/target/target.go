// Package target defines the control surface the harness drives.
//
// A Target is one isolated page of a remote browser. The harness never
// shares a Target between concurrently running cases; each case checks one
// out of a Pool, prepares it with its suite's precondition, runs its steps
// and checks it back in.
//
// Drivers live in subpackages:
//   - target/playwright: playwright-go (Chromium, Firefox, WebKit)
//   - target/cdp: chromedp over the Chrome DevTools Protocol
//
// All Target methods block until the remote side answers or ctx expires.
// Drivers translate ctx deadlines into their own timeout options and report
// expiry as ErrTimeout (or a context error). A Target that can no longer be
// used at all (browser crashed, connection lost) reports UnavailableError.
package target

import (
	"context"
	"errors"
	"fmt"
)

// Locator identifies one or more elements on the page.
// The harness treats it as opaque; only drivers interpret it.
type Locator string

// Target is the remote page under test.
type Target interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, loc Locator, value string) error
	Click(ctx context.Context, loc Locator) error
	SelectOption(ctx context.Context, loc Locator, value string) error

	// ReadText returns the text content of the first element matching loc.
	ReadText(ctx context.Context, loc Locator) (string, error)
	// ReadTexts returns the text content of every element matching loc,
	// captured in a single read.
	ReadTexts(ctx context.Context, loc Locator) ([]string, error)
	ReadVisibility(ctx context.Context, loc Locator) (bool, error)
	ReadCount(ctx context.Context, loc Locator) (int, error)
	ReadURL(ctx context.Context) (string, error)

	// WaitStable blocks until the page stops loading and mutating.
	WaitStable(ctx context.Context) error

	Close() error
}

// Resetter is implemented by targets that can be returned to a blank state
// and reused by a later case.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Factory creates fresh, isolated targets.
type Factory interface {
	NewTarget(ctx context.Context) (Target, error)
	Close() error
}

// ErrTimeout is returned by drivers when an operation did not finish
// within its bound.
var ErrTimeout = errors.New("target operation timed out")

// UnavailableError reports that the target (or the browser behind it)
// cannot serve any further operation.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("target unavailable during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("target unavailable during %s", e.Op)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as an UnavailableError for op.
func Unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

// IsUnavailable reports whether err (or anything it wraps) is an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsTimeout reports whether err is a driver timeout or a context deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
