package harness

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// numberPattern matches the first decimal number in a text, e.g. 29.99 in "$29.99".
var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Mismatch describes why a captured value did not meet an Expectation.
type Mismatch struct {
	Expected string
	Actual   string

	// Position is the offending element of a sequence, or -1.
	Position int
}

// Compare evaluates e against a value captured from the target.
// It returns nil when the expectation holds.
//
// The captured value type depends on the read:
//   - string for url and text reads (equals, contains)
//   - bool for visibility reads (visible, hidden)
//   - int for count reads
//   - []string for texts reads (non_decreasing, non_increasing)
//
// Sequence checks evaluate the whole captured slice at once.
func Compare(e Expectation, actual any) *Mismatch {
	switch e.Mode {
	case ModeEquals:
		s, ok := actual.(string)
		if !ok {
			return typeMismatch("text", actual)
		}
		if normalizeText(s) != normalizeText(e.Value) {
			return &Mismatch{Expected: describe(e), Actual: strconv.Quote(s), Position: -1}
		}
		return nil

	case ModeContains:
		s, ok := actual.(string)
		if !ok {
			return typeMismatch("text", actual)
		}
		if !strings.Contains(normalizeText(s), normalizeText(e.Value)) {
			return &Mismatch{
				Expected: describe(e),
				Actual:   strconv.Quote(s),
				Position: -1,
			}
		}
		return nil

	case ModeVisible, ModeHidden:
		visible, ok := actual.(bool)
		if !ok {
			return typeMismatch("visibility", actual)
		}
		want := e.Mode == ModeVisible
		if visible != want {
			return &Mismatch{Expected: visibilityWord(want), Actual: visibilityWord(visible), Position: -1}
		}
		return nil

	case ModeCount:
		n, ok := actual.(int)
		if !ok {
			return typeMismatch("count", actual)
		}
		if n != e.Count {
			return &Mismatch{
				Expected: describe(e),
				Actual:   fmt.Sprintf("%d element(s)", n),
				Position: -1,
			}
		}
		return nil

	case ModeNonDecreasing, ModeNonIncreasing:
		texts, ok := actual.([]string)
		if !ok {
			return typeMismatch("texts", actual)
		}
		if len(texts) == 0 {
			return &Mismatch{Expected: describe(e), Actual: "no elements", Position: -1}
		}
		values, bad := NumericValues(texts)
		if bad >= 0 {
			return &Mismatch{
				Expected: "numeric values",
				Actual:   fmt.Sprintf("%q at index %d", texts[bad], bad),
				Position: bad,
			}
		}
		check := CheckNonDecreasing
		if e.Mode == ModeNonIncreasing {
			check = CheckNonIncreasing
		}
		if idx, ok := check(values); !ok {
			return &Mismatch{
				Expected: describe(e),
				Actual: fmt.Sprintf("%v (index %d: %s after %s)",
					values, idx, formatNumber(values[idx]), formatNumber(values[idx-1])),
				Position: idx,
			}
		}
		return nil

	default:
		return &Mismatch{Expected: fmt.Sprintf("known comparison mode, not %q", e.Mode), Actual: fmt.Sprintf("%v", actual), Position: -1}
	}
}

// describe renders what e expects, in the words a Mismatch uses.
func describe(e Expectation) string {
	switch e.Mode {
	case ModeEquals:
		return strconv.Quote(e.Value)
	case ModeContains:
		return fmt.Sprintf("text containing %q", e.Value)
	case ModeVisible:
		return visibilityWord(true)
	case ModeHidden:
		return visibilityWord(false)
	case ModeCount:
		return fmt.Sprintf("%d element(s)", e.Count)
	case ModeNonDecreasing, ModeNonIncreasing:
		return strings.ReplaceAll(string(e.Mode), "_", "-") + " sequence"
	default:
		return string(e.Mode)
	}
}

// CheckNonDecreasing reports whether values never decrease. When they do,
// it returns the index of the first element smaller than its predecessor.
//
//	CheckNonDecreasing([]float64{2, 5, 5, 9}) // -1, true
//	CheckNonDecreasing([]float64{2, 9, 5})    // 2, false
func CheckNonDecreasing(values []float64) (int, bool) {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return i, false
		}
	}
	return -1, true
}

// CheckNonIncreasing is CheckNonDecreasing mirrored.
func CheckNonIncreasing(values []float64) (int, bool) {
	for i := 1; i < len(values); i++ {
		if values[i] > values[i-1] {
			return i, false
		}
	}
	return -1, true
}

// NumericValues extracts the first decimal number from every text.
// Thousands separators are ignored. If a text holds no number, it returns
// that text's index as bad (otherwise bad is -1).
func NumericValues(texts []string) (values []float64, bad int) {
	values = make([]float64, len(texts))
	for i, text := range texts {
		match := numberPattern.FindString(strings.ReplaceAll(text, ",", ""))
		if match == "" {
			return nil, i
		}
		v, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return nil, i
		}
		values[i] = v
	}
	return values, -1
}

// normalizeText applies NFC normalization and collapses runs of whitespace,
// the way rendered text compares in a browser.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func visibilityWord(visible bool) string {
	if visible {
		return "visible"
	}
	return "absent"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func typeMismatch(want string, actual any) *Mismatch {
	return &Mismatch{
		Expected: fmt.Sprintf("a %s reading", want),
		Actual:   fmt.Sprintf("%T", actual),
		Position: -1,
	}
}
