package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckNonDecreasing(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		wantIdx int
		wantOK  bool
	}{
		{"empty", nil, -1, true},
		{"single", []float64{3}, -1, true},
		{"with ties", []float64{2, 5, 5, 9}, -1, true},
		{"drop at end", []float64{2, 9, 5}, 2, false},
		{"first drop wins", []float64{5, 1, 0}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := CheckNonDecreasing(tt.values)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantIdx, idx)
		})
	}
}

func TestCheckNonIncreasing(t *testing.T) {
	idx, ok := CheckNonIncreasing([]float64{49.99, 29.99, 29.99, 7.99})
	assert.True(t, ok)
	assert.Equal(t, -1, idx)

	idx, ok = CheckNonIncreasing([]float64{9, 2, 5})
	assert.False(t, ok)
	assert.Equal(t, 2, idx)
}

func TestNumericValues(t *testing.T) {
	values, bad := NumericValues([]string{"$29.99", "$1,049.00", "-3", "12 items"})
	require.Equal(t, -1, bad)
	assert.Equal(t, []float64{29.99, 1049, -3, 12}, values)

	_, bad = NumericValues([]string{"$1", "free", "$2"})
	assert.Equal(t, 1, bad)
}

func TestCompare_Equals(t *testing.T) {
	e := Expectation{Mode: ModeEquals, Value: "Products"}

	assert.Nil(t, Compare(e, "Products"))
	assert.Nil(t, Compare(e, "  Products\n"), "whitespace is collapsed")

	m := Compare(e, "Your Cart")
	require.NotNil(t, m)
	assert.Equal(t, `"Products"`, m.Expected)
	assert.Equal(t, `"Your Cart"`, m.Actual)
	assert.Equal(t, -1, m.Position)
}

func TestCompare_EqualsNormalizesUnicode(t *testing.T) {
	// Precomposed "e acute" vs "e" + combining acute accent.
	e := Expectation{Mode: ModeEquals, Value: "caf\u00e9"}
	assert.Nil(t, Compare(e, "cafe\u0301"))
}

func TestCompare_Contains(t *testing.T) {
	e := Expectation{Mode: ModeContains, Value: "Username is required"}

	assert.Nil(t, Compare(e, "Epic sadface: Username is required"))

	m := Compare(e, "Epic sadface: Password is required")
	require.NotNil(t, m)
	assert.Equal(t, `text containing "Username is required"`, m.Expected)
}

func TestCompare_Visibility(t *testing.T) {
	assert.Nil(t, Compare(Expectation{Mode: ModeVisible}, true))
	assert.Nil(t, Compare(Expectation{Mode: ModeHidden}, false))

	m := Compare(Expectation{Mode: ModeVisible}, false)
	require.NotNil(t, m)
	assert.Equal(t, "visible", m.Expected)
	assert.Equal(t, "absent", m.Actual)

	m = Compare(Expectation{Mode: ModeHidden}, true)
	require.NotNil(t, m)
	assert.Equal(t, "absent", m.Expected)
	assert.Equal(t, "visible", m.Actual)
}

func TestCompare_Count(t *testing.T) {
	e := Expectation{Mode: ModeCount, Count: 2}
	assert.Nil(t, Compare(e, 2))

	m := Compare(e, 3)
	require.NotNil(t, m)
	assert.Equal(t, "2 element(s)", m.Expected)
	assert.Equal(t, "3 element(s)", m.Actual)
}

func TestCompare_Order(t *testing.T) {
	e := Expectation{Mode: ModeNonDecreasing}
	assert.Nil(t, Compare(e, []string{"$7.99", "$9.99", "$15.99", "$15.99"}))

	m := Compare(e, []string{})
	require.NotNil(t, m, "a locator matching nothing has no order to check")
	assert.Equal(t, "non-decreasing sequence", m.Expected)
	assert.Equal(t, "no elements", m.Actual)
	assert.Equal(t, -1, m.Position)

	m = Compare(e, []string{"$2", "$9", "$5"})
	require.NotNil(t, m)
	assert.Equal(t, "non-decreasing sequence", m.Expected)
	assert.Equal(t, "[2 9 5] (index 2: 5 after 9)", m.Actual)
	assert.Equal(t, 2, m.Position)

	m = Compare(Expectation{Mode: ModeNonIncreasing}, []string{"$9", "$2", "$5"})
	require.NotNil(t, m)
	assert.Equal(t, "non-increasing sequence", m.Expected)
	assert.Equal(t, 2, m.Position)
}

func TestCompare_OrderNonNumeric(t *testing.T) {
	m := Compare(Expectation{Mode: ModeNonDecreasing}, []string{"$1", "n/a"})
	require.NotNil(t, m)
	assert.Equal(t, "numeric values", m.Expected)
	assert.Equal(t, `"n/a" at index 1`, m.Actual)
	assert.Equal(t, 1, m.Position)
}

func TestCompare_TypeMismatch(t *testing.T) {
	m := Compare(Expectation{Mode: ModeCount, Count: 1}, "1")
	require.NotNil(t, m)
	assert.Equal(t, "a count reading", m.Expected)
	assert.Equal(t, "string", m.Actual)
}
