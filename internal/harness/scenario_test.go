package harness

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cartSuiteYAML = `
suite: SauceDemo - Shopping Cart
description: cart badge and cart page
tags: [cart]
setup:
  - navigate: /
  - fill: "#user-name"
    value: standard_user
  - click: "#login-button"
cases:
  - name: should add product to cart
    tags: [smoke]
    steps:
      - click: '[data-test="add-to-cart-sauce-labs-backpack"]'
      - text: .shopping_cart_badge
        equals: "1"
  - name: every assertion
    steps:
      - select: '[data-test="product-sort-container"]'
        value: lohi
      - url: inventory.html
      - text: '[data-test="error"]'
        contains: required
      - visible: .title
      - hidden: .shopping_cart_badge
      - count: .inventory_item
        is: 6
      - order: .inventory_item_price
      - order: .inventory_item_price
        sort: non_increasing
`

func TestParseSuite(t *testing.T) {
	s, err := ParseSuite([]byte(cartSuiteYAML), "cart.yaml")
	require.NoError(t, err)

	assert.Equal(t, "SauceDemo - Shopping Cart", s.Name)
	assert.Equal(t, "cart badge and cart page", s.Description)
	assert.Equal(t, []string{"cart"}, s.Tags)
	assert.Equal(t, "cart.yaml", s.Source)

	setup, ok := s.Precondition.(*Setup)
	require.True(t, ok)
	assert.Equal(t, []Step{
		Navigate("/"),
		Fill("#user-name", "standard_user"),
		Click("#login-button"),
	}, setup.Steps)

	require.Len(t, s.Cases, 2)
	assert.Equal(t, "should add product to cart", s.Cases[0].Name)
	assert.Equal(t, []string{"smoke"}, s.Cases[0].Tags)
	assert.Equal(t, []Step{
		Click(`[data-test="add-to-cart-sauce-labs-backpack"]`),
		ExpectText(".shopping_cart_badge", "1"),
	}, s.Cases[0].Steps)

	assert.Equal(t, []Step{
		Select(`[data-test="product-sort-container"]`, "lohi"),
		ExpectURL("inventory.html"),
		ExpectContains(`[data-test="error"]`, "required"),
		ExpectVisible(".title"),
		ExpectHidden(".shopping_cart_badge"),
		ExpectCount(".inventory_item", 6),
		ExpectNonDecreasing(".inventory_item_price"),
		ExpectNonIncreasing(".inventory_item_price"),
	}, s.Cases[1].Steps)
}

func TestParseSuite_NoSetup(t *testing.T) {
	s, err := ParseSuite([]byte(`
suite: Login
cases:
  - name: page loads
    steps:
      - navigate: /
`), "login.yaml")
	require.NoError(t, err)
	assert.Nil(t, s.Precondition)
}

func TestParseSuite_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ``},
		{"missing suite name", `
cases:
  - name: a
    steps: [{navigate: /}]
`},
		{"no cases", `
suite: s
cases: []
`},
		{"case without steps", `
suite: s
cases:
  - name: a
    steps: []
`},
		{"unknown step key", `
suite: s
cases:
  - name: a
    steps:
      - clik: "#login-button"
`},
		{"unknown suite key", `
suite: s
setpu: []
cases:
  - name: a
    steps: [{navigate: /}]
`},
		{"fill without value", `
suite: s
cases:
  - name: a
    steps:
      - fill: "#user-name"
`},
		{"unquoted number value", `
suite: s
cases:
  - name: a
    steps:
      - fill: '[data-test="postalCode"]'
        value: 12345
`},
		{"text without comparison", `
suite: s
cases:
  - name: a
    steps:
      - text: .title
`},
		{"text with both comparisons", `
suite: s
cases:
  - name: a
    steps:
      - text: .title
        equals: Products
        contains: Prod
`},
		{"negative count", `
suite: s
cases:
  - name: a
    steps:
      - count: .cart_item
        is: -1
`},
		{"unknown sort", `
suite: s
cases:
  - name: a
    steps:
      - order: .inventory_item_price
        sort: sideways
`},
		{"two verbs in one step", `
suite: s
cases:
  - name: a
    steps:
      - click: "#a"
        visible: "#b"
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tt.doc), "bad.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "bad.yaml")
		})
	}
}

func TestParseSuite_DuplicateCaseName(t *testing.T) {
	_, err := ParseSuite([]byte(`
suite: cart
cases:
  - name: add
    steps: [{navigate: /}]
  - name: add
    steps: [{navigate: /}]
`), "cart.yaml")

	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "case", dup.Kind)
	assert.Equal(t, "add", dup.Name)
}

func TestSuiteFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20-cart.yml", "10-login.yaml", "README.md", "30-checkout.YAML"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("suite: x\n"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	names, err := SuiteFiles(os.DirFS(dir), ".")
	require.NoError(t, err)
	assert.Equal(t, []string{"10-login.yaml", "20-cart.yml", "30-checkout.YAML"}, names)

	fsys := fstest.MapFS{"suites/b.yaml": {}, "suites/a.yml": {}, "other/c.yaml": {}}
	names, err = SuiteFiles(fsys, "suites")
	require.NoError(t, err)
	assert.Equal(t, []string{"suites/a.yml", "suites/b.yaml"}, names)
}

func TestSuiteFiles_Missing(t *testing.T) {
	_, err := SuiteFiles(os.DirFS(t.TempDir()), "nope")
	assert.Error(t, err)
}

func TestLoadSuitesFS(t *testing.T) {
	fsys := fstest.MapFS{
		"suites/b.yaml": {Data: []byte("suite: b\ncases:\n  - name: x\n    steps: [{navigate: /}]\n")},
		"suites/a.yaml": {Data: []byte("suite: a\ncases:\n  - name: x\n    steps: [{navigate: /}]\n")},
	}

	suites, err := LoadSuitesFS(fsys, "suites")
	require.NoError(t, err)
	require.Len(t, suites, 2)
	assert.Equal(t, "a", suites[0].Name)
	assert.Equal(t, "suites/a.yaml", suites[0].Source)
}

func TestLoadSuitesFS_ReportsBadFile(t *testing.T) {
	fsys := fstest.MapFS{
		"broken.yaml": {Data: []byte("suite: broken\n")},
	}

	_, err := LoadSuitesFS(fsys, ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}
