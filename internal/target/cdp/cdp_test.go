package cdp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/shopcheck/internal/target"
)

func TestQuery(t *testing.T) {
	tests := []struct {
		loc     target.Locator
		wantSel string
		wantN   int
	}{
		{"#login-button", "#login-button", -1},
		{".inventory_item_name >> nth=0", ".inventory_item_name", 0},
		{".inventory_item_name>>nth=12", ".inventory_item_name", 12},
		{`[data-test="add-to-cart-sauce-labs-backpack"]`, `[data-test="add-to-cart-sauce-labs-backpack"]`, -1},
		{"a >> b", "a >> b", -1},
	}
	for _, tt := range tests {
		t.Run(string(tt.loc), func(t *testing.T) {
			sel, n := query(tt.loc)
			assert.Equal(t, tt.wantSel, sel)
			assert.Equal(t, tt.wantN, n)
		})
	}
}

func TestNodesJS(t *testing.T) {
	assert.Equal(t,
		`Array.from(document.querySelectorAll("[data-test=\"error\"]"))`,
		nodesJS(`[data-test="error"]`))
	assert.Equal(t,
		`Array.from(document.querySelectorAll(".inventory_item_name")).slice(2, 3)`,
		nodesJS(".inventory_item_name >> nth=2"))
}

func TestTab_ClosedTabIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tab := &Tab{ctx: ctx, cancel: cancel}
	assert.NoError(t, tab.Close())

	err := tab.Click(context.Background(), "#login-button")
	assert.True(t, target.IsUnavailable(err))

	_, err = tab.ReadCount(context.Background(), ".cart_item")
	assert.True(t, target.IsUnavailable(err))
}

func TestTab_CancelledStep(t *testing.T) {
	tabCtx, tabCancel := context.WithCancel(context.Background())
	defer tabCancel()
	tab := &Tab{ctx: tabCtx, cancel: tabCancel}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tab.Navigate(ctx, "https://www.saucedemo.com/")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, target.IsUnavailable(err))
}
