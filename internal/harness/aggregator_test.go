package harness

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_Finalize(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < 8; i++ {
		require.NoError(t, agg.Record("s", fmt.Sprintf("pass-%d", i), Passed()))
	}
	require.NoError(t, agg.Record("s", "fail", Failed("nope", 0)))
	require.NoError(t, agg.Record("s", "error", Errored("boom")))

	totals := agg.Finalize()
	assert.Equal(t, Totals{Passed: 8, Failed: 1, Errored: 1, Total: 10, ExitCode: 1}, totals)
}

func TestAggregator_FinalizeAllPassed(t *testing.T) {
	agg := NewAggregator()
	require.NoError(t, agg.Record("s", "a", Passed()))
	require.NoError(t, agg.Record("s", "b", Passed()))

	assert.Equal(t, 0, agg.Finalize().ExitCode)
}

func TestAggregator_FinalizeEmpty(t *testing.T) {
	assert.Equal(t, Totals{}, NewAggregator().Finalize())
}

func TestAggregator_RecordTwice(t *testing.T) {
	agg := NewAggregator()
	require.NoError(t, agg.Record("s", "a", Failed("first", 1)))

	err := agg.Record("s", "a", Passed())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already recorded")

	results := agg.Results()
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Verdict.Status, "first verdict is kept")
}

func TestAggregator_PlannedOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Plan("login", "a", "b")
	agg.Plan("cart", "c")

	// Results arrive out of order, as they do in a parallel run.
	require.NoError(t, agg.Record("cart", "c", Passed()))
	require.NoError(t, agg.Record("login", "b", Failed("x", 0)))
	require.NoError(t, agg.Record("login", "a", Passed()))

	summaries := agg.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "login", summaries[0].Name)
	assert.Equal(t, "a", summaries[0].Cases[0].Case)
	assert.Equal(t, "b", summaries[0].Cases[1].Case)
	assert.Equal(t, 1, summaries[0].Passed)
	assert.Equal(t, 1, summaries[0].Failed)
	assert.Equal(t, "cart", summaries[1].Name)
}

func TestAggregator_UnplannedAppended(t *testing.T) {
	agg := NewAggregator()
	agg.Plan("s", "a")
	require.NoError(t, agg.Record("s", "extra", Passed()))
	require.NoError(t, agg.Record("s", "a", Passed()))

	results := agg.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Case)
	assert.Equal(t, "extra", results[1].Case)
}

func TestAggregator_PendingCasesOmitted(t *testing.T) {
	agg := NewAggregator()
	agg.Plan("s", "a", "b")
	require.NoError(t, agg.Record("s", "b", Passed()))

	assert.Len(t, agg.Results(), 1)
	assert.Equal(t, 1, agg.Finalize().Total)
}

func TestAggregator_ConcurrentRecord(t *testing.T) {
	agg := NewAggregator()
	var names []string
	for i := 0; i < 50; i++ {
		names = append(names, fmt.Sprintf("case-%02d", i))
	}
	agg.Plan("s", names...)

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, agg.Record("s", name, Passed()))
		}()
	}
	wg.Wait()

	results := agg.Results()
	require.Len(t, results, 50)
	for i, r := range results {
		assert.Equal(t, names[i], r.Case)
	}
	assert.Equal(t, 0, agg.Finalize().ExitCode)
}
