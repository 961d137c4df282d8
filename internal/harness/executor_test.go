package harness

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shopcheck/internal/target"
	"github.com/roach88/shopcheck/internal/testutil"
)

func TestExecute_ActionWaitsForStableState(t *testing.T) {
	ft := testutil.NewFakeTarget()
	ft.Show("#user-name")

	err := NewExecutor().Execute(context.Background(), ft, 0, Fill("#user-name", "standard_user"))
	require.NoError(t, err)

	assert.Equal(t, "standard_user", ft.Field("#user-name"))
	assert.Equal(t, []string{"fill #user-name", "wait_stable"}, ft.Calls())
}

func TestExecute_NavigateResolvesAgainstBaseURL(t *testing.T) {
	base, err := url.Parse("https://shop.test/app/")
	require.NoError(t, err)

	x := NewExecutor()
	x.BaseURL = base
	ft := testutil.NewFakeTarget()

	require.NoError(t, x.Execute(context.Background(), ft, 0, Navigate("cart.html")))
	require.NoError(t, x.Execute(context.Background(), ft, 1, ExpectURL("/app/cart.html")))
	require.NoError(t, x.Execute(context.Background(), ft, 2, Navigate("https://elsewhere.test/")))

	assert.Equal(t, "navigate https://shop.test/app/cart.html", ft.Calls()[0])
	assert.Equal(t, "navigate https://elsewhere.test/", ft.Calls()[3])
}

func TestExecute_AssertionFailure(t *testing.T) {
	ft := testutil.NewFakeTarget()
	ft.Show(".title", "Your Cart")

	err := NewExecutor().Execute(context.Background(), ft, 3, ExpectText(".title", "Products"))

	var af *AssertionFailure
	require.ErrorAs(t, err, &af)
	assert.Equal(t, 3, af.Step)
	assert.Equal(t, `"Products"`, af.Expected)
	assert.Equal(t, `"Your Cart"`, af.Actual)
	assert.Equal(t, `step 3 (expect text .title equals "Products"): expected "Products", got "Your Cart"`, err.Error())
}

func TestExecute_AssertionReadsOnceWithoutWait(t *testing.T) {
	ft := testutil.NewFakeTarget()

	err := NewExecutor().Execute(context.Background(), ft, 0, ExpectVisible(".shopping_cart_badge"))
	require.Error(t, err)
	assert.Equal(t, []string{"read_visibility .shopping_cart_badge"}, ft.Calls())
}

func TestExecute_AssertionRetriesWithinWait(t *testing.T) {
	ft := testutil.NewFakeTarget()
	timer := time.AfterFunc(30*time.Millisecond, func() {
		ft.Show(".shopping_cart_badge", "1")
	})
	defer timer.Stop()

	x := NewExecutor()
	x.AssertWait = 2 * time.Second
	x.PollInterval = 5 * time.Millisecond

	err := x.Execute(context.Background(), ft, 0, ExpectText(".shopping_cart_badge", "1"))
	require.NoError(t, err)
	assert.Greater(t, len(ft.Calls()), 1, "state was re-read")
}

func TestExecute_AssertionMissingElementAbsentAfterWait(t *testing.T) {
	ft := testutil.NewFakeTarget()

	x := NewExecutor()
	x.AssertWait = 30 * time.Millisecond
	x.PollInterval = 5 * time.Millisecond

	err := x.Execute(context.Background(), ft, 2, ExpectText(".shopping_cart_badge", "1"))

	var af *AssertionFailure
	require.ErrorAs(t, err, &af)
	assert.Equal(t, 2, af.Step)
	assert.Equal(t, `"1"`, af.Expected)
	assert.Equal(t, "absent", af.Actual)
	assert.Equal(t, StatusFailed, VerdictFor(err).Status)
	assert.Greater(t, len(ft.Calls()), 1, "state was re-read")
}

func TestExecute_AssertionMissingElementWithoutWait(t *testing.T) {
	ft := testutil.NewFakeTarget()

	err := NewExecutor().Execute(context.Background(), ft, 0, ExpectText(".shopping_cart_badge", "1"))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Len(t, ft.Calls(), 1)
}

func TestExecute_AssertionInfrastructureErrorNotRetried(t *testing.T) {
	ft := testutil.NewFakeTarget()
	ft.Fail(testutil.OpReadText, target.Unavailable("read text", errors.New("browser crashed")))

	x := NewExecutor()
	x.AssertWait = 2 * time.Second
	x.PollInterval = 5 * time.Millisecond

	start := time.Now()
	err := x.Execute(context.Background(), ft, 0, ExpectText(".shopping_cart_badge", "1"))

	assert.True(t, IsInfrastructure(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecute_OrderWaitsForElements(t *testing.T) {
	ft := testutil.NewFakeTarget()
	timer := time.AfterFunc(30*time.Millisecond, func() {
		ft.Show(".inventory_item_price", "$7.99", "$9.99", "$49.99")
	})
	defer timer.Stop()

	x := NewExecutor()
	x.AssertWait = 2 * time.Second
	x.PollInterval = 5 * time.Millisecond

	require.NoError(t, x.Execute(context.Background(), ft, 0, ExpectNonDecreasing(".inventory_item_price")))
	assert.Greater(t, len(ft.Calls()), 1, "state was re-read")
}

func TestExecute_OrderWithNoElementsFails(t *testing.T) {
	ft := testutil.NewFakeTarget()

	err := NewExecutor().Execute(context.Background(), ft, 0, ExpectNonDecreasing(".inventory_item_prices"))

	var af *AssertionFailure
	require.ErrorAs(t, err, &af)
	assert.Equal(t, "no elements", af.Actual)
}

func TestExecute_AssertionWaitExpires(t *testing.T) {
	ft := testutil.NewFakeTarget()
	ft.Show(".cart_item", "a", "b", "c")

	x := NewExecutor()
	x.AssertWait = 30 * time.Millisecond
	x.PollInterval = 5 * time.Millisecond

	err := x.Execute(context.Background(), ft, 1, ExpectCount(".cart_item", 2))

	var af *AssertionFailure
	require.ErrorAs(t, err, &af)
	assert.Equal(t, "3 element(s)", af.Actual)
}

func TestExecute_AssertionWaitBoundedByStepTimeout(t *testing.T) {
	ft := testutil.NewFakeTarget()

	x := NewExecutor()
	x.StepTimeout = 40 * time.Millisecond
	x.AssertWait = time.Minute
	x.PollInterval = 5 * time.Millisecond

	start := time.Now()
	err := x.Execute(context.Background(), ft, 0, ExpectVisible("#never"))

	assert.True(t, IsAssertionFailure(err), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecute_Timeout(t *testing.T) {
	ft := testutil.NewFakeTarget()
	ft.Show("#login-button")
	ft.Hang(testutil.OpWaitStable)

	x := NewExecutor()
	x.StepTimeout = 20 * time.Millisecond

	err := x.Execute(context.Background(), ft, 2, Click("#login-button"))

	var te *ActionTimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Step)
	assert.Equal(t, "click #login-button", te.Op)
	assert.Equal(t, Failed(te.Error(), 2), VerdictFor(err))
}

func TestExecute_TargetTimeoutError(t *testing.T) {
	ft := testutil.NewFakeTarget()
	ft.Show("#go")
	ft.Fail(testutil.OpClick, target.ErrTimeout)

	err := NewExecutor().Execute(context.Background(), ft, 0, Click("#go"))

	var te *ActionTimeoutError
	assert.ErrorAs(t, err, &te)
}

func TestExecute_StepError(t *testing.T) {
	ft := testutil.NewFakeTarget()

	err := NewExecutor().Execute(context.Background(), ft, 1, Click("#missing"))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Step)
	assert.Equal(t, StatusFailed, VerdictFor(err).Status)
}

func TestExecute_InfrastructureError(t *testing.T) {
	ft := testutil.NewFakeTarget()
	ft.Fail(testutil.OpNavigate, target.Unavailable("navigate", errors.New("browser crashed")))

	err := NewExecutor().Execute(context.Background(), ft, 0, Navigate("https://shop.test/"))

	assert.True(t, IsInfrastructure(err))
	assert.Equal(t, StatusErrored, VerdictFor(err).Status)
}

func TestExecute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewExecutor().Execute(ctx, testutil.NewFakeTarget(), 0, Navigate("https://shop.test/"))

	var ce *CancelledError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Errored("cancelled"), VerdictFor(err))
}

func TestExecute_SelectOption(t *testing.T) {
	ft := testutil.NewFakeTarget()
	ft.Show("#sort")

	require.NoError(t, NewExecutor().Execute(context.Background(), ft, 0, Select("#sort", "lohi")))
	assert.Equal(t, "lohi", ft.Selected("#sort"))
}

func TestExecute_ZeroValueExecutor(t *testing.T) {
	ft := testutil.NewFakeTarget()
	ft.Show("#x")

	x := &Executor{}
	assert.NoError(t, x.Execute(context.Background(), ft, 0, ExpectVisible("#x")))
}
