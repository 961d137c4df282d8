// Package harness orchestrates browser test suites.
//
// A Suite groups Cases that share a Precondition. The Registry keeps suites
// in registration order and narrows them with a Selector. The Runner gives
// every case its own target, applies the suite precondition, runs the steps
// through the Executor and records one Verdict per case with the Aggregator.
//
// # Suite Format
//
// Suites can be declared in YAML, one suite per file:
//
//	suite: SauceDemo - Shopping Cart
//	tags: [cart]
//	setup:
//	  - navigate: /
//	  - fill: "#user-name"
//	    value: standard_user
//	  - click: "#login-button"
//	cases:
//	  - name: should add product to cart
//	    steps:
//	      - click: '[data-test="add-to-cart-sauce-labs-backpack"]'
//	      - text: .shopping_cart_badge
//	        equals: "1"
//
// # Steps
//
// Actions mutate the target and wait for it to settle:
//
//   - navigate: load a URL, relative to the base URL if not absolute
//   - fill + value: type into an input
//   - click: click an element
//   - select + value: choose an option
//
// Assertions read the target once and compare:
//
//   - url: the current URL equals the given one
//   - text + equals|contains: element text (normalized)
//   - visible, hidden: element visibility
//   - count + is: number of matching elements
//   - order + sort: numbers in element texts are non_decreasing or non_increasing
//
// # Verdicts
//
// A case Passes if every step succeeds. It Fails at the first assertion
// mismatch, step timeout or step error. It is Errored when it cannot reach a
// decision: the precondition failed, the target broke, or the run was
// cancelled. A broken target aborts the rest of its suite.
package harness
