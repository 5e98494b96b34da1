// Package runner drives the generate-execute-repair loop for one image.
//
// Each attempt sends the whole conversation to the model, extracts code from
// the reply, executes it against a fresh figure and renders the figure to the
// artifact path. A failed attempt appends a repair pair and tries again until
// the attempt budget is spent.
//
// Accounting:
//   - the attempt counter counts model invocations;
//   - k failures followed by a success leave 1+2k turns;
//   - the final failure of an exhausted budget appends nothing, so MaxRetries
//     failures leave 1+2(MaxRetries-1) turns;
//   - a revision requested by the policy after a success appends a pair and
//     consumes an attempt from the same budget.
//
// Flow:
//
//	user(image, text) -> assistant(code) -> user(error) -> assistant(code) ...
package runner
