// Package presenter renders loop progress on a terminal and implements the
// interactive accept-or-revise policy.
package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/petasbytes/fig2code/internal/metrics"
	"github.com/petasbytes/fig2code/internal/runner"
	"github.com/petasbytes/fig2code/internal/session"
)

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#05ffa1"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff71ce"))
	faint     = lipgloss.NewStyle().Faint(true)
	title     = lipgloss.NewStyle().Bold(true)
	codeBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const maxErrLines = 12

// Console is a runner.Observer that prints one line per event plus a running
// token and cost tally.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	pricing metrics.Pricing
	total   metrics.Cost
}

var _ runner.Observer = (*Console)(nil)

// NewConsole writes to w. label prefixes every line; batch runs set it to
// the image name.
func NewConsole(w io.Writer, label string, pricing metrics.Pricing) *Console {
	return &Console{w: w, label: label, pricing: pricing}
}

func (c *Console) prefix() string {
	if c.label == "" {
		return ""
	}
	return faint.Render("["+c.label+"]") + " "
}

func (c *Console) AttemptStarted(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s%s\n", c.prefix(), faint.Render(fmt.Sprintf("attempt %d: generating code...", i+1)))
}

func (c *Console) AttemptFailed(a runner.Attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cost := c.add(a)
	fmt.Fprintf(c.w, "%s%s %s\n", c.prefix(), failStyle.Render(fmt.Sprintf("attempt %d failed", a.Index+1)), faint.Render(formatCost(cost)))
	for _, line := range clip(a.Err.Error(), maxErrLines) {
		fmt.Fprintf(c.w, "    %s\n", line)
	}
}

func (c *Console) AttemptSucceeded(a runner.Attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cost := c.add(a)
	fmt.Fprintf(c.w, "%s%s %s\n", c.prefix(), okStyle.Render(fmt.Sprintf("attempt %d succeeded", a.Index+1)), faint.Render(formatCost(cost)))
}

func (c *Console) add(a runner.Attempt) metrics.Cost {
	cost := metrics.EstimateCost(a.Usage.InputTokens, a.Usage.OutputTokens, c.pricing)
	c.total = c.total.Add(cost)
	return cost
}

// Total returns the tally so far.
func (c *Console) Total() metrics.Cost {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Summary prints the accepted code and where the outcome was saved.
func (c *Console) Summary(root string, out *session.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, title.Render("Generated code"))
	fmt.Fprintln(c.w, codeBox.Render(strings.TrimRight(out.Result.Code, "\n")))
	if out.Doc != "" {
		fmt.Fprintln(c.w, title.Render("Documentation"))
		fmt.Fprintln(c.w, strings.TrimRight(out.Doc, "\n"))
	}
	fmt.Fprintf(c.w, "artifact: %s\nrecord:   %s\n", joinRoot(root, out.Artifact), joinRoot(root, out.Record))
	fmt.Fprintln(c.w, faint.Render(fmt.Sprintf("attempts: %d, total %s", out.Result.Attempts, formatCost(c.total))))
}

func formatCost(c metrics.Cost) string {
	return fmt.Sprintf("(%d in / %d out tokens, $%.4f)", c.InputTokens, c.OutputTokens, c.USD)
}

func joinRoot(root, name string) string {
	if root == "" || root == "." {
		return name
	}
	return strings.TrimRight(root, "/") + "/" + name
}

// clip keeps the last n lines; tracebacks put the cause at the bottom.
func clip(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return lines
	}
	out := []string{fmt.Sprintf("... %d lines omitted", len(lines)-n)}
	return append(out, lines[len(lines)-n:]...)
}
