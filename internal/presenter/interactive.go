package presenter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/petasbytes/fig2code/internal/runner"
)

// Interactive asks the operator after each success whether to accept the
// figure or regenerate it with extra instructions. Failures are repaired
// automatically unless ConfirmRepairs is set.
type Interactive struct {
	out            io.Writer
	ConfirmRepairs bool
	// Root is joined to the artifact path shown in the prompt.
	Root string

	once  sync.Once
	in    io.Reader
	lines chan string
}

var _ runner.Policy = (*Interactive)(nil)

// NewInteractive reads answers from in and prompts on out.
func NewInteractive(in io.Reader, out io.Writer) *Interactive {
	return &Interactive{in: in, out: out}
}

func (p *Interactive) start() {
	p.lines = make(chan string)
	go func() {
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
		close(p.lines)
	}()
}

// readLine returns the next line, io.EOF once input ends, or ctx's error.
func (p *Interactive) readLine(ctx context.Context) (string, error) {
	p.once.Do(p.start)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

func (p *Interactive) AfterFailure(ctx context.Context, a runner.Attempt) (bool, error) {
	if !p.ConfirmRepairs {
		return true, nil
	}
	fmt.Fprint(p.out, "Ask the model to fix it? [Y/n]: ")
	line, err := p.readLine(ctx)
	if err == io.EOF {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "n", "no", "q", "quit":
		return false, nil
	}
	return true, nil
}

func (p *Interactive) AfterSuccess(ctx context.Context, a runner.Attempt) (runner.Decision, error) {
	if a.Artifact != "" {
		fmt.Fprintf(p.out, "Figure written to %s\n", joinRoot(p.Root, a.Artifact))
	}
	fmt.Fprint(p.out, "Satisfied? Press Enter to accept, or describe what to change: ")
	line, err := p.readLine(ctx)
	if err == io.EOF {
		return runner.Decision{}, nil
	}
	if err != nil {
		return runner.Decision{}, err
	}
	switch strings.ToLower(line) {
	case "", "y", "yes", "ok":
		return runner.Decision{}, nil
	}
	return runner.Decision{Revise: true, Feedback: line}, nil
}
