package conformance

import (
	"fmt"
	"strings"

	"cinder/engine"
)

// TestResult represents the outcome of running a single test
type TestResult struct {
	Suite      string
	Test       string
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
}

// Runner executes conformance suites. Each suite gets a fresh
// session; tests within a suite run against it in order.
type Runner struct{}

// NewRunner creates a test runner
func NewRunner() *Runner {
	return &Runner{}
}

// RunSuite runs every test of one suite against a shared session
func (r *Runner) RunSuite(ls LoadedSuite) ([]TestResult, error) {
	var lines []string
	session, err := engine.Open(engine.Options{Bootstrap: true})
	if err != nil {
		return nil, fmt.Errorf("suite %s: %w", ls.Suite.Name, err)
	}
	defer session.Close()
	session.SetOutput(func(line string) { lines = append(lines, line) })

	for i, frag := range ls.Suite.Setup {
		if err := session.Exec(frag); err != nil {
			return nil, fmt.Errorf("suite %s: setup %d: %w", ls.Suite.Name, i, err)
		}
	}

	var results []TestResult
	for _, tc := range ls.Suite.Tests {
		res := TestResult{Suite: ls.Suite.Name, Test: tc.Name}
		if skip, reason := tc.IsSkipped(); skip {
			res.Skipped = true
			res.SkipReason = reason
			results = append(results, res)
			continue
		}
		lines = nil
		res.Error = r.runCase(session, tc, &lines)
		res.Passed = res.Error == nil
		results = append(results, res)
	}
	return results, nil
}

// runCase executes one fragment and checks the expectation
func (r *Runner) runCase(session *engine.Session, tc TestCase, lines *[]string) error {
	execErr := session.Exec(tc.Code)

	if tc.Expect.Error != "" {
		if execErr == nil {
			return fmt.Errorf("expected failure containing %q, got success (result %q)",
				tc.Expect.Error, session.Result())
		}
		if !strings.Contains(execErr.Error(), tc.Expect.Error) {
			return fmt.Errorf("expected failure containing %q, got %q",
				tc.Expect.Error, execErr.Error())
		}
		return nil
	}

	if execErr != nil {
		return fmt.Errorf("unexpected failure: %w", execErr)
	}

	if tc.Expect.Value != nil {
		want := fmt.Sprint(tc.Expect.Value)
		got := session.Value()
		if got != want {
			return fmt.Errorf("result: want %q, got %q", want, got)
		}
	}

	if tc.Expect.Output != nil {
		if len(*lines) != len(tc.Expect.Output) {
			return fmt.Errorf("output: want %d line(s), got %d: %q",
				len(tc.Expect.Output), len(*lines), *lines)
		}
		for i, want := range tc.Expect.Output {
			if (*lines)[i] != want {
				return fmt.Errorf("output line %d: want %q, got %q", i, want, (*lines)[i])
			}
		}
	}
	return nil
}
