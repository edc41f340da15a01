// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package script

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"smiactl/internal/api"
	"smiactl/internal/grammar"
)

// DefaultDelay is the pause between two dispatched commands.
const DefaultDelay = 500 * time.Millisecond

// Executor runs a canonical command line against the server.
type Executor interface {
	Execute(ctx context.Context, command string) (*api.Response, error)
}

// Result is the outcome of one script line.
type Result struct {
	Line      int
	Command   string // the line as written
	Canonical string // empty when validation failed
	Success   bool
	Message   string
	Payload   json.RawMessage
	Err       error
}

// Report is the outcome of a whole script, in script order.
type Report struct {
	Results   []Result
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// Options configures a Runner.
type Options struct {
	Formatter grammar.Formatter
	Delay     time.Duration
	Logger    zerolog.Logger
	// OnResult is called after each line, in order.
	OnResult func(Result)
	// Wait pauses between commands; nil uses a timer.
	Wait func(ctx context.Context, d time.Duration) error
}

// Runner executes scripts one line at a time.
type Runner struct {
	parser   *grammar.Parser
	executor Executor
	opts     Options
	wait     func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner validating with parser and dispatching to executor.
func NewRunner(parser *grammar.Parser, executor Executor, opts Options) *Runner {
	if opts.Formatter.Encode == nil {
		opts.Formatter = grammar.DefaultFormatter()
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	wait := opts.Wait
	if wait == nil {
		wait = sleepContext
	}
	return &Runner{
		parser:   parser,
		executor: executor,
		opts:     opts,
		wait:     wait,
	}
}

// Run executes every line of script. Invalid lines are reported without a
// request; execution failures never stop the run. Once ctx is done the
// remaining lines are recorded as failed without being sent.
func (r *Runner) Run(ctx context.Context, script string) Report {
	start := time.Now()
	lines := Lines(script)
	report := Report{Results: make([]Result, 0, len(lines))}
	dispatched := false

	for _, line := range lines {
		result := r.runLine(ctx, line, &dispatched)
		if result.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, result)

		r.opts.Logger.Debug().
			Int("line", result.Line).
			Bool("success", result.Success).
			Str("command", result.Command).
			Str("message", result.Message).
			Msg("script line finished")
		if r.opts.OnResult != nil {
			r.opts.OnResult(result)
		}
	}

	report.Elapsed = time.Since(start)
	r.opts.Logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Dur("elapsed", report.Elapsed).
		Msg("script finished")
	return report
}

func (r *Runner) runLine(ctx context.Context, line Line, dispatched *bool) Result {
	result := Result{Line: line.Number, Command: line.Text}

	if err := ctx.Err(); err != nil {
		return cancelled(result, err)
	}

	canonical, parsed := r.parser.Canonical(line.Text, r.opts.Formatter)
	if !parsed.Valid() {
		verr := api.ValidationError(line.Text, parsed.Errors)
		result.Message = verr.Message
		result.Err = verr
		return result
	}
	result.Canonical = canonical

	if *dispatched && r.opts.Delay > 0 {
		if err := r.wait(ctx, r.opts.Delay); err != nil {
			return cancelled(result, err)
		}
	}
	*dispatched = true

	resp, err := r.executor.Execute(ctx, canonical)
	if err != nil {
		result.Message = err.Error()
		result.Err = err
		return result
	}
	result.Success = true
	if resp != nil {
		result.Message = resp.Message
		result.Payload = resp.Data
	}
	return result
}

func cancelled(result Result, err error) Result {
	result.Message = fmt.Sprintf("not executed: %v", err)
	result.Err = err
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
