package dbengine

import (
	"context"
	"fmt"

	trkerrors "github.com/trackerd/trackerd/internal/errors"
)

// taskKind identifies the shape of a queued database operation (§4.2
// "Query / Procedure / Procedure no-reply").
type taskKind int

const (
	taskQuery taskKind = iota
	taskProcedure
	taskProcedureNoReply
)

// task is one envelope dispatched to a Handle's worker goroutine. Only one
// task runs against a given Handle at a time — SQLite's single-writer
// connection (SetMaxOpenConns(1)) means concurrent callers must serialize
// here rather than contend at the driver.
type task struct {
	kind    taskKind
	sqlText string
	name    string
	args    []any
	reply   chan taskResult
}

type taskResult struct {
	result *Result
	err    error
}

// Pool serializes access to one Handle, retrying BUSY failures with
// backoff and escalating CORRUPT failures to a fatal abort signal (§4.2
// "On BUSY the task retries with backoff. On CORRUPT the process
// aborts.").
type Pool struct {
	handle  *Handle
	tasks   chan task
	retry   trkerrors.RetryConfig
	onAbort func(name string, err error)
	done    chan struct{}
}

// NewPool starts a worker goroutine dispatching queued tasks against
// handle. onAbort is invoked (once) if a CORRUPT error is ever observed;
// callers typically wire it to shut the process down.
func NewPool(handle *Handle, queueDepth int, onAbort func(name string, err error)) *Pool {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	p := &Pool{
		handle:  handle,
		tasks:   make(chan task, queueDepth),
		retry:   trkerrors.DefaultRetryConfig(),
		onAbort: onAbort,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Pool) run() {
	defer close(p.done)
	for t := range p.tasks {
		res, err := p.execWithRetry(context.Background(), t)
		t.reply <- taskResult{result: res, err: err}
	}
}

func (p *Pool) execWithRetry(ctx context.Context, t task) (*Result, error) {
	var res *Result
	err := trkerrors.Retry(ctx, p.retry, func() error {
		var execErr error
		switch t.kind {
		case taskQuery:
			res, execErr = p.handle.Query(ctx, t.sqlText, t.args...)
		case taskProcedure:
			res, execErr = p.handle.Procedure(ctx, t.name, t.args...)
		case taskProcedureNoReply:
			execErr = p.handle.ProcedureNoReply(ctx, t.name, t.args...)
		}

		if execErr == nil {
			return nil
		}
		if IsCorruptError(execErr) {
			if p.onAbort != nil {
				p.onAbort(p.handle.Name(), execErr)
			}
			return fmt.Errorf("dbengine: %s: %w (fatal)", p.handle.Name(), execErr)
		}
		if IsBusyError(execErr) {
			return execErr
		}
		// Non-retryable failure (bad SQL, constraint violation, ...): stop
		// retrying by wrapping it so Retry's loop still exits on MaxRetries,
		// but surface it immediately by returning it as-is — the caller sees
		// the real error either way.
		return execErr
	})
	return res, err
}

// Submit queues an ad-hoc query and blocks for its result.
func (p *Pool) Submit(ctx context.Context, sqlText string, args ...any) (*Result, error) {
	return p.dispatch(ctx, task{kind: taskQuery, sqlText: sqlText, args: args})
}

// SubmitProcedure queues a named procedure call and blocks for its result.
func (p *Pool) SubmitProcedure(ctx context.Context, name string, args ...any) (*Result, error) {
	return p.dispatch(ctx, task{kind: taskProcedure, name: name, args: args})
}

// SubmitProcedureNoReply queues a named procedure call whose result set is
// discarded.
func (p *Pool) SubmitProcedureNoReply(ctx context.Context, name string, args ...any) error {
	_, err := p.dispatch(ctx, task{kind: taskProcedureNoReply, name: name, args: args})
	return err
}

func (p *Pool) dispatch(ctx context.Context, t task) (*Result, error) {
	t.reply = make(chan taskResult, 1)
	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-t.reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new tasks and waits for the worker to drain.
func (p *Pool) Close() {
	close(p.tasks)
	<-p.done
}
