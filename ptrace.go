package main

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Linux accepts ptrace requests for a tracee only from the thread that
// started tracing it, so the engine pins one goroutine to an OS thread
// at launch and replays every request there. Closures capture their
// outputs; only the error crosses the channel.

type traceRequest struct {
	steps []func() error
	errc  chan error
}

type traceThread struct {
	reqs chan traceRequest
	done chan struct{}
}

func newTraceThread() *traceThread {
	t := &traceThread{
		reqs: make(chan traceRequest),
		done: make(chan struct{}),
	}
	go t.loop()
	return t
}

func (t *traceThread) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.done)

	for req := range t.reqs {
		var err error
		for _, step := range req.steps {
			if err = step(); err != nil {
				break
			}
		}
		req.errc <- err
	}
}

func (t *traceThread) stop() {
	close(t.reqs)
	<-t.done
}

// run executes steps in order on the tracing thread, stopping at the
// first failure. Passing several steps keeps a read-modify-write
// sequence, like swapping a breakpoint byte, in a single round trip.
func (t *traceThread) run(steps ...func() error) error {
	errc := make(chan error, 1)
	t.reqs <- traceRequest{steps: steps, errc: errc}
	return <-errc
}

// onTrace runs steps on the engine's tracing thread.
func (dbg *Engine) onTrace(steps ...func() error) error {
	return dbg.trace.run(steps...)
}

// ptraceError is the ptrace-failure error kind: a tracing request the
// kernel refused, tagged with the request name and tracee pid.
type ptraceError struct {
	op  string
	pid int
	err error
}

func (e *ptraceError) Error() string {
	switch e.err {
	case unix.ESRCH:
		return fmt.Sprintf("ptrace %s: process %d does not exist or exited", e.op, e.pid)
	case unix.EPERM:
		return fmt.Sprintf("ptrace %s: permission denied for process %d", e.op, e.pid)
	case unix.EBUSY:
		return fmt.Sprintf("ptrace %s: process %d is busy", e.op, e.pid)
	}
	return fmt.Sprintf("ptrace %s on process %d: %v", e.op, e.pid, e.err)
}

func (e *ptraceError) Unwrap() error { return e.err }

// ptraceErr wraps a failed tracing request; nil passes through so call
// sites can wrap unconditionally.
func (dbg *Engine) ptraceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ptraceError{op: op, pid: dbg.pid, err: err}
}
