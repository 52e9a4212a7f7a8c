package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTraceThreadRunsStepsInOrder(t *testing.T) {
	tt := newTraceThread()
	defer tt.stop()

	var got []int
	err := tt.run(
		func() error { got = append(got, 1); return nil },
		func() error { got = append(got, 2); return nil },
		func() error { got = append(got, 3); return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestTraceThreadStopsAtFirstFailure(t *testing.T) {
	tt := newTraceThread()
	defer tt.stop()

	boom := errors.New("boom")
	var ran []string
	err := tt.run(
		func() error { ran = append(ran, "peek"); return nil },
		func() error { ran = append(ran, "poke"); return boom },
		func() error { ran = append(ran, "never"); return nil },
	)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"peek", "poke"}, ran)
}

// Every request must land on the same OS thread; that is the whole point
// of the worker.
func TestTraceThreadPinsOneThread(t *testing.T) {
	tt := newTraceThread()
	defer tt.stop()

	var first, second int
	require.NoError(t, tt.run(func() error { first = unix.Gettid(); return nil }))
	require.NoError(t, tt.run(func() error { second = unix.Gettid(); return nil }))
	assert.Equal(t, first, second)
}

func TestPtraceErrNilPassthrough(t *testing.T) {
	dbg := &Engine{pid: 1234}
	assert.NoError(t, dbg.ptraceErr("cont", nil))
}

func TestPtraceErrWraps(t *testing.T) {
	dbg := &Engine{pid: 1234}

	err := dbg.ptraceErr("cont", unix.ESRCH)
	assert.ErrorIs(t, err, unix.ESRCH)
	assert.Contains(t, err.Error(), "cont")
	assert.Contains(t, err.Error(), "1234")
	assert.Contains(t, err.Error(), "does not exist")

	err = dbg.ptraceErr("getregs", unix.EPERM)
	assert.Contains(t, err.Error(), "permission denied")

	err = dbg.ptraceErr("singlestep", unix.EIO)
	assert.Contains(t, err.Error(), "input/output error")
}
