package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// errTraceeExited is returned by waitForSignal when waitpid reports the
// tracee gone. The REPL exits on it; the batch driver ends the run.
var errTraceeExited = errors.New("tracee exited")

// si_code values for SIGTRAP, not exposed by x/sys/unix.
const (
	siKernel  = 0x80
	trapBrkpt = 1
	trapTrace = 2
)

// Engine owns the tracee, its debug-info views, the breakpoint table and
// the per-run line hit counter.
type Engine struct {
	path  string
	pid   int
	trace *traceThread
	info  *DebugInfo
	bps   *BreakpointTable

	exited   bool
	exitCode int

	// advice-mode state
	advice   bool
	lastLine int
	hits     map[int]int
}

// Launch spawns path under ptrace and blocks until the exec stop. The
// child is started with PTRACE_TRACEME semantics via SysProcAttr.Ptrace;
// stdio is inherited so the tracee can write its own output files.
func Launch(path string, args ...string) (*Engine, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	info, err := LoadDebugInfo(absPath)
	if err != nil {
		return nil, fmt.Errorf("loading debug info for %s: %w", absPath, err)
	}

	dbg := &Engine{
		path:  absPath,
		pid:   -1,
		trace: newTraceThread(),
		info:  info,
		hits:  make(map[int]int),
	}
	dbg.bps = newBreakpointTable()

	err = dbg.onTrace(func() error {
		cmd := exec.Command(absPath, args...)
		cmd.SysProcAttr = &unix.SysProcAttr{
			Ptrace: true,
		}
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			return err
		}
		dbg.pid = cmd.Process.Pid
		return nil
	})
	if err != nil {
		info.Close()
		dbg.trace.stop()
		return nil, err
	}

	// initial stop-at-exec
	if _, err := dbg.wait(); err != nil {
		dbg.Close()
		return nil, err
	}

	return dbg, nil
}

// Close releases the DWARF/ELF views and the tracing thread. The tracee,
// if still alive, keeps running untraced once the debugger exits.
func (dbg *Engine) Close() {
	dbg.info.Close()
	dbg.trace.stop()
}

func (dbg *Engine) isProcessAlive() bool {
	if dbg.pid <= 0 || dbg.exited {
		return false
	}
	_, err := os.Stat(fmt.Sprintf("/proc/%d", dbg.pid))
	return err == nil
}

func (dbg *Engine) isStopped() bool {
	if !dbg.isProcessAlive() {
		return false
	}

	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", dbg.pid))
	if err != nil {
		return false
	}

	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return false
	}

	state := fields[2]
	return state == "t" || state == "T"
}

func (dbg *Engine) wait() (unix.WaitStatus, error) {
	var ws unix.WaitStatus

	err := dbg.onTrace(func() error {
		_, err := unix.Wait4(dbg.pid, &ws, 0, nil)
		return err
	})
	if err != nil {
		return 0, dbg.ptraceErr("wait", err)
	}

	if ws.Exited() {
		dbg.exited = true
		dbg.exitCode = ws.ExitStatus()
	}

	return ws, nil
}

// siginfo is the head of the kernel's siginfo_t on x86-64. Only the three
// leading ints matter here; the rest is union padding.
type siginfo struct {
	Signo int32
	Errno int32
	Code  int32
	_     [116]byte
}

func (dbg *Engine) getSignalInfo() (*siginfo, error) {
	info := &siginfo{}
	err := dbg.onTrace(func() error {
		_, _, errno := syscall.Syscall6(syscall.SYS_PTRACE, unix.PTRACE_GETSIGINFO,
			uintptr(dbg.pid), 0, uintptr(unsafe.Pointer(info)), 0, 0)
		if errno != 0 {
			return errno
		}
		return nil
	})
	if err != nil {
		return nil, dbg.ptraceErr("getsiginfo", err)
	}
	return info, nil
}

// waitForSignal blocks until the tracee stops or exits, then dispatches
// on the stop signal. SIGTRAP splits by si_code: a breakpoint hit
// (SI_KERNEL or TRAP_BRKPT) rewinds PC past the trap byte and reports the
// source line; TRAP_TRACE is single-step completion and needs nothing.
func (dbg *Engine) waitForSignal() error {
	ws, err := dbg.wait()
	if err != nil {
		return err
	}
	if dbg.exited {
		Printf("tracee PID:%d exited with status %d\n", dbg.pid, dbg.exitCode)
		return errTraceeExited
	}
	if !ws.Stopped() {
		return nil
	}

	info, err := dbg.getSignalInfo()
	if err != nil {
		return err
	}

	switch unix.Signal(info.Signo) {
	case unix.SIGTRAP:
		return dbg.handleSigtrap(info)
	case unix.SIGSEGV:
		Printf("tracee got SIGSEGV, reason %d\n", info.Code)
		return nil
	default:
		Printf("tracee got signal %s\n", unix.SignalName(unix.Signal(info.Signo)))
		return nil
	}
}

func (dbg *Engine) handleSigtrap(info *siginfo) error {
	switch info.Code {
	case siKernel, trapBrkpt:
		// the trap instruction already executed, so PC sits one past
		// the 0xCC byte
		pc, err := dbg.GetRip()
		if err != nil {
			return err
		}
		if err := dbg.SetRip(pc - 1); err != nil {
			return err
		}
		entry, err := dbg.info.LineByPC(pc - 1)
		if err != nil {
			Printf("stopped at 0x%016x (no line info)\n", pc-1)
			return nil
		}
		dbg.reportLine(entry)
		return nil
	case trapTrace:
		return nil
	default:
		Printf("unknown SIGTRAP code %d\n", info.Code)
		return nil
	}
}

// continueExecution resumes the tracee: step over any breakpoint at the
// current PC, request PTRACE_CONT, then wait for the next stop.
func (dbg *Engine) continueExecution() error {
	if err := dbg.stepOverBreakpoint(); err != nil {
		return err
	}

	err := dbg.onTrace(func() error {
		return unix.PtraceCont(dbg.pid, 0)
	})
	if err != nil {
		return dbg.ptraceErr("cont", err)
	}

	return dbg.waitForSignal()
}
