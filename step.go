package main

import (
	"bufio"
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// ErrNoFramePointer reports a null rbp where a saved frame was expected.
// Stepping out, stepping over and backtraces all walk rbp chains and
// refuse to chase garbage when the tracee omits frame pointers.
var ErrNoFramePointer = errors.New("no frame pointer; tracee must be compiled without -fomit-frame-pointer")

// stepOverBreakpoint resumes past a breakpoint at the current PC without
// losing it: disable, single-step the original instruction, re-enable.
func (dbg *Engine) stepOverBreakpoint() error {
	pc, err := dbg.GetRip()
	if err != nil {
		return err
	}

	bp, ok := dbg.bps.at(uintptr(pc))
	if !ok || !bp.isEnabled() {
		return nil
	}

	if err := bp.disable(); err != nil {
		return err
	}
	if err := dbg.singleStepInstruction(); err != nil {
		return err
	}
	return bp.enable()
}

func (dbg *Engine) singleStepInstruction() error {
	err := dbg.onTrace(func() error {
		return unix.PtraceSingleStep(dbg.pid)
	})
	if err != nil {
		return dbg.ptraceErr("singlestep", err)
	}
	return dbg.waitForSignal()
}

// singleStepWithBreakpointCheck advances one instruction, routing through
// the breakpoint save/restore when the current PC is trapped, then reports
// the source line arrived at.
func (dbg *Engine) singleStepWithBreakpointCheck() error {
	pc, err := dbg.GetRip()
	if err != nil {
		return err
	}

	if _, ok := dbg.bps.at(uintptr(pc)); ok {
		if err := dbg.stepOverBreakpoint(); err != nil {
			return err
		}
	} else {
		if err := dbg.singleStepInstruction(); err != nil {
			return err
		}
	}

	pc, err = dbg.GetRip()
	if err != nil {
		return err
	}
	entry, err := dbg.info.LineByPC(pc)
	if err != nil {
		return err
	}
	dbg.reportLine(entry)
	return nil
}

// stepIn single-steps instructions until the PC maps to a different
// source line.
func (dbg *Engine) stepIn() error {
	start, err := dbg.currentLine()
	if err != nil {
		return err
	}

	for {
		if err := dbg.singleStepWithBreakpointCheck(); err != nil {
			return err
		}
		cur, err := dbg.currentLine()
		if err != nil {
			return err
		}
		if cur.Line != start.Line {
			return nil
		}
	}
}

// stepOut installs a temporary breakpoint at the return address stored at
// *(rbp+8) and resumes. The breakpoint is removed on every exit path.
func (dbg *Engine) stepOut() error {
	retAddr, err := dbg.returnAddress()
	if err != nil {
		return err
	}

	inserted := false
	if _, ok := dbg.bps.at(uintptr(retAddr)); !ok {
		if _, err := dbg.bps.set(dbg, uintptr(retAddr)); err != nil {
			return err
		}
		inserted = true
	}
	defer func() {
		if inserted {
			dbg.bps.remove(uintptr(retAddr))
		}
	}()

	return dbg.continueExecution()
}

// stepOver plants temporary breakpoints on every other line of the
// enclosing function plus the return address, resumes, and removes them
// all once any of them fires.
func (dbg *Engine) stepOver() error {
	pc, err := dbg.GetRip()
	if err != nil {
		return err
	}
	fn, err := dbg.info.FuncByPC(pc)
	if err != nil {
		return err
	}
	startLine, err := dbg.info.LineByPC(pc)
	if err != nil {
		return err
	}

	var toRemove []uintptr
	defer func() {
		for _, addr := range toRemove {
			dbg.bps.remove(addr)
		}
	}()

	for _, entry := range dbg.info.LinesInRange(fn.LowPC, fn.HighPC) {
		if entry.Address == startLine.Address {
			continue
		}
		if _, ok := dbg.bps.at(uintptr(entry.Address)); ok {
			continue
		}
		if _, err := dbg.bps.set(dbg, uintptr(entry.Address)); err != nil {
			return err
		}
		toRemove = append(toRemove, uintptr(entry.Address))
	}

	retAddr, err := dbg.returnAddress()
	if err != nil {
		return err
	}
	if _, ok := dbg.bps.at(uintptr(retAddr)); !ok {
		if _, err := dbg.bps.set(dbg, uintptr(retAddr)); err != nil {
			return err
		}
		toRemove = append(toRemove, uintptr(retAddr))
	}

	return dbg.continueExecution()
}

// returnAddress reads the saved return address at *(rbp+8). Requires the
// tracee to keep frame pointers; a null frame pointer is reported rather
// than chased.
func (dbg *Engine) returnAddress() (uint64, error) {
	fp, err := dbg.ReadRegister("rbp")
	if err != nil {
		return 0, err
	}
	if fp == 0 {
		return 0, ErrNoFramePointer
	}
	return dbg.ReadWord(uintptr(fp + 8))
}

func (dbg *Engine) currentLine() (LineEntry, error) {
	pc, err := dbg.GetRip()
	if err != nil {
		return LineEntry{}, err
	}
	return dbg.info.LineByPC(pc)
}

// reportLine prints the source position just arrived at, suppressing
// consecutive duplicates. Advice mode additionally counts each entry into
// a new line.
func (dbg *Engine) reportLine(entry LineEntry) {
	if entry.Line == dbg.lastLine {
		return
	}
	dbg.lastLine = entry.Line
	if dbg.advice {
		dbg.hits[entry.Line]++
	}
	Printf("line %d: %s\n", entry.Line, readSourceLine(entry.File, entry.Line))
}

// printSource shows line with context lines around it, the current line
// marked with ">".
func printSource(file string, line, context int) {
	f, err := os.Open(file)
	if err != nil {
		Printf("%s:%d\n", file, line)
		return
	}
	defer f.Close()

	start := line - context
	if start < 1 {
		start = 1
	}
	end := line + context

	cur := 1
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if cur > end {
			break
		}
		if cur >= start {
			marker := "  "
			if cur == line {
				marker = "> "
			}
			Printf("%s%d\t%s\n", marker, cur, scanner.Text())
		}
		cur++
	}
}

func readSourceLine(file string, line int) string {
	f, err := os.Open(file)
	if err != nil {
		return ""
	}
	defer f.Close()

	cur := 1
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if cur == line {
			return scanner.Text()
		}
		cur++
	}
	return ""
}
