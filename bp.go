package main

import (
	"encoding/binary"
	"errors"

	"golang.org/x/sys/unix"
)

const int3 = 0xCC

// trapWord swaps the low byte of orig for the trap opcode, returning the
// trapped word and the byte it displaced.
func trapWord(orig uint64) (uint64, byte) {
	return (orig &^ 0xff) | int3, byte(orig & 0xff)
}

// restoreWord puts saved back into the low byte of the word currently in
// the tracee.
func restoreWord(current uint64, saved byte) uint64 {
	return (current &^ 0xff) | uint64(saved)
}

// Breakpoint owns a tracee address and the original byte the trap opcode
// overwrote at that address. Invariant: when enabled the tracee byte at
// addr is 0xCC and saved holds the original; when disabled the tracee
// byte is restored and saved is unspecified.
type Breakpoint struct {
	dbg     *Engine
	addr    uintptr
	saved   byte
	enabled bool
}

func newBreakpoint(dbg *Engine, addr uintptr) *Breakpoint {
	return &Breakpoint{dbg: dbg, addr: addr}
}

// enable arms the breakpoint. ptrace exposes only word-granular memory
// I/O, so arming is a read-modify-write swapping the low byte of the
// word at addr for 0xCC, run as one sequence on the tracing thread.
func (bp *Breakpoint) enable() error {
	if bp.enabled {
		return nil
	}

	word := make([]byte, 8)
	err := bp.dbg.onTrace(
		func() error {
			_, err := unix.PtracePeekData(bp.dbg.pid, bp.addr, word)
			return err
		},
		func() error {
			trapped, saved := trapWord(binary.LittleEndian.Uint64(word))
			bp.saved = saved
			binary.LittleEndian.PutUint64(word, trapped)
			_, err := unix.PtracePokeData(bp.dbg.pid, bp.addr, word)
			return err
		},
	)
	if err != nil {
		return bp.dbg.ptraceErr("peekpokedata", err)
	}

	bp.enabled = true
	return nil
}

// disable restores the saved byte into the word currently in the tracee.
func (bp *Breakpoint) disable() error {
	if !bp.enabled {
		return nil
	}

	word := make([]byte, 8)
	err := bp.dbg.onTrace(
		func() error {
			_, err := unix.PtracePeekData(bp.dbg.pid, bp.addr, word)
			return err
		},
		func() error {
			restored := restoreWord(binary.LittleEndian.Uint64(word), bp.saved)
			binary.LittleEndian.PutUint64(word, restored)
			_, err := unix.PtracePokeData(bp.dbg.pid, bp.addr, word)
			return err
		},
	)
	if err != nil {
		return bp.dbg.ptraceErr("peekpokedata", err)
	}

	bp.enabled = false
	return nil
}

func (bp *Breakpoint) isEnabled() bool {
	return bp.enabled
}

// BreakpointTable maps address to breakpoint; keys are unique. The
// engine exclusively owns the table and breakpoint objects never escape
// it across a resumption.
type BreakpointTable struct {
	byAddr map[uintptr]*Breakpoint
}

func newBreakpointTable() *BreakpointTable {
	return &BreakpointTable{byAddr: make(map[uintptr]*Breakpoint)}
}

func (t *BreakpointTable) at(addr uintptr) (*Breakpoint, bool) {
	bp, ok := t.byAddr[addr]
	return bp, ok
}

// set constructs, enables and inserts a breakpoint. An address may have
// at most one breakpoint.
func (t *BreakpointTable) set(dbg *Engine, addr uintptr) (*Breakpoint, error) {
	if _, exists := t.byAddr[addr]; exists {
		return nil, errors.New("breakpoint already set at this address")
	}
	bp := newBreakpoint(dbg, addr)
	if err := bp.enable(); err != nil {
		return nil, err
	}
	t.byAddr[addr] = bp
	return bp, nil
}

// remove disables (if enabled) and erases the breakpoint at addr.
func (t *BreakpointTable) remove(addr uintptr) error {
	bp, ok := t.byAddr[addr]
	if !ok {
		return nil
	}
	if bp.isEnabled() {
		if err := bp.disable(); err != nil {
			return err
		}
	}
	delete(t.byAddr, addr)
	return nil
}

func (t *BreakpointTable) len() int {
	return len(t.byAddr)
}

func (t *BreakpointTable) addrs() []uintptr {
	addrs := make([]uintptr, 0, len(t.byAddr))
	for a := range t.byAddr {
		addrs = append(addrs, a)
	}
	return addrs
}
