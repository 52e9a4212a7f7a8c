package main

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// ReadWord peeks one 8-byte word at addr. Memory I/O is word-granular;
// the caller composes sub-word reads.
func (dbg *Engine) ReadWord(addr uintptr) (uint64, error) {
	word := make([]byte, 8)
	err := dbg.onTrace(func() error {
		_, err := unix.PtracePeekData(dbg.pid, addr, word)
		return err
	})
	if err != nil {
		return 0, dbg.ptraceErr("peekdata", err)
	}
	return binary.LittleEndian.Uint64(word), nil
}

// WriteWord pokes one 8-byte word at addr.
func (dbg *Engine) WriteWord(addr uintptr, value uint64) error {
	word := make([]byte, 8)
	binary.LittleEndian.PutUint64(word, value)
	err := dbg.onTrace(func() error {
		_, err := unix.PtracePokeData(dbg.pid, addr, word)
		return err
	})
	if err != nil {
		return dbg.ptraceErr("pokedata", err)
	}
	return nil
}

// ReadSized reads a word at addr and masks it down to size bytes (1, 2,
// 4 or 8).
func (dbg *Engine) ReadSized(addr uintptr, size int) (uint64, error) {
	word, err := dbg.ReadWord(addr)
	if err != nil {
		return 0, err
	}
	return maskToSize(word, size), nil
}

func maskToSize(word uint64, size int) uint64 {
	switch size {
	case 1:
		return word & 0xff
	case 2:
		return word & 0xffff
	case 4:
		return word & 0xffffffff
	default:
		return word
	}
}
