package main

import (
	"encoding/binary"
	"fmt"

	"github.com/go-delve/delve/pkg/dwarf/op"
	"github.com/go-delve/delve/pkg/dwarf/regnum"
	"golang.org/x/sys/unix"
)

// cfaOffset is the distance from the saved frame pointer to the canonical
// frame address with frame pointers preserved: rbp points at the saved
// rbp, the return address sits above it, and the CFA is above that.
const cfaOffset = 16

// dwarfRegisterSnapshot captures the stopped tracee's register file as an
// op.DwarfRegisters indexed by DWARF register number, the shape
// op.ExecuteStackProgram consumes.
func (dbg *Engine) dwarfRegisterSnapshot() (*op.DwarfRegisters, error) {
	regs, err := dbg.getRegs()
	if err != nil {
		return nil, err
	}
	return buildDwarfRegisters(regs), nil
}

func buildDwarfRegisters(regs *unix.PtraceRegs) *op.DwarfRegisters {
	slots := make([]*op.DwarfRegister, regnum.AMD64_Gs_base+1)
	for _, rd := range registerDescriptors {
		if rd.Dwarf == noDwarfReg || rd.Dwarf >= uint64(len(slots)) {
			continue
		}
		f, err := fieldOf(regs, rd.Name)
		if err != nil {
			continue
		}
		slots[rd.Dwarf] = &op.DwarfRegister{Uint64Val: *f}
	}

	dregs := op.NewDwarfRegisters(0, slots, binary.LittleEndian,
		regnum.AMD64_Rip, regnum.AMD64_Rsp, regnum.AMD64_Rbp, 0)
	dregs.FrameBase = int64(regs.Rbp) + cfaOffset
	return dregs
}

// readVariables evaluates the DW_AT_location expression of every variable
// DIE in the function enclosing the current PC and prints name, location
// and value. Only address and register result kinds are interpreted;
// anything else is an unhandled-location error.
func (dbg *Engine) readVariables() error {
	pc, err := dbg.GetRip()
	if err != nil {
		return err
	}
	fn, err := dbg.info.FuncByPC(pc)
	if err != nil {
		return err
	}

	vars, err := dbg.info.VariablesOf(fn)
	if err != nil {
		return err
	}

	dregs, err := dbg.dwarfRegisterSnapshot()
	if err != nil {
		return err
	}

	for _, v := range vars {
		addr, pieces, err := op.ExecuteStackProgram(*dregs, v.Expr, dbg.info.ptrSize, nil)
		if err != nil {
			return fmt.Errorf("unhandled variable location for %s: %w", v.Name, err)
		}

		switch {
		case pieces == nil:
			size := 8
			if v.ByteSize > 0 && v.ByteSize < 8 {
				size = int(v.ByteSize)
			}
			value, err := dbg.ReadSized(uintptr(addr), size)
			if err != nil {
				return err
			}
			Printf("%s (0x%x) = %d\n", v.Name, uint64(addr), value)
		case len(pieces) == 1 && pieces[0].Kind == op.RegPiece:
			value, err := dbg.ReadRegisterByDwarf(pieces[0].Val)
			if err != nil {
				return err
			}
			Printf("%s (reg %d) = %d\n", v.Name, pieces[0].Val, value)
		default:
			return fmt.Errorf("unhandled variable location for %s", v.Name)
		}
	}
	return nil
}
