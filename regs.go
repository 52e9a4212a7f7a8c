package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-delve/delve/pkg/dwarf/regnum"
	"golang.org/x/sys/unix"
)

// noDwarfReg marks a register present in the kernel's register dump that
// the System V ABI does not assign a DWARF number to (Orig_rax).
const noDwarfReg = ^uint64(0)

// RegisterDescriptor pairs a register's printable name with its DWARF
// register number. The set is fixed at build time and ordered to match
// unix.PtraceRegs, the kernel's PTRACE_GETREGS layout.
type RegisterDescriptor struct {
	Name  string
	Dwarf uint64
}

// registerDescriptors is the fixed table of all 27 general and segment
// registers the kernel's per-task register dump exposes, DWARF-numbered
// via github.com/go-delve/delve/pkg/dwarf/regnum (the System V AMD64 ABI
// table), grounded in go-delve-delve's pkg/dwarf/regnum/amd64.go.
var registerDescriptors = []RegisterDescriptor{
	{"r15", regnum.AMD64_R15},
	{"r14", regnum.AMD64_R14},
	{"r13", regnum.AMD64_R13},
	{"r12", regnum.AMD64_R12},
	{"rbp", regnum.AMD64_Rbp},
	{"rbx", regnum.AMD64_Rbx},
	{"r11", regnum.AMD64_R11},
	{"r10", regnum.AMD64_R10},
	{"r9", regnum.AMD64_R9},
	{"r8", regnum.AMD64_R8},
	{"rax", regnum.AMD64_Rax},
	{"rcx", regnum.AMD64_Rcx},
	{"rdx", regnum.AMD64_Rdx},
	{"rsi", regnum.AMD64_Rsi},
	{"rdi", regnum.AMD64_Rdi},
	{"orig_rax", noDwarfReg},
	{"rip", regnum.AMD64_Rip},
	{"cs", regnum.AMD64_Cs},
	{"eflags", regnum.AMD64_Rflags},
	{"rsp", regnum.AMD64_Rsp},
	{"ss", regnum.AMD64_Ss},
	{"fs_base", regnum.AMD64_Fs_base},
	{"gs_base", regnum.AMD64_Gs_base},
	{"ds", regnum.AMD64_Ds},
	{"es", regnum.AMD64_Es},
	{"fs", regnum.AMD64_Fs},
	{"gs", regnum.AMD64_Gs},
}

func descriptorByName(name string) (RegisterDescriptor, bool) {
	name = strings.ToLower(name)
	for _, rd := range registerDescriptors {
		if rd.Name == name {
			return rd, true
		}
	}
	return RegisterDescriptor{}, false
}

func descriptorByDwarf(id uint64) (RegisterDescriptor, bool) {
	for _, rd := range registerDescriptors {
		if rd.Dwarf == id {
			return rd, true
		}
	}
	return RegisterDescriptor{}, false
}

func (dbg *Engine) getRegs() (*unix.PtraceRegs, error) {
	regs := &unix.PtraceRegs{}
	err := dbg.onTrace(func() error {
		return unix.PtraceGetRegs(dbg.pid, regs)
	})
	if err != nil {
		return nil, dbg.ptraceErr("getregs", err)
	}
	return regs, nil
}

func (dbg *Engine) setRegs(regs *unix.PtraceRegs) error {
	err := dbg.onTrace(func() error {
		return unix.PtraceSetRegs(dbg.pid, regs)
	})
	if err != nil {
		return dbg.ptraceErr("setregs", err)
	}
	return nil
}

func fieldOf(regs *unix.PtraceRegs, name string) (*uint64, error) {
	switch name {
	case "r15":
		return &regs.R15, nil
	case "r14":
		return &regs.R14, nil
	case "r13":
		return &regs.R13, nil
	case "r12":
		return &regs.R12, nil
	case "rbp":
		return &regs.Rbp, nil
	case "rbx":
		return &regs.Rbx, nil
	case "r11":
		return &regs.R11, nil
	case "r10":
		return &regs.R10, nil
	case "r9":
		return &regs.R9, nil
	case "r8":
		return &regs.R8, nil
	case "rax":
		return &regs.Rax, nil
	case "rcx":
		return &regs.Rcx, nil
	case "rdx":
		return &regs.Rdx, nil
	case "rsi":
		return &regs.Rsi, nil
	case "rdi":
		return &regs.Rdi, nil
	case "orig_rax":
		return &regs.Orig_rax, nil
	case "rip":
		return &regs.Rip, nil
	case "cs":
		return &regs.Cs, nil
	case "eflags":
		return &regs.Eflags, nil
	case "rsp":
		return &regs.Rsp, nil
	case "ss":
		return &regs.Ss, nil
	case "fs_base":
		return &regs.Fs_base, nil
	case "gs_base":
		return &regs.Gs_base, nil
	case "ds":
		return &regs.Ds, nil
	case "es":
		return &regs.Es, nil
	case "fs":
		return &regs.Fs, nil
	case "gs":
		return &regs.Gs, nil
	default:
		return nil, fmt.Errorf("invalid register %q", name)
	}
}

// ReadRegister reads a single register by symbolic name. Fails when the
// name is unknown or the tracee is not stopped.
func (dbg *Engine) ReadRegister(name string) (uint64, error) {
	if !dbg.isStopped() {
		return 0, errors.New("tracee is not stopped")
	}
	if _, ok := descriptorByName(name); !ok {
		return 0, fmt.Errorf("unknown register %q", name)
	}
	regs, err := dbg.getRegs()
	if err != nil {
		return 0, err
	}
	f, err := fieldOf(regs, strings.ToLower(name))
	if err != nil {
		return 0, err
	}
	return *f, nil
}

// WriteRegister writes a single register by symbolic name.
func (dbg *Engine) WriteRegister(name string, value uint64) error {
	if !dbg.isStopped() {
		return errors.New("tracee is not stopped")
	}
	if _, ok := descriptorByName(name); !ok {
		return fmt.Errorf("unknown register %q", name)
	}
	regs, err := dbg.getRegs()
	if err != nil {
		return err
	}
	f, err := fieldOf(regs, strings.ToLower(name))
	if err != nil {
		return err
	}
	*f = value
	return dbg.setRegs(regs)
}

// ReadRegisterByDwarf resolves a register by its DWARF register number,
// used by the location-expression evaluator (vars.go).
func (dbg *Engine) ReadRegisterByDwarf(id uint64) (uint64, error) {
	rd, ok := descriptorByDwarf(id)
	if !ok {
		return 0, fmt.Errorf("no register for DWARF id %d", id)
	}
	return dbg.ReadRegister(rd.Name)
}

func (dbg *Engine) GetRip() (uint64, error) {
	return dbg.ReadRegister("rip")
}

func (dbg *Engine) SetRip(pc uint64) error {
	return dbg.WriteRegister("rip", pc)
}

// dumpRegisters prints every descriptor's current value.
func (dbg *Engine) dumpRegisters() error {
	regs, err := dbg.getRegs()
	if err != nil {
		return err
	}
	for _, rd := range registerDescriptors {
		f, err := fieldOf(regs, rd.Name)
		if err != nil {
			continue
		}
		Printf("%s 0x%016x\n", rd.Name, *f)
	}
	return nil
}
