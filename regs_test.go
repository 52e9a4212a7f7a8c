package main

import (
	"testing"

	"github.com/go-delve/delve/pkg/dwarf/regnum"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

// The descriptor set mirrors the kernel's PTRACE_GETREGS layout: all 27
// general and segment registers, in dump order.
func TestRegisterDescriptorCount(t *testing.T) {
	assert.Len(t, registerDescriptors, 27)
}

func TestRegisterDescriptorNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, rd := range registerDescriptors {
		assert.False(t, seen[rd.Name], "duplicate register name %s", rd.Name)
		seen[rd.Name] = true
	}
}

func TestRegisterDescriptorDwarfIdsUnique(t *testing.T) {
	seen := make(map[uint64]string)
	for _, rd := range registerDescriptors {
		if rd.Dwarf == noDwarfReg {
			continue
		}
		prev, dup := seen[rd.Dwarf]
		assert.False(t, dup, "DWARF id %d assigned to both %s and %s", rd.Dwarf, prev, rd.Name)
		seen[rd.Dwarf] = rd.Name
	}
}

func TestDescriptorByName(t *testing.T) {
	rd, ok := descriptorByName("rip")
	assert.True(t, ok)
	assert.Equal(t, uint64(regnum.AMD64_Rip), rd.Dwarf)

	// lookup is case-insensitive
	rd, ok = descriptorByName("RBP")
	assert.True(t, ok)
	assert.Equal(t, uint64(regnum.AMD64_Rbp), rd.Dwarf)

	_, ok = descriptorByName("xmm0")
	assert.False(t, ok)
}

func TestDescriptorByDwarf(t *testing.T) {
	rd, ok := descriptorByDwarf(regnum.AMD64_Rax)
	assert.True(t, ok)
	assert.Equal(t, "rax", rd.Name)

	_, ok = descriptorByDwarf(noDwarfReg)
	assert.False(t, ok)
}

// Every descriptor must resolve to a field of the kernel dump; a typo in
// either table would silently break read/write by name.
func TestFieldOfCoversAllDescriptors(t *testing.T) {
	regs := &unix.PtraceRegs{}
	for _, rd := range registerDescriptors {
		f, err := fieldOf(regs, rd.Name)
		assert.NoError(t, err, "register %s", rd.Name)
		assert.NotNil(t, f, "register %s", rd.Name)
	}
}

func TestFieldOfWriteReadRoundTrip(t *testing.T) {
	regs := &unix.PtraceRegs{}
	f, err := fieldOf(regs, "rax")
	assert.NoError(t, err)
	*f = 0x1234
	assert.Equal(t, uint64(0x1234), regs.Rax)

	got, err := fieldOf(regs, "rax")
	assert.NoError(t, err)
	assert.Equal(t, uint64(0x1234), *got)
}
