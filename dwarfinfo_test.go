package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDebugInfo() *DebugInfo {
	cu := &compileUnit{
		name:  "/src/prog/main.c",
		lowPC: 0x1000, highPC: 0x2000,
		lines: []LineEntry{
			{File: "/src/prog/main.c", Line: 3, IsStmt: true, Address: 0x1000},
			{File: "/src/prog/main.c", Line: 4, IsStmt: true, Address: 0x1010},
			{File: "/src/prog/main.c", Line: 4, IsStmt: false, Address: 0x1018},
			{File: "/src/prog/main.c", Line: 5, IsStmt: true, Address: 0x1020},
			{File: "/src/prog/main.c", Line: 8, IsStmt: true, Address: 0x1100},
			{File: "/src/prog/main.c", Line: 9, IsStmt: true, Address: 0x1110},
		},
		funcs: []*Func{
			{Name: "main", LowPC: 0x1000, HighPC: 0x1100},
			{Name: "f", LowPC: 0x1100, HighPC: 0x1200},
		},
	}
	return &DebugInfo{cus: []*compileUnit{cu}, ptrSize: 8}
}

func TestFuncByPC(t *testing.T) {
	di := testDebugInfo()

	fn, err := di.FuncByPC(0x1050)
	assert.NoError(t, err)
	assert.Equal(t, "main", fn.Name)

	fn, err = di.FuncByPC(0x1100)
	assert.NoError(t, err)
	assert.Equal(t, "f", fn.Name)

	_, err = di.FuncByPC(0x9000)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFuncByName(t *testing.T) {
	di := testDebugInfo()

	fn, err := di.FuncByName("f")
	assert.NoError(t, err)
	assert.Equal(t, uint64(0x1100), fn.LowPC)

	_, err = di.FuncByName("g")
	assert.ErrorIs(t, err, ErrNotFound)
}

// find_address returns the nearest entry with address <= pc.
func TestLineByPCNearest(t *testing.T) {
	di := testDebugInfo()

	entry, err := di.LineByPC(0x1010)
	assert.NoError(t, err)
	assert.Equal(t, 4, entry.Line)

	// between rows resolves to the preceding row
	entry, err = di.LineByPC(0x101c)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0x1018), entry.Address)

	_, err = di.LineByPC(0x9000)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLineAfterSkipsPrologue(t *testing.T) {
	di := testDebugInfo()

	entry, err := di.LineAfter(0x1000)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0x1010), entry.Address)
	assert.Equal(t, 4, entry.Line)
}

func TestLinesInRange(t *testing.T) {
	di := testDebugInfo()

	lines := di.LinesInRange(0x1000, 0x1100)
	assert.Len(t, lines, 4)
	for _, l := range lines {
		assert.Less(t, l.Address, uint64(0x1100))
	}

	assert.Empty(t, di.LinesInRange(0x9000, 0x9100))
}

// Breakpoints by file:line land on statement boundaries only, and the
// chosen address maps back to the requested line.
func TestLineAtSourceLine(t *testing.T) {
	di := testDebugInfo()

	entry, err := di.LineAtSourceLine("main.c", 5)
	assert.NoError(t, err)
	assert.True(t, entry.IsStmt)
	assert.Equal(t, 5, entry.Line)

	back, err := di.LineByPC(entry.Address)
	assert.NoError(t, err)
	assert.Equal(t, 5, back.Line)

	_, err = di.LineAtSourceLine("other.c", 5)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = di.LineAtSourceLine("main.c", 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHasPathSuffix(t *testing.T) {
	assert.True(t, hasPathSuffix("/src/prog/main.c", "main.c"))
	assert.True(t, hasPathSuffix("/src/prog/main.c", "prog/main.c"))
	assert.True(t, hasPathSuffix("main.c", "main.c"))
	assert.False(t, hasPathSuffix("/src/prog/xmain.c", "main.c"))
	assert.False(t, hasPathSuffix("main.c", "/src/prog/main.c"))
}

func TestSortLineEntries(t *testing.T) {
	lines := []LineEntry{
		{Address: 0x30}, {Address: 0x10}, {Address: 0x20},
	}
	sortLineEntries(lines)
	assert.Equal(t, uint64(0x10), lines[0].Address)
	assert.Equal(t, uint64(0x20), lines[1].Address)
	assert.Equal(t, uint64(0x30), lines[2].Address)
}
