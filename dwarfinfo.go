package main

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a PC maps to no function or line entry.
// The advice loop consumes it as the end-of-instrumented-code signal.
var ErrNotFound = errors.New("not found")

// LineEntry is one row of a compilation unit's line table.
type LineEntry struct {
	File    string
	Line    int
	IsStmt  bool
	Address uint64
}

// Func is the narrow view of a subprogram DIE the engine needs: a name
// and a PC range.
type Func struct {
	Name          string
	LowPC, HighPC uint64
}

func (f *Func) contains(pc uint64) bool {
	return f != nil && pc >= f.LowPC && pc < f.HighPC
}

// compileUnit holds one CU's cached line table (address-sorted) and
// function list, grounded on gni-dev-cmd's internal/dbg/proc/compileunit.go.
type compileUnit struct {
	name          string
	lowPC, highPC uint64
	lines         []LineEntry
	funcs         []*Func
}

// DebugInfo is a narrow view over debug/dwarf + debug/elf exposing CU
// iteration, line-table lookup and function lookup by PC or name.
type DebugInfo struct {
	elfFile *elf.File
	dwarf   *dwarf.Data
	cus     []*compileUnit
	ptrSize int
}

// LoadDebugInfo opens path's ELF and DWARF views and caches every CU's
// line table and subprogram list up front.
func LoadDebugInfo(path string) (*DebugInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}

	d, err := f.DWARF()
	if err != nil {
		f.Close()
		return nil, err
	}

	di := &DebugInfo{elfFile: f, dwarf: d, ptrSize: 8}
	if err := di.load(); err != nil {
		f.Close()
		return nil, err
	}
	return di, nil
}

func (di *DebugInfo) Close() error {
	return di.elfFile.Close()
}

func (di *DebugInfo) ELF() *elf.File {
	return di.elfFile
}

func (di *DebugInfo) load() error {
	r := di.dwarf.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return err
		}
		if e == nil {
			break
		}
		if e.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}

		cu := &compileUnit{}
		cu.name, _ = e.Val(dwarf.AttrName).(string)
		if lo, ok := e.Val(dwarf.AttrLowpc).(uint64); ok {
			cu.lowPC = lo
		}
		if hi := e.Val(dwarf.AttrHighpc); hi != nil {
			switch v := hi.(type) {
			case uint64:
				cu.highPC = v
			case int64:
				cu.highPC = cu.lowPC + uint64(v)
			}
		}

		if err := cu.loadLines(di.dwarf, e); err != nil {
			return err
		}
		if e.Children {
			if err := cu.loadFuncs(di.dwarf, r); err != nil {
				return err
			}
		}
		di.cus = append(di.cus, cu)
	}
	return nil
}

func (cu *compileUnit) loadLines(d *dwarf.Data, e *dwarf.Entry) error {
	lr, err := d.LineReader(e)
	if err != nil || lr == nil {
		return nil
	}
	for {
		var le dwarf.LineEntry
		err := lr.Next(&le)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		cu.lines = append(cu.lines, LineEntry{
			File:    le.File.Name,
			Line:    le.Line,
			IsStmt:  le.IsStmt,
			Address: le.Address,
		})
	}
	sortLineEntries(cu.lines)
	return nil
}

func sortLineEntries(lines []LineEntry) {
	for i := 1; i < len(lines); i++ {
		for j := i; j > 0 && lines[j-1].Address > lines[j].Address; j-- {
			lines[j-1], lines[j] = lines[j], lines[j-1]
		}
	}
}

// loadFuncs walks the CU's immediate children for DW_TAG_subprogram DIEs,
// grounded on gni-dev-cmd's compileUnit.loadDebugInfo.
func (cu *compileUnit) loadFuncs(d *dwarf.Data, r *dwarf.Reader) error {
	depth := 0
	for {
		e, err := r.Next()
		if err != nil {
			return err
		}
		if e == nil {
			return nil
		}
		if e.Tag == 0 {
			if depth == 0 {
				return nil
			}
			depth--
			continue
		}
		if e.Tag == dwarf.TagSubprogram {
			name, _ := e.Val(dwarf.AttrName).(string)
			var lo, hi uint64
			if v, ok := e.Val(dwarf.AttrLowpc).(uint64); ok {
				lo = v
			}
			if hv := e.Val(dwarf.AttrHighpc); hv != nil {
				switch v := hv.(type) {
				case uint64:
					hi = v
				case int64:
					hi = lo + uint64(v)
				}
			}
			if name != "" && hi > lo {
				cu.funcs = append(cu.funcs, &Func{Name: name, LowPC: lo, HighPC: hi})
			}
			if e.Children {
				r.SkipChildren()
			}
			continue
		}
		if e.Children {
			depth++
		}
	}
}

func (cu *compileUnit) contains(pc uint64) bool {
	return pc >= cu.lowPC && pc < cu.highPC
}

// FuncByPC scans CUs for the one whose range contains pc, then its
// subprogram whose range contains pc.
func (di *DebugInfo) FuncByPC(pc uint64) (*Func, error) {
	for _, cu := range di.cus {
		if !cu.contains(pc) {
			continue
		}
		for _, f := range cu.funcs {
			if f.contains(pc) {
				return f, nil
			}
		}
	}
	return nil, ErrNotFound
}

// FuncByName returns the first subprogram DIE named name, for
// set_breakpoint_at_function.
func (di *DebugInfo) FuncByName(name string) (*Func, error) {
	for _, cu := range di.cus {
		for _, f := range cu.funcs {
			if f.Name == name {
				return f, nil
			}
		}
	}
	return nil, ErrNotFound
}

// LineByPC implements get_line_entry_from_pc: the CU's line table entry
// with address <= pc closest to pc (nearest entry, end sentinel if pc
// falls outside any row).
func (di *DebugInfo) LineByPC(pc uint64) (LineEntry, error) {
	for _, cu := range di.cus {
		if !cu.contains(pc) {
			continue
		}
		return cu.findAddress(pc)
	}
	return LineEntry{}, ErrNotFound
}

func (cu *compileUnit) findAddress(pc uint64) (LineEntry, error) {
	var best LineEntry
	found := false
	for _, l := range cu.lines {
		if l.Address <= pc && (!found || l.Address > best.Address) {
			best = l
			found = true
		}
	}
	if !found {
		return LineEntry{}, ErrNotFound
	}
	return best, nil
}

// LineAfter returns the line-table entry immediately following the one
// at address addr, in address order — used to skip the function prologue
// in set_breakpoint_at_function.
func (di *DebugInfo) LineAfter(addr uint64) (LineEntry, error) {
	for _, cu := range di.cus {
		for i, l := range cu.lines {
			if l.Address == addr && i+1 < len(cu.lines) {
				return cu.lines[i+1], nil
			}
		}
	}
	return LineEntry{}, ErrNotFound
}

// LinesInRange returns every line-table row with lowPC <= address < highPC
// for the CU owning lowPC, in address order — used by step_over to plant
// temporary breakpoints across the enclosing function's body.
func (di *DebugInfo) LinesInRange(lowPC, highPC uint64) []LineEntry {
	for _, cu := range di.cus {
		if !cu.contains(lowPC) {
			continue
		}
		var out []LineEntry
		for _, l := range cu.lines {
			if l.Address >= lowPC && l.Address < highPC {
				out = append(out, l)
			}
		}
		return out
	}
	return nil
}

// LineAtSourceLine implements set_breakpoint_at_source_line: the CU whose
// name has file as a path suffix, then the first statement-boundary row
// matching line.
func (di *DebugInfo) LineAtSourceLine(file string, line int) (LineEntry, error) {
	for _, cu := range di.cus {
		if !hasPathSuffix(cu.name, file) {
			continue
		}
		for _, l := range cu.lines {
			if l.IsStmt && l.Line == line {
				return l, nil
			}
		}
	}
	return LineEntry{}, ErrNotFound
}

func hasPathSuffix(full, suffix string) bool {
	full = filepath.ToSlash(full)
	suffix = filepath.ToSlash(suffix)
	return full == suffix || strings.HasSuffix(full, "/"+suffix)
}

// VarLocation is one variable DIE's name and raw DW_AT_location exprloc
// bytes, consumed by vars.go's evaluator.
type VarLocation struct {
	Name     string
	ByteSize int64
	Expr     []byte
}

// VariablesOf returns every child DIE of fn's subprogram DIE tagged
// DW_TAG_variable along with its DW_AT_location exprloc, for
// the variables command. Only expression-location variables are
// returned; loclist-based locations surface as unhandled-location
// errors at the caller.
func (di *DebugInfo) VariablesOf(fn *Func) ([]VarLocation, error) {
	r := di.dwarf.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, ErrNotFound
		}
		if e.Tag != dwarf.TagSubprogram {
			continue
		}
		name, _ := e.Val(dwarf.AttrName).(string)
		if name != fn.Name {
			continue
		}
		break
	}

	var vars []VarLocation
	depth := 0
	for {
		e, err := r.Next()
		if err != nil {
			return nil, err
		}
		if e == nil {
			break
		}
		if e.Tag == 0 {
			if depth == 0 {
				break
			}
			depth--
			continue
		}
		if e.Tag == dwarf.TagVariable {
			name, _ := e.Val(dwarf.AttrName).(string)
			var size int64
			if off, ok := e.Val(dwarf.AttrType).(dwarf.Offset); ok {
				if t, err := di.dwarf.Type(off); err == nil {
					size = t.Size()
				}
			}
			if loc, ok := e.Val(dwarf.AttrLocation).([]byte); ok {
				vars = append(vars, VarLocation{Name: name, ByteSize: size, Expr: loc})
			}
			if e.Children {
				r.SkipChildren()
			}
			continue
		}
		if e.Children {
			depth++
		}
	}
	return vars, nil
}
