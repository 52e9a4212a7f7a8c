package main

import (
	"debug/elf"
)

type SymbolKind int

const (
	SymNoType SymbolKind = iota
	SymObject
	SymFunc
	SymSection
	SymFile
)

func (k SymbolKind) String() string {
	switch k {
	case SymObject:
		return "object"
	case SymFunc:
		return "func"
	case SymSection:
		return "section"
	case SymFile:
		return "file"
	default:
		return "notype"
	}
}

// Symbol is one record from the ELF symbol or dynamic-symbol table.
type Symbol struct {
	Kind SymbolKind
	Name string
	Addr uint64
}

func toSymbolKind(t elf.SymType) SymbolKind {
	switch t {
	case elf.STT_OBJECT:
		return SymObject
	case elf.STT_FUNC:
		return SymFunc
	case elf.STT_SECTION:
		return SymSection
	case elf.STT_FILE:
		return SymFile
	default:
		return SymNoType
	}
}

// lookupSymbol scans SHT_SYMTAB and SHT_DYNSYM for every record whose
// name equals name.
func (dbg *Engine) lookupSymbol(name string) ([]Symbol, error) {
	var out []Symbol

	tables := []func() ([]elf.Symbol, error){
		dbg.info.ELF().Symbols,
		dbg.info.ELF().DynamicSymbols,
	}
	for _, table := range tables {
		syms, err := table()
		if err != nil {
			// a stripped or static binary may lack one of the tables
			continue
		}
		for _, s := range syms {
			if s.Name != name {
				continue
			}
			out = append(out, Symbol{
				Kind: toSymbolKind(elf.ST_TYPE(s.Info)),
				Name: s.Name,
				Addr: s.Value,
			})
		}
	}
	return out, nil
}
