package main

import (
	"fmt"
	"strconv"
	"strings"
)

type command struct {
	name string
	fn   func(*Engine, []string) error
}

// commands is the dispatch table. Lookup is by prefix: an exact name
// always wins, a unique prefix resolves, an ambiguous one is rejected
// with the candidate list.
var commands = []command{
	{"continue", (*Engine).cmdContinue},
	{"break", (*Engine).cmdBreak},
	{"step", (*Engine).cmdStep},
	{"next", (*Engine).cmdNext},
	{"finish", (*Engine).cmdFinish},
	{"stepi", (*Engine).cmdStepi},
	{"status", (*Engine).cmdStatus},
	{"register", (*Engine).cmdRegister},
	{"memory", (*Engine).cmdMemory},
	{"variables", (*Engine).cmdVariables},
	{"backtrace", (*Engine).cmdBacktrace},
	{"symbol", (*Engine).cmdSymbol},
}

func lookupCommand(word string) (*command, error) {
	var matches []*command
	for i := range commands {
		if commands[i].name == word {
			return &commands[i], nil
		}
		if strings.HasPrefix(commands[i].name, word) {
			matches = append(matches, &commands[i])
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("unknown command %q", word)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.name
		}
		return nil, fmt.Errorf("ambiguous command %q: %s", word, strings.Join(names, ", "))
	}
}

// handleCommand tokenizes one REPL line and dispatches it.
func (dbg *Engine) handleCommand(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, err := lookupCommand(args[0])
	if err != nil {
		return err
	}
	return cmd.fn(dbg, args)
}

// parseHex parses a 0x-prefixed hexadecimal literal.
func parseHex(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, fmt.Errorf("expected 0x-prefixed value, got %q", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad hex value %q", s)
	}
	return v, nil
}

func (dbg *Engine) cmdContinue(args []string) error {
	return dbg.continueExecution()
}

// cmdBreak accepts three location forms: a raw 0xADDR, file:line, or a
// function name.
func (dbg *Engine) cmdBreak(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: break <0xADDR|file:line|function>")
	}
	loc := args[1]

	switch {
	case strings.HasPrefix(loc, "0x") || strings.HasPrefix(loc, "0X"):
		addr, err := parseHex(loc)
		if err != nil {
			return err
		}
		return dbg.setBreakpointAtAddress(uintptr(addr))
	case strings.Contains(loc, ":"):
		parts := strings.SplitN(loc, ":", 2)
		line, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("bad line number %q", parts[1])
		}
		return dbg.setBreakpointAtSourceLine(parts[0], line)
	default:
		return dbg.setBreakpointAtFunction(loc)
	}
}

func (dbg *Engine) setBreakpointAtAddress(addr uintptr) error {
	_, err := dbg.bps.set(dbg, addr)
	return err
}

// setBreakpointAtFunction finds the subprogram DIE named name and plants
// a breakpoint one line-table entry past its low PC, skipping the
// prologue.
func (dbg *Engine) setBreakpointAtFunction(name string) error {
	fn, err := dbg.info.FuncByName(name)
	if err != nil {
		return fmt.Errorf("no function named %q", name)
	}
	entry, err := dbg.info.LineByPC(fn.LowPC)
	if err != nil {
		return err
	}
	after, err := dbg.info.LineAfter(entry.Address)
	if err != nil {
		return err
	}
	return dbg.setBreakpointAtAddress(uintptr(after.Address))
}

// setBreakpointAtSourceLine plants a breakpoint at the first
// statement-boundary row matching file:line.
func (dbg *Engine) setBreakpointAtSourceLine(file string, line int) error {
	entry, err := dbg.info.LineAtSourceLine(file, line)
	if err != nil {
		return fmt.Errorf("no statement at %s:%d", file, line)
	}
	return dbg.setBreakpointAtAddress(uintptr(entry.Address))
}

func (dbg *Engine) cmdStep(args []string) error {
	if err := dbg.stepIn(); err != nil {
		return err
	}
	entry, err := dbg.currentLine()
	if err != nil {
		return err
	}
	printSource(entry.File, entry.Line, 2)
	return nil
}

func (dbg *Engine) cmdNext(args []string) error {
	return dbg.stepOver()
}

func (dbg *Engine) cmdFinish(args []string) error {
	return dbg.stepOut()
}

func (dbg *Engine) cmdStepi(args []string) error {
	if err := dbg.singleStepWithBreakpointCheck(); err != nil {
		return err
	}
	entry, err := dbg.currentLine()
	if err != nil {
		return err
	}
	printSource(entry.File, entry.Line, 2)
	return nil
}

func (dbg *Engine) cmdStatus(args []string) error {
	entry, err := dbg.currentLine()
	if err != nil {
		return err
	}
	printSource(entry.File, entry.Line, 2)
	return nil
}

func (dbg *Engine) cmdRegister(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: register dump | read <r> | write <r> 0xVAL")
	}
	switch {
	case strings.HasPrefix("dump", args[1]):
		return dbg.dumpRegisters()
	case strings.HasPrefix("read", args[1]):
		if len(args) < 3 {
			return fmt.Errorf("usage: register read <r>")
		}
		v, err := dbg.ReadRegister(args[2])
		if err != nil {
			return err
		}
		Printf("%s 0x%016x\n", args[2], v)
		return nil
	case strings.HasPrefix("write", args[1]):
		if len(args) < 4 {
			return fmt.Errorf("usage: register write <r> 0xVAL")
		}
		v, err := parseHex(args[3])
		if err != nil {
			return err
		}
		return dbg.WriteRegister(args[2], v)
	default:
		return fmt.Errorf("unknown register subcommand %q", args[1])
	}
}

func (dbg *Engine) cmdMemory(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: memory read 0xADDR | write 0xADDR 0xVAL")
	}
	addr, err := parseHex(args[2])
	if err != nil {
		return err
	}
	switch {
	case strings.HasPrefix("read", args[1]):
		v, err := dbg.ReadWord(uintptr(addr))
		if err != nil {
			return err
		}
		Printf("%x\n", v)
		return nil
	case strings.HasPrefix("write", args[1]):
		if len(args) < 4 {
			return fmt.Errorf("usage: memory write 0xADDR 0xVAL")
		}
		v, err := parseHex(args[3])
		if err != nil {
			return err
		}
		return dbg.WriteWord(uintptr(addr), v)
	default:
		return fmt.Errorf("unknown memory subcommand %q", args[1])
	}
}

func (dbg *Engine) cmdVariables(args []string) error {
	return dbg.readVariables()
}

func (dbg *Engine) cmdBacktrace(args []string) error {
	return dbg.printBacktrace()
}

func (dbg *Engine) cmdSymbol(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: symbol <name>")
	}
	syms, err := dbg.lookupSymbol(args[1])
	if err != nil {
		return err
	}
	for _, s := range syms {
		Printf("%s %s 0x%016x\n", s.Name, s.Kind.String(), s.Addr)
	}
	return nil
}
