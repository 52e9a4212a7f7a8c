package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
)

// Interactive runs the REPL until the tracee exits or the user quits.
func (dbg *Engine) Interactive() {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "[minidbg]$ ",
		HistoryFile:       "/tmp/minidbg_history.txt",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		LogError("readline init: %v", err)
		return
	}
	defer rl.Close()

	for {
		if rip, err := dbg.GetRip(); err == nil {
			rl.SetPrompt(fmt.Sprintf("[%sminidbg%s:%s0x%x%s]$ ", ColorCyan, ColorReset, ColorCyan, rip, ColorReset))
		} else {
			rl.SetPrompt("[minidbg]$ ")
		}

		req, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			break
		}
		if req == "" {
			continue
		}
		if req == "q" || req == "quit" || req == "exit" {
			break
		}

		if err := dbg.handleCommand(req); err != nil {
			if errors.Is(err, errTraceeExited) {
				break
			}
			LogError(err.Error())
		}
	}
}
