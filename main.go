package main

import (
	"errors"
	"fmt"
	"os"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <program> <batch-file>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "       %s debug <program> [args...]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nThe two-argument form runs every case of <batch-file> under the\n")
	fmt.Fprintf(os.Stderr, "tracer and reports lines executed only by failing runs. The debug\n")
	fmt.Fprintf(os.Stderr, "form starts an interactive session.\n")
}

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	if os.Args[1] == "debug" {
		dbg, err := Launch(os.Args[2], os.Args[3:]...)
		if err != nil {
			LogError("%v", err)
			os.Exit(1)
		}
		defer dbg.Close()
		Printf("%s started with PID:%d\n", dbg.path, dbg.pid)
		dbg.Interactive()
		return
	}

	driver := NewBatchDriver(os.Args[1])
	if err := driver.Run(os.Args[2]); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogError("cannot open batch file %s", os.Args[2])
		} else {
			LogError("%v", err)
		}
		os.Exit(1)
	}
}
