package main

// printBacktrace walks saved frame pointers from the current frame until
// it reaches main. Frame N+1's return address lives at *(rbp+8) and its
// caller's rbp at *rbp, so this only works while frame pointers are
// preserved.
func (dbg *Engine) printBacktrace() error {
	pc, err := dbg.GetRip()
	if err != nil {
		return err
	}
	fn, err := dbg.info.FuncByPC(pc)
	if err != nil {
		return err
	}

	frame := 0
	emit := func(f *Func) {
		Printf("frame #%d: 0x%016x %s\n", frame, f.LowPC, f.Name)
		frame++
	}
	emit(fn)

	fp, err := dbg.ReadRegister("rbp")
	if err != nil {
		return err
	}
	if fp == 0 {
		return ErrNoFramePointer
	}
	retAddr, err := dbg.ReadWord(uintptr(fp + 8))
	if err != nil {
		return err
	}

	for fn.Name != "main" {
		fn, err = dbg.info.FuncByPC(retAddr)
		if err != nil {
			return err
		}
		emit(fn)

		fp, err = dbg.ReadWord(uintptr(fp))
		if err != nil {
			return err
		}
		if fp == 0 {
			return ErrNoFramePointer
		}
		retAddr, err = dbg.ReadWord(uintptr(fp + 8))
		if err != nil {
			return err
		}
	}
	return nil
}
