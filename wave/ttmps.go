package wave

import "github.com/sarchlab/wavedbg/regs"

// TrapHandlerTtmpsInitialized reports whether the trap temporaries the
// debugger relies on hold meaningful data. Chips where the SPI initializes
// them always report true; chips where the trap handler owns the setup
// carry a per-wave marker bit.
func (w *Wave) TrapHandlerTtmpsInitialized() (bool, error) {
	if !w.arch.TrapHandlerOwnsTtmps {
		return true, nil
	}
	if w.arch.Gen == regs.Gen12 {
		ttmp8, err := regs.ReadUint32(w.file, regs.TTMP8)
		return ttmp8&regs.TTMP8DebugMark != 0, err
	}
	ttmp11, err := regs.ReadUint32(w.file, regs.TTMP11)
	return ttmp11&regs.TTMP11TrapHandlerSetup != 0, err
}

// InitializeSPITtmps resets the trap temporaries the SPI normally fills at
// wave launch, for waves created before the debugger attached. Information
// the trap handler already stored in ttmp6 is preserved when the wave is
// known to have passed through the trap handler.
func (w *Wave) InitializeSPITtmps() error {
	if w.arch.TrapHandlerOwnsTtmps {
		if w.arch.Gen == regs.Gen12 {
			for _, r := range []regs.Regnum{regs.TTMP7, regs.TTMP8,
				regs.TTMP9} {
				if err := regs.WriteUint32(w.file, r, 0); err != nil {
					return err
				}
			}
			return nil
		}
		for _, r := range []regs.Regnum{regs.TTMP8, regs.TTMP9,
			regs.TTMP10, regs.TTMP11} {
			if err := regs.WriteUint32(w.file, r, 0); err != nil {
				return err
			}
		}
		return nil
	}

	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return err
	}
	ttmp11, err := regs.ReadUint32(w.file, regs.TTMP11)
	if err != nil {
		return err
	}

	ttmp11 &^= regs.TTMP11WaveInGroupMask
	ttmp6, err = w.scrubTrapHandlerState(ttmp6)
	if err != nil {
		return err
	}

	for _, r := range []regs.Regnum{regs.TTMP8, regs.TTMP9, regs.TTMP10} {
		if err := regs.WriteUint32(w.file, r, 0); err != nil {
			return err
		}
	}
	if err := regs.WriteUint32(w.file, regs.TTMP6, ttmp6); err != nil {
		return err
	}
	return regs.WriteUint32(w.file, regs.TTMP11, ttmp11)
}

// scrubTrapHandlerState clears ttmp6, keeping the stop marker, saved halt
// flag, and trap id when the wave demonstrably ran the trap handler. From
// ABI version 10 on, the trap handler sets status.skip_export on every wave
// it halts, which proves the ttmp6 contents are the handler's.
func (w *Wave) scrubTrapHandlerState(ttmp6 uint32) (uint32, error) {
	if w.abiVersion < 10 {
		return 0, nil
	}
	status, err := regs.ReadUint32(w.file, regs.Status)
	if err != nil {
		return 0, err
	}
	if status&regs.StatusSkipExport == 0 {
		return 0, nil
	}
	return ttmp6 & (regs.TTMP6WaveStopped | regs.TTMP6SavedStatusHalt |
		regs.TTMP6SavedTrapIDMask), nil
}

// InitializeTrapHandlerTtmps performs the setup the trap handler would do
// on first entry for the wave, then sets the marker bit. It only applies
// to chips where the trap handler owns the ttmps.
func (w *Wave) InitializeTrapHandlerTtmps() error {
	if !w.arch.TrapHandlerOwnsTtmps {
		return nil
	}

	if w.arch.Gen == regs.Gen12 {
		for _, r := range []regs.Regnum{regs.TTMP4, regs.TTMP5,
			regs.TTMP6} {
			if err := regs.WriteUint32(w.file, r, 0); err != nil {
				return err
			}
		}
		ttmp8, err := regs.ReadUint32(w.file, regs.TTMP8)
		if err != nil {
			return err
		}
		ttmp8 |= regs.TTMP8DebugMark
		return regs.WriteUint32(w.file, regs.TTMP8, ttmp8)
	}

	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return err
	}
	ttmp6, err = w.scrubTrapHandlerState(ttmp6)
	if err != nil {
		return err
	}
	if err := regs.WriteUint32(w.file, regs.TTMP6, ttmp6); err != nil {
		return err
	}

	ttmp11, err := regs.ReadUint32(w.file, regs.TTMP11)
	if err != nil {
		return err
	}
	ttmp11 |= regs.TTMP11TrapHandlerSetup
	return regs.WriteUint32(w.file, regs.TTMP11, ttmp11)
}

// RecordSPITtmpsSetup marks in ttmp6 whether the SPI wrote meaningful data
// to the trap temporaries when the wave launched. The marker bit only
// exists from ABI version 10 on; gfx12 guarantees setup unconditionally.
func (w *Wave) RecordSPITtmpsSetup(enabled bool) error {
	w.spiTtmpsSet = enabled
	if w.abiVersion < 10 || w.arch.Gen == regs.Gen12 {
		return nil
	}

	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return err
	}
	ttmp6 &^= regs.TTMP6SPITtmpsSetupDisabled
	if !enabled {
		ttmp6 |= regs.TTMP6SPITtmpsSetupDisabled
	}
	return regs.WriteUint32(w.file, regs.TTMP6, ttmp6)
}

// SPITtmpsSetup reports whether the SPI filled the trap temporaries for
// this wave, consulting the per-wave marker when one exists.
func (w *Wave) SPITtmpsSetup() (bool, error) {
	if w.arch.Gen == regs.Gen12 {
		return true, nil
	}
	if !w.spiTtmpsSet {
		return false, nil
	}
	if w.abiVersion < 10 {
		return true, nil
	}
	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	return ttmp6&regs.TTMP6SPITtmpsSetupDisabled == 0, err
}
