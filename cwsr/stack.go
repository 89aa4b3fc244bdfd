package cwsr

import "fmt"

// IterateControlStack walks a saved context's control stack and calls visit
// with one Record per wave, top of the save area first. waveAreaAddr is the
// top of the wave save area, which extends downward by waveAreaSize bytes.
// The walk must consume the save area exactly or the dump is corrupted.
func (f *Format) IterateControlStack(mem BackingStore, stack []uint32,
	waveAreaAddr, waveAreaSize uint64, visit func(*Record) error) (int, error) {
	waves := 0
	var state [2]uint32

	lastWaveArea := waveAreaAddr

	// The first two words are PM4 packets, not relaunch registers.
	for i := 2; i < len(stack); i++ {
		relaunch := stack[i]

		switch {
		case relaunchIsEvent(relaunch):
			// Events carry no wave data.

		case relaunchIsState(relaunch):
			state[0] = relaunch
			if f.StateWords == 2 {
				i++
				if i >= len(stack) {
					return waves, fmt.Errorf(
						"%w: truncated relaunch state", ErrCorruptedStack)
				}
				state[1] = stack[i]
			}

		default:
			r, err := f.NewRecord(mem, relaunch, state[:],
				lastWaveArea-f.SaveAreaPad)
			if err != nil {
				return waves, err
			}

			lastWaveArea = r.Begin()

			if err := visit(r); err != nil {
				return waves, err
			}
			waves++
		}
	}

	if lastWaveArea != waveAreaAddr-waveAreaSize {
		return waves, fmt.Errorf(
			"%w: %#x bytes left unconsumed", ErrCorruptedStack,
			lastWaveArea-(waveAreaAddr-waveAreaSize))
	}

	return waves, nil
}
