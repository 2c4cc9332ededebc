// Package viz renders stored runs in the terminal. It draws asciigraph time
// plots, braille phase portraits and a lipgloss run summary, and hosts a
// Bubble Tea replay viewer.
//
// # Replay key bindings
//
//	Space      - Pause/Resume playback
//	←/→, h/l   - Step one sample back/forward
//	Tab        - Cycle the highlighted component
//	Home/End   - Jump to the first/last sample
//	q          - Quit
package viz
