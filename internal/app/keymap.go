package app

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyCtrlC     = "ctrl+c"
	KeySpace     = " "
	KeyLeft      = "left"
	KeyRight     = "right"
	KeyPrev      = "h"
	KeyNext      = "l"
	KeyTab       = "tab"
	KeyShiftTab  = "shift+tab"
	KeyApprove   = "a"
	KeyFlag      = "f"
	KeyFix       = "x"
	KeyIsolate   = "i"
	KeyRerun     = "r"
	KeyEQ        = "e"
	KeyExport    = "w"
	KeyEnter     = "enter"
	KeyEsc       = "esc"
)

// SeekStep is the fraction of the take moved by the arrow keys.
const SeekStep = 0.05
