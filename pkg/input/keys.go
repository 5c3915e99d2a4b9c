package input

// Key identifies a non-character key or a letter key used in combos
type Key string

const (
	KeyEnter     Key = "enter"
	KeyBackspace Key = "backspace"
	KeyTab       Key = "tab"
	KeyEscape    Key = "escape"
	KeyA         Key = "a"
	KeyC         Key = "c"
	KeyV         Key = "v"
	KeyX         Key = "x"
	KeyZ         Key = "z"
)

// Modifier identifies a modifier key held during a combo
type Modifier string

const (
	ModCtrl  Modifier = "ctrl"
	ModAlt   Modifier = "alt"
	ModShift Modifier = "shift"
	ModSuper Modifier = "super"
)
