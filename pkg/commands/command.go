package commands

import (
	"strings"

	"github.com/echotype/echotype/pkg/input"
)

// Code identifies a voice command
type Code string

// Voice command codes
const (
	Enter     Code = "ENTER"
	SelectAll Code = "SELECT_ALL"
	Copy      Code = "COPY"
	Paste     Code = "PASTE"
	Cut       Code = "CUT"
	Cancel    Code = "CANCEL"
	Backspace Code = "BACKSPACE"
)

// AllCodes lists every built-in command code
var AllCodes = []Code{Enter, SelectAll, Copy, Paste, Cut, Cancel, Backspace}

// ParseCode parses a command code string, case-insensitively
func ParseCode(s string) (Code, bool) {
	switch Code(strings.ToUpper(strings.TrimSpace(s))) {
	case Enter:
		return Enter, true
	case SelectAll:
		return SelectAll, true
	case Copy:
		return Copy, true
	case Paste:
		return Paste, true
	case Cut:
		return Cut, true
	case Cancel:
		return Cancel, true
	case Backspace:
		return Backspace, true
	}
	return "", false
}

// Execute performs the keyboard action for a command
func Execute(code Code, injector input.Injector) error {
	switch code {
	case Enter:
		return injector.PressKey(input.KeyEnter)
	case SelectAll:
		return injector.KeyCombo([]input.Modifier{input.ModCtrl}, input.KeyA)
	case Copy:
		return injector.KeyCombo([]input.Modifier{input.ModCtrl}, input.KeyC)
	case Paste:
		return injector.KeyCombo([]input.Modifier{input.ModCtrl}, input.KeyV)
	case Cut:
		return injector.KeyCombo([]input.Modifier{input.ModCtrl}, input.KeyX)
	case Backspace:
		return injector.PressKey(input.KeyBackspace)
	case Cancel:
		// Discard: no keyboard action
		return nil
	}
	return nil
}
