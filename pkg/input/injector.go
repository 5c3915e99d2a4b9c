package input

import (
	"github.com/echotype/echotype/pkg/logger"
)

// Injector is the narrow keystroke capability the OS backend must provide.
// Concrete backends (X11, Wayland, uinput) live outside this module.
type Injector interface {
	// TypeText types a literal string
	TypeText(text string) error
	// PressKey presses and releases a single key
	PressKey(key Key) error
	// KeyCombo presses a key while holding modifiers
	KeyCombo(modifiers []Modifier, key Key) error
}

// LogInjector logs every injection instead of performing it. It is used in
// headless runs and whenever no OS backend is configured.
type LogInjector struct {
	log *logger.Logger
}

// NewLogInjector creates a logging injector
func NewLogInjector(log *logger.Logger) *LogInjector {
	return &LogInjector{log: log.WithComponent("input")}
}

// TypeText implements Injector
func (i *LogInjector) TypeText(text string) error {
	i.log.Info("type text", logger.Int("chars", len(text)))
	return nil
}

// PressKey implements Injector
func (i *LogInjector) PressKey(key Key) error {
	i.log.Info("press key", logger.String("key", string(key)))
	return nil
}

// KeyCombo implements Injector
func (i *LogInjector) KeyCombo(modifiers []Modifier, key Key) error {
	i.log.Info("key combo", logger.Any("modifiers", modifiers), logger.String("key", string(key)))
	return nil
}
