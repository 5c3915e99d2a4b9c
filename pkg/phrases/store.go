package phrases

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/echotype/echotype/pkg/commands"
	"github.com/echotype/echotype/pkg/logger"
)

// DefaultPhrases maps each built-in command to its default spoken phrase
var DefaultPhrases = []struct {
	Command commands.Code
	Phrase  string
}{
	{commands.Enter, "enter"},
	{commands.SelectAll, "select all"},
	{commands.Copy, "copy"},
	{commands.Paste, "paste"},
	{commands.Cut, "cut"},
	{commands.Cancel, "cancel"},
}

// Mapping binds a command code to a custom spoken phrase
type Mapping struct {
	Command   commands.Code
	Phrase    string
	CreatedAt time.Time
}

// Info describes a command's current phrase configuration
type Info struct {
	Command       commands.Code `json:"command"`
	Phrase        string        `json:"phrase"`
	IsCustom      bool          `json:"is_custom"`
	DefaultPhrase string        `json:"default_phrase"`
}

// Repository persists custom mappings. The store works without one (nil);
// persistence failures are surfaced to the caller of Set/Revert.
type Repository interface {
	LoadAll() ([]Mapping, error)
	Save(Mapping) error
	Delete(command commands.Code) error
}

// Store holds the command-to-phrase mapping: defaults for every built-in
// command, overridden (never merged) by custom mappings. The in-memory map
// is authoritative at match time.
type Store struct {
	mu       sync.RWMutex
	mappings map[commands.Code]Mapping
	repo     Repository
	log      *logger.Logger
}

// NewStore creates a store and loads custom mappings from the repository
func NewStore(repo Repository, log *logger.Logger) (*Store, error) {
	s := &Store{
		mappings: make(map[commands.Code]Mapping),
		repo:     repo,
		log:      log.WithComponent("phrases"),
	}

	if repo != nil {
		loaded, err := repo.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("load phrase mappings: %w", err)
		}
		for _, m := range loaded {
			normalized := NormalizePhrase(m.Phrase)
			if normalized == "" {
				s.log.Warn("skipping stored mapping with empty phrase",
					logger.String("command", string(m.Command)))
				continue
			}
			m.Phrase = normalized
			s.mappings[m.Command] = m
		}
		s.log.Info("loaded custom phrase mappings", logger.Int("count", len(s.mappings)))
	}

	return s, nil
}

// NormalizePhrase lowercases and limits a phrase to at most two words,
// keeping the LAST two when longer.
func NormalizePhrase(phrase string) string {
	words := strings.Fields(strings.ToLower(phrase))
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	default:
		return words[len(words)-2] + " " + words[len(words)-1]
	}
}

// Lookup returns the current phrase for a command (custom or default)
func (s *Store) Lookup(command commands.Code) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.mappings[command]; ok {
		return m.Phrase
	}
	for _, d := range DefaultPhrases {
		if d.Command == command {
			return d.Phrase
		}
	}
	return strings.ToLower(string(command))
}

// Match resolves a spoken phrase to a command code. Custom mappings are
// checked first; a default only applies to commands without a custom one.
func (s *Store) Match(phrase string) (commands.Code, bool) {
	spoken := strings.ToLower(strings.TrimSpace(phrase))
	if spoken == "" {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for code, m := range s.mappings {
		if m.Phrase == spoken {
			return code, true
		}
	}

	for _, d := range DefaultPhrases {
		if _, overridden := s.mappings[d.Command]; overridden {
			continue
		}
		if d.Phrase == spoken {
			return d.Command, true
		}
	}

	return "", false
}

// StartsTwoWord reports whether word equals the first word of a custom
// two-word phrase.
func (s *Store) StartsTwoWord(word string) bool {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.mappings {
		first, _, isTwoWord := strings.Cut(m.Phrase, " ")
		if isTwoWord && first == w {
			return true
		}
	}
	return false
}

// Set stores a custom phrase for a command, replacing any previous one
func (s *Store) Set(command commands.Code, phrase string) error {
	normalized := NormalizePhrase(phrase)
	if normalized == "" {
		return fmt.Errorf("custom phrase cannot be empty")
	}

	if words := strings.Fields(phrase); len(words) > 2 {
		s.log.Warn("phrase longer than two words, keeping the last two",
			logger.String("command", string(command)),
			logger.String("phrase", normalized))
	}

	mapping := Mapping{Command: command, Phrase: normalized, CreatedAt: time.Now()}

	s.mu.Lock()
	s.mappings[command] = mapping
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Save(mapping); err != nil {
			return fmt.Errorf("persist phrase mapping: %w", err)
		}
	}

	s.log.Info("custom phrase set",
		logger.String("command", string(command)),
		logger.String("phrase", normalized))
	return nil
}

// Revert removes the custom phrase for a command, restoring the default
func (s *Store) Revert(command commands.Code) error {
	s.mu.Lock()
	delete(s.mappings, command)
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Delete(command); err != nil {
			return fmt.Errorf("delete phrase mapping: %w", err)
		}
	}

	s.log.Info("phrase reverted to default", logger.String("command", string(command)))
	return nil
}

// All returns the configuration of every built-in command
func (s *Store) All() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, 0, len(DefaultPhrases))
	for _, d := range DefaultPhrases {
		info := Info{
			Command:       d.Command,
			Phrase:        d.Phrase,
			DefaultPhrase: d.Phrase,
		}
		if m, ok := s.mappings[d.Command]; ok {
			info.Phrase = m.Phrase
			info.IsCustom = true
		}
		infos = append(infos, info)
	}
	return infos
}
