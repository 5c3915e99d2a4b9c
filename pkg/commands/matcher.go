package commands

import (
	"strings"

	"github.com/echotype/echotype/pkg/logger"
)

// PhraseStore is the lookup capability the matcher consumes. Custom
// phrases always take precedence over defaults inside the store.
type PhraseStore interface {
	// Match resolves a spoken phrase to a command code
	Match(phrase string) (Code, bool)
	// StartsTwoWord reports whether word opens a custom two-word phrase
	StartsTwoWord(word string) bool
}

// Built-in two-word phrases, checked after custom mappings
var builtinTwoWord = map[string]Code{
	"select all": SelectAll,
	"new line":   Enter,
	"go back":    Backspace,
}

const trailingPunctuation = ".,!?:;"

// MatchKind tells how input was resolved
type MatchKind int

const (
	// MatchNone means no command was found; type the whole input
	MatchNone MatchKind = iota
	// MatchExact means the entire input is one command
	MatchExact
	// MatchSegments means commands were found within the text
	MatchSegments
)

// Segment is one ordered piece of mixed text-and-command input
type Segment struct {
	Text      string
	Command   Code
	IsCommand bool
}

// TextSegment builds a literal text segment
func TextSegment(text string) Segment {
	return Segment{Text: text}
}

// CommandSegment builds a command segment
func CommandSegment(code Code) Segment {
	return Segment{Command: code, IsCommand: true}
}

// MatchResult is the outcome of matching free-form input
type MatchResult struct {
	Kind     MatchKind
	Exact    Code
	Segments []Segment
}

// Matcher resolves spoken input into text-or-command items. Custom phrases
// are checked before built-ins at every level.
type Matcher struct {
	store PhraseStore
	log   *logger.Logger
}

// NewMatcher creates a matcher over the given phrase store
func NewMatcher(store PhraseStore, log *logger.Logger) *Matcher {
	return &Matcher{store: store, log: log.WithComponent("matcher")}
}

// Normalize prepares a word for matching: trim, strip trailing
// punctuation, lowercase.
func Normalize(word string) string {
	trimmed := strings.TrimSpace(word)
	trimmed = strings.TrimRight(trimmed, trailingPunctuation)
	return strings.ToLower(trimmed)
}

// MatchWhole matches the entire trimmed input as one command: first
// against the phrase table, then as a command-code literal. Trailing
// whitespace never prevents a match.
func (m *Matcher) MatchWhole(input string) (Code, bool) {
	trimmed := strings.TrimSpace(input)

	if code, ok := m.store.Match(trimmed); ok {
		m.log.Debug("matched phrase", logger.String("phrase", trimmed), logger.String("command", string(code)))
		return code, true
	}

	return ParseCode(trimmed)
}

// Match resolves input that may contain command words anywhere. A word
// matching a known phrase always executes; it is never also typed. The
// returned segments preserve the original spacing exactly.
func (m *Matcher) Match(input string) MatchResult {
	if code, ok := m.MatchWhole(input); ok {
		return MatchResult{Kind: MatchExact, Exact: code}
	}

	words := strings.Fields(input)
	if len(words) == 0 {
		return MatchResult{Kind: MatchNone}
	}

	var segments []Segment
	var textBuffer strings.Builder
	found := false
	lastEnd := 0

	for _, word := range words {
		idx := strings.Index(input[lastEnd:], word)
		if idx < 0 {
			continue
		}
		wordStart := lastEnd + idx
		wordEnd := wordStart + len(word)

		if code, ok := m.MatchSingleWord(word); ok {
			// Flush accumulated text, including the whitespace before
			// the command word
			if wordStart > lastEnd {
				textBuffer.WriteString(input[lastEnd:wordStart])
			}
			if textBuffer.Len() > 0 {
				segments = append(segments, TextSegment(textBuffer.String()))
				textBuffer.Reset()
			}

			m.log.Debug("command word in text",
				logger.String("word", word),
				logger.String("command", string(code)))
			segments = append(segments, CommandSegment(code))
			found = true
			lastEnd = wordEnd
			continue
		}

		textBuffer.WriteString(input[lastEnd:wordEnd])
		lastEnd = wordEnd
	}

	if lastEnd < len(input) {
		textBuffer.WriteString(input[lastEnd:])
	}
	if textBuffer.Len() > 0 {
		segments = append(segments, TextSegment(textBuffer.String()))
	}

	if !found {
		return MatchResult{Kind: MatchNone}
	}
	return MatchResult{Kind: MatchSegments, Segments: segments}
}

// MatchSingleWord matches one normalized word against the phrase table
func (m *Matcher) MatchSingleWord(word string) (Code, bool) {
	return m.store.Match(Normalize(word))
}

// MatchTwoWords matches a normalized word pair: custom two-word phrases
// first, then the built-in table.
func (m *Matcher) MatchTwoWords(w1, w2 string) (Code, bool) {
	phrase := Normalize(w1) + " " + Normalize(w2)

	if code, ok := m.store.Match(phrase); ok {
		return code, true
	}

	code, ok := builtinTwoWord[phrase]
	return code, ok
}

// CouldStartTwoWord reports whether the normalized word equals the first
// word of some known two-word phrase. Used to decide look-ahead buffering.
func (m *Matcher) CouldStartTwoWord(word string) bool {
	normalized := Normalize(word)

	for phrase := range builtinTwoWord {
		first, _, _ := strings.Cut(phrase, " ")
		if first == normalized {
			return true
		}
	}

	return m.store.StartsTwoWord(normalized)
}
