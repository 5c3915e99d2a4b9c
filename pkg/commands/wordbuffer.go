package commands

import (
	"time"

	"github.com/echotype/echotype/pkg/logger"
)

// LookAheadTimeout is how long a possible first word of a two-word command
// is held before being flushed on its own.
const LookAheadTimeout = 100 * time.Millisecond

// Item is a resolved word-processing result
type Item struct {
	// Text to type, with trailing space, when IsCommand is false
	Text string
	// Command to execute when IsCommand is true
	Command Code
	// IsCommand distinguishes the two variants
	IsCommand bool
}

// TextItem builds a text item
func TextItem(text string) Item {
	return Item{Text: text}
}

// CommandItem builds a command item
func CommandItem(code Code) Item {
	return Item{Command: code, IsCommand: true}
}

type pendingWord struct {
	word       string
	receivedAt time.Time
}

// WordBuffer implements look-ahead for two-word commands over a stream of
// arriving words. At most one word is ever pending; a session change
// discards it. The buffer has no timers of its own: callers must invoke
// FlushPending on a cadence shorter than the look-ahead timeout.
//
// All mutation must come from a single goroutine (the dispatch actor).
type WordBuffer struct {
	session string
	pending *pendingWord
	matcher *Matcher
	log     *logger.Logger
	now     func() time.Time
}

// NewWordBuffer creates a word buffer bound to a matcher
func NewWordBuffer(matcher *Matcher, log *logger.Logger) *WordBuffer {
	return &WordBuffer{
		matcher: matcher,
		log:     log.WithComponent("wordbuffer"),
		now:     time.Now,
	}
}

// Reset clears session and pending state. Call on every new physical
// connection to prevent cross-connection leakage.
func (b *WordBuffer) Reset() {
	b.session = ""
	b.pending = nil
}

// ProcessWord handles one arriving word and returns the items it resolves
// to. An empty result means the word was buffered for look-ahead.
func (b *WordBuffer) ProcessWord(word, session string) []Item {
	if b.session != session {
		if b.pending != nil {
			b.log.Debug("session changed, discarding pending word",
				logger.String("word", b.pending.word),
				logger.String("session", session))
		}
		b.session = session
		b.pending = nil
	}

	var items []Item

	if p := b.pending; p != nil {
		b.pending = nil

		if code, ok := b.matcher.MatchTwoWords(p.word, word); ok {
			return append(items, CommandItem(code))
		}

		// No two-word match: the held word was ordinary text
		items = append(items, TextItem(p.word+" "))
	}

	if b.matcher.CouldStartTwoWord(word) {
		b.pending = &pendingWord{word: word, receivedAt: b.now()}
		return items
	}

	if code, ok := b.matcher.MatchSingleWord(word); ok {
		return append(items, CommandItem(code))
	}

	return append(items, TextItem(word+" "))
}

// FlushPending emits the pending word once it has waited at least the
// look-ahead timeout: as a command if it alone matches one, else as text.
// A buffered word is never silently dropped.
func (b *WordBuffer) FlushPending(timeout time.Duration) []Item {
	if b.pending == nil || b.now().Sub(b.pending.receivedAt) < timeout {
		return nil
	}

	word := b.pending.word
	b.pending = nil

	if code, ok := b.matcher.MatchSingleWord(word); ok {
		return []Item{CommandItem(code)}
	}
	return []Item{TextItem(word + " ")}
}

// HasPending reports whether a word is waiting for look-ahead
func (b *WordBuffer) HasPending() bool {
	return b.pending != nil
}
