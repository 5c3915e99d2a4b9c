package commands

import (
	"io"
	"reflect"
	"testing"

	"github.com/echotype/echotype/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

// fakeStore is a minimal in-memory phrase store for matcher tests
type fakeStore struct {
	phrases map[string]Code
}

func newFakeStore(custom map[string]Code) *fakeStore {
	phrases := map[string]Code{
		"enter":      Enter,
		"select all": SelectAll,
		"copy":       Copy,
		"paste":      Paste,
		"cut":        Cut,
		"cancel":     Cancel,
	}
	for p, c := range custom {
		phrases[p] = c
	}
	return &fakeStore{phrases: phrases}
}

func (s *fakeStore) Match(phrase string) (Code, bool) {
	code, ok := s.phrases[normalizeSpoken(phrase)]
	return code, ok
}

func (s *fakeStore) StartsTwoWord(word string) bool {
	for phrase := range s.phrases {
		if i := indexSpace(phrase); i > 0 && phrase[:i] == word {
			return true
		}
	}
	return false
}

func normalizeSpoken(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	// trim spaces
	start, end := 0, len(out)
	for start < end && out[start] == ' ' {
		start++
	}
	for end > start && out[end-1] == ' ' {
		end--
	}
	return string(out[start:end])
}

func indexSpace(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return i
		}
	}
	return -1
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello", "hello"},
		{"Hello", "hello"},
		{"hello.", "hello"},
		{"hello,", "hello"},
		{"hello!", "hello"},
		{"hello?", "hello"},
		{"hello:", "hello"},
		{"hello;", "hello"},
		{"hello!?", "hello"},
		{"  hello  ", "hello"},
		{"šmach", "šmach"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMatchWholeExactCommand(t *testing.T) {
	m := NewMatcher(newFakeStore(map[string]Code{"šmach": Enter}), testLogger())

	cases := []string{"šmach", "šmach ", " šmach", "enter", "enter "}
	for _, input := range cases {
		code, ok := m.MatchWhole(input)
		if !ok {
			t.Errorf("MatchWhole(%q) should match", input)
			continue
		}
		if code != Enter {
			t.Errorf("MatchWhole(%q) = %s, want ENTER", input, code)
		}
	}
}

func TestMatchWholeCommandCodeLiteral(t *testing.T) {
	m := NewMatcher(newFakeStore(nil), testLogger())

	code, ok := m.MatchWhole("SELECT_ALL")
	if !ok || code != SelectAll {
		t.Errorf("command code literal should parse, got %s ok=%v", code, ok)
	}
}

func TestMatchExactCommandWithTrailingSpace(t *testing.T) {
	m := NewMatcher(newFakeStore(map[string]Code{"šmach": Enter}), testLogger())

	result := m.Match("šmach ")
	if result.Kind != MatchExact {
		t.Fatalf("kind = %v, want MatchExact", result.Kind)
	}
	if result.Exact != Enter {
		t.Errorf("command = %s, want ENTER", result.Exact)
	}
}

func TestMatchCommandAlwaysWinsMidText(t *testing.T) {
	m := NewMatcher(newFakeStore(map[string]Code{"šmach": Enter}), testLogger())

	result := m.Match("hello šmach ")
	if result.Kind != MatchSegments {
		t.Fatalf("kind = %v, want MatchSegments", result.Kind)
	}

	want := []Segment{
		TextSegment("hello "),
		CommandSegment(Enter),
		TextSegment(" "),
	}
	if !reflect.DeepEqual(result.Segments, want) {
		t.Errorf("segments = %+v, want %+v", result.Segments, want)
	}
}

func TestMatchMidTextVariants(t *testing.T) {
	m := NewMatcher(newFakeStore(map[string]Code{"šmach": Enter}), testLogger())

	tests := []struct {
		input string
		want  []Segment
	}{
		{
			"šmach and more text",
			[]Segment{CommandSegment(Enter), TextSegment(" and more text")},
		},
		{
			"hello world šmach and more",
			[]Segment{TextSegment("hello world "), CommandSegment(Enter), TextSegment(" and more")},
		},
		{
			"hello world šmach",
			[]Segment{TextSegment("hello world "), CommandSegment(Enter)},
		},
	}

	for _, tt := range tests {
		result := m.Match(tt.input)
		if result.Kind != MatchSegments {
			t.Errorf("Match(%q) kind = %v, want MatchSegments", tt.input, result.Kind)
			continue
		}
		if !reflect.DeepEqual(result.Segments, tt.want) {
			t.Errorf("Match(%q) = %+v, want %+v", tt.input, result.Segments, tt.want)
		}
	}
}

func TestMatchNoCommand(t *testing.T) {
	m := NewMatcher(newFakeStore(nil), testLogger())

	for _, input := range []string{"hello world", "", "   "} {
		if result := m.Match(input); result.Kind != MatchNone {
			t.Errorf("Match(%q) kind = %v, want MatchNone", input, result.Kind)
		}
	}
}

func TestMatchSingleWordPunctuation(t *testing.T) {
	m := NewMatcher(newFakeStore(map[string]Code{"hello": Enter}), testLogger())

	for _, word := range []string{"hello.", "hello,", "hello!", "hello?", "hello:", "hello;"} {
		code, ok := m.MatchSingleWord(word)
		if !ok || code != Enter {
			t.Errorf("MatchSingleWord(%q) = %s ok=%v, want ENTER", word, code, ok)
		}
	}

	if _, ok := m.MatchSingleWord("unknown"); ok {
		t.Error("unknown word should not match")
	}
}

func TestMatchTwoWordsBuiltins(t *testing.T) {
	m := NewMatcher(newFakeStore(nil), testLogger())

	tests := []struct {
		w1, w2 string
		want   Code
	}{
		{"select", "all", SelectAll},
		{"new", "line", Enter},
		{"go", "back", Backspace},
		{"Select", "ALL", SelectAll},
		{"select", "all.", SelectAll},
		{"new", "line!", Enter},
	}

	for _, tt := range tests {
		code, ok := m.MatchTwoWords(tt.w1, tt.w2)
		if !ok || code != tt.want {
			t.Errorf("MatchTwoWords(%q, %q) = %s ok=%v, want %s", tt.w1, tt.w2, code, ok, tt.want)
		}
	}

	if _, ok := m.MatchTwoWords("hello", "world"); ok {
		t.Error("random word pair should not match")
	}
}

func TestMatchTwoWordsCustomFirst(t *testing.T) {
	m := NewMatcher(newFakeStore(map[string]Code{"select all": Copy}), testLogger())

	code, ok := m.MatchTwoWords("select", "all")
	if !ok || code != Copy {
		t.Errorf("custom two-word phrase must win over built-in, got %s", code)
	}
}

func TestCouldStartTwoWord(t *testing.T) {
	m := NewMatcher(newFakeStore(map[string]Code{"magic word": Paste}), testLogger())

	tests := []struct {
		word string
		want bool
	}{
		{"select", true},
		{"new", true},
		{"go", true},
		{"magic", true},
		{"Select", true},
		{"hello", false},
		{"all", false},
		{"word", false},
	}

	for _, tt := range tests {
		if got := m.CouldStartTwoWord(tt.word); got != tt.want {
			t.Errorf("CouldStartTwoWord(%q) = %v, want %v", tt.word, got, tt.want)
		}
	}
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		input string
		want  Code
		ok    bool
	}{
		{"ENTER", Enter, true},
		{"enter", Enter, true},
		{" enter ", Enter, true},
		{"SELECT_ALL", SelectAll, true},
		{"BACKSPACE", Backspace, true},
		{"INVALID", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		code, ok := ParseCode(tt.input)
		if ok != tt.ok || code != tt.want {
			t.Errorf("ParseCode(%q) = (%s, %v), want (%s, %v)", tt.input, code, ok, tt.want, tt.ok)
		}
	}
}
