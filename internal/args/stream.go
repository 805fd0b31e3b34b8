package args

import (
	"strings"

	shlex "github.com/anmitsu/go-shlex"
)

// Stream is a cursor over tokenized command arguments.
type Stream struct {
	raw    string
	tokens []string
	pos    int
}

// Snapshot is an opaque rollback point for a Stream.
type Snapshot struct {
	pos int
}

// Tokenize splits raw argument text into a Stream.
func Tokenize(raw string) (*Stream, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &Stream{}, nil
	}
	tokens, err := shlex.Split(raw, true)
	if err != nil {
		return nil, &ParseError{Key: "args.quotes", Cause: err}
	}
	return &Stream{raw: raw, tokens: tokens}, nil
}

// NewStream builds a Stream over already split tokens.
func NewStream(tokens ...string) *Stream {
	return &Stream{raw: strings.Join(tokens, " "), tokens: tokens}
}

// Raw returns the text the stream was built from.
func (s *Stream) Raw() string { return s.raw }

// HasNext reports whether unconsumed tokens remain.
func (s *Stream) HasNext() bool { return s.pos < len(s.tokens) }

// Peek returns the next token without consuming it.
func (s *Stream) Peek() (string, bool) {
	if !s.HasNext() {
		return "", false
	}
	return s.tokens[s.pos], true
}

// Next consumes and returns the next token.
func (s *Stream) Next() (string, bool) {
	tok, ok := s.Peek()
	if ok {
		s.pos++
	}
	return tok, ok
}

// Remaining returns the unconsumed tokens without consuming them.
func (s *Stream) Remaining() []string {
	out := make([]string, len(s.tokens)-s.pos)
	copy(out, s.tokens[s.pos:])
	return out
}

// Snapshot records the current position.
func (s *Stream) Snapshot() Snapshot { return Snapshot{pos: s.pos} }

// Restore rewinds (or forwards) the stream to a recorded position.
func (s *Stream) Restore(snap Snapshot) {
	if snap.pos < 0 || snap.pos > len(s.tokens) {
		return
	}
	s.pos = snap.pos
}
