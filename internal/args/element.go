package args

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// Store receives parsed values. The command execution context implements it.
type Store interface {
	Put(name string, value any)
}

// Element is one parameter in a command's grammar.
type Element interface {
	Key() string
	Usage() string
	Parse(s *Stream, store Store) error
}

// Parse runs elements in order against s. Tokens left over after the last
// element are a parse error.
func Parse(s *Stream, elements []Element, store Store) error {
	for _, el := range elements {
		if err := el.Parse(s, store); err != nil {
			return err
		}
	}
	if s.HasNext() {
		return &ParseError{Key: "args.toomany", Args: []any{strings.Join(s.Remaining(), " ")}}
	}
	return nil
}

// Usage renders the grammar of elements, e.g. "<name> [amount]".
func Usage(elements []Element) string {
	parts := make([]string, 0, len(elements))
	for _, el := range elements {
		parts = append(parts, el.Usage())
	}
	return strings.Join(parts, " ")
}

type valueElement struct {
	key     string
	convert func(el Element, token string) (any, error)
}

func (v *valueElement) Key() string   { return v.key }
func (v *valueElement) Usage() string { return "<" + v.key + ">" }

func (v *valueElement) Parse(s *Stream, store Store) error {
	tok, ok := s.Next()
	if !ok {
		return missing(v)
	}
	val, err := v.convert(v, tok)
	if err != nil {
		return err
	}
	store.Put(v.key, val)
	return nil
}

// String accepts any single token.
func String(key string) Element {
	return &valueElement{key: key, convert: func(_ Element, tok string) (any, error) {
		return tok, nil
	}}
}

// Int accepts a base-10 integer.
func Int(key string) Element {
	return &valueElement{key: key, convert: func(el Element, tok string) (any, error) {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, invalid("args.notint", el, tok)
		}
		return n, nil
	}}
}

// Float accepts a decimal number.
func Float(key string) Element {
	return &valueElement{key: key, convert: func(el Element, tok string) (any, error) {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, invalid("args.notnumber", el, tok)
		}
		return f, nil
	}}
}

// Bool accepts true/false, yes/no and on/off.
func Bool(key string) Element {
	return &valueElement{key: key, convert: func(el Element, tok string) (any, error) {
		switch strings.ToLower(tok) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return nil, invalid("args.notbool", el, tok)
	}}
}

// Duration accepts Go duration syntax ("90s", "5m") or a bare number of seconds.
func Duration(key string) Element {
	return &valueElement{key: key, convert: func(el Element, tok string) (any, error) {
		if n, err := strconv.Atoi(tok); err == nil && n >= 0 {
			return time.Duration(n) * time.Second, nil
		}
		d, err := time.ParseDuration(tok)
		if err != nil || d < 0 {
			return nil, invalid("args.notduration", el, tok)
		}
		return d, nil
	}}
}

// Choice accepts one of a fixed set of words, case-insensitively.
func Choice(key string, choices ...string) Element {
	return &valueElement{key: key, convert: func(el Element, tok string) (any, error) {
		lower := strings.ToLower(tok)
		if slices.Contains(choices, lower) {
			return lower, nil
		}
		return nil, invalid("args.choice", el, tok, strings.Join(choices, ", "))
	}}
}

type remainingElement struct {
	key string
}

// Remaining joins every unconsumed token into a single string. At least one
// token is required.
func Remaining(key string) Element { return &remainingElement{key: key} }

func (r *remainingElement) Key() string   { return r.key }
func (r *remainingElement) Usage() string { return "<" + r.key + "...>" }

func (r *remainingElement) Parse(s *Stream, store Store) error {
	if !s.HasNext() {
		return missing(r)
	}
	rest := s.Remaining()
	for s.HasNext() {
		s.Next()
	}
	store.Put(r.key, strings.Join(rest, " "))
	return nil
}

type optionalElement struct {
	inner Element
}

// Optional makes inner skippable. When the next token does not parse as inner,
// the stream is rewound and no value is stored.
func Optional(inner Element) Element { return &optionalElement{inner: inner} }

func (o *optionalElement) Key() string   { return o.inner.Key() }
func (o *optionalElement) Usage() string { return "[" + strings.Trim(o.inner.Usage(), "<>") + "]" }

func (o *optionalElement) Parse(s *Stream, store Store) error {
	if !s.HasNext() {
		return nil
	}
	snap := s.Snapshot()
	staged := &stagingStore{}
	if err := o.inner.Parse(s, staged); err != nil {
		if _, ok := err.(*ParseError); ok {
			s.Restore(snap)
			return nil
		}
		return err
	}
	staged.flush(store)
	return nil
}

type repeatedElement struct {
	inner Element
}

// Repeated parses inner until the stream is exhausted, storing every value
// under the same key. At least one value is required.
func Repeated(inner Element) Element { return &repeatedElement{inner: inner} }

func (r *repeatedElement) Key() string   { return r.inner.Key() }
func (r *repeatedElement) Usage() string { return r.inner.Usage() + "..." }

func (r *repeatedElement) Parse(s *Stream, store Store) error {
	if !s.HasNext() {
		return missing(r)
	}
	for s.HasNext() {
		if err := r.inner.Parse(s, store); err != nil {
			return err
		}
	}
	return nil
}

type stagedValue struct {
	name  string
	value any
}

// stagingStore buffers values so a failed optional parse leaves no trace.
type stagingStore struct {
	values []stagedValue
}

func (s *stagingStore) Put(name string, value any) {
	s.values = append(s.values, stagedValue{name: name, value: value})
}

func (s *stagingStore) flush(dst Store) {
	for _, v := range s.values {
		dst.Put(v.name, v.value)
	}
}
