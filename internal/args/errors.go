package args

import (
	"fmt"
	"strings"
)

// ParseError reports that tokens could not be converted into parameter values.
// Key is a message catalog key; Args are its substitutions.
type ParseError struct {
	Key     string
	Args    []any
	Element string
	Cause   error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse arguments: ")
	b.WriteString(e.Key)
	if e.Element != "" {
		fmt.Fprintf(&b, " (element %q)", e.Element)
	}
	if len(e.Args) > 0 {
		fmt.Fprintf(&b, " %v", e.Args)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Cause }

func missing(el Element) *ParseError {
	return &ParseError{Key: "args.missing", Args: []any{el.Usage()}, Element: el.Key()}
}

func invalid(key string, el Element, token string, extra ...any) *ParseError {
	return &ParseError{Key: key, Args: append([]any{token}, extra...), Element: el.Key()}
}
