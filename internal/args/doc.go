// Package args turns raw command argument text into typed values.
//
// Raw text is tokenized with POSIX shell quoting rules, so `kit create "my kit"`
// yields the tokens [kit create, my kit]. Elements consume tokens from a Stream and
// place parsed values into a Store under their key. Every parse problem is reported
// as a *ParseError, which the dispatcher treats as recoverable: a parent command may
// retry the same text against its own parameters.
package args
