package command

import (
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned when no root command matches an invocation.
var ErrUnknownCommand = errors.New("unknown command")

// PermissionDeniedError means the actor lacks a base permission of the command.
type PermissionDeniedError struct {
	Command    string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission %q denied for command %q", e.Permission, e.Command)
}

// WrongSourceError means the actor variant does not match the command's source.
type WrongSourceError struct {
	Command  string
	Required Source
	Actual   Kind
}

func (e *WrongSourceError) Error() string {
	return fmt.Sprintf("command %q requires a %s source, got %s", e.Command, e.Required, e.Actual)
}

// MessageKey returns the catalog key describing the mismatch.
func (e *WrongSourceError) MessageKey() string {
	switch e.Required {
	case SourcePlayer:
		return "command.playeronly"
	case SourceConsole:
		return "command.consoleonly"
	default:
		return "command.unknownsource"
	}
}

// RequirementVetoedError means a modifier refused to let the command run.
type RequirementVetoedError struct {
	Modifier string
	Reason   string
}

func (e *RequirementVetoedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("requirement vetoed by %s", e.Modifier)
	}
	return fmt.Sprintf("requirement vetoed by %s: %s", e.Modifier, e.Reason)
}

// ExecutorError wraps an error returned or a panic raised while running a
// command. Stage names the hook that panicked when it was not the body.
type ExecutorError struct {
	Command string
	Stage   string
	Err     error
	Panic   any
}

func (e *ExecutorError) Error() string {
	what := "executor"
	if e.Stage != "" {
		what = e.Stage
	}
	if e.Panic != nil {
		return fmt.Sprintf("%s for %q panicked: %v", what, e.Command, e.Panic)
	}
	return fmt.Sprintf("%s for %q failed: %v", what, e.Command, e.Err)
}

func (e *ExecutorError) Unwrap() error { return e.Err }

// RegistrationError is a startup-time failure building the command tree.
type RegistrationError struct {
	Command string
	Alias   string
	Reason  string
}

func (e *RegistrationError) Error() string {
	if e.Alias != "" {
		return fmt.Sprintf("register %q as %q: %s", e.Command, e.Alias, e.Reason)
	}
	return fmt.Sprintf("register %q: %s", e.Command, e.Reason)
}

// ArgumentMissingError means a required argument was not in the context.
type ArgumentMissingError struct {
	Name string
}

func (e *ArgumentMissingError) Error() string {
	return fmt.Sprintf("argument %q is required", e.Name)
}

// UserError is a failure an executor reports to the actor through the message
// catalog.
type UserError struct {
	Key  string
	Args []any
}

func (e *UserError) Error() string {
	return fmt.Sprintf("user error %s %v", e.Key, e.Args)
}
