package command

// Outcome classifies a Result.
type Outcome int

const (
	// OutcomeUnset marks the zero Result, which never resolves an invocation.
	OutcomeUnset Outcome = iota
	OutcomeSuccess
	OutcomeFail
	// OutcomeContinue is non-terminal: the real outcome is delivered later.
	OutcomeContinue
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnset:
		return "unset"
	case OutcomeSuccess:
		return "success"
	case OutcomeFail:
		return "fail"
	case OutcomeContinue:
		return "continue"
	}
	return "unknown"
}

// Result is the outcome of one stage of an invocation.
type Result struct {
	outcome Outcome
	message string
	err     error
}

// Success is the terminal success Result.
func Success() Result { return Result{outcome: OutcomeSuccess} }

// Fail is a terminal failure carrying an already localized message. An empty
// message is a silent failure.
func Fail(message string) Result { return Result{outcome: OutcomeFail, message: message} }

// FailWith is Fail with the error that classifies the failure.
func FailWith(err error, message string) Result {
	return Result{outcome: OutcomeFail, message: message, err: err}
}

// Continue defers resolution; the dispatcher owes the caller a terminal Result.
func Continue() Result { return Result{outcome: OutcomeContinue} }

func (r Result) Outcome() Outcome { return r.outcome }
func (r Result) IsSuccess() bool  { return r.outcome == OutcomeSuccess }
func (r Result) IsFail() bool     { return r.outcome == OutcomeFail }
func (r Result) IsContinue() bool { return r.outcome == OutcomeContinue }
func (r Result) IsTerminal() bool { return r.IsSuccess() || r.IsFail() }
func (r Result) Message() string  { return r.message }
func (r Result) Err() error       { return r.err }
func (r Result) String() string   { return r.outcome.String() }
