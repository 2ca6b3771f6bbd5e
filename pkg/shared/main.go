package shared

import "errors"

// Kind classifies a command failure. Kinds are stable: callers branch on
// them and tests assert them, only the message text is free to change.
type Kind int

const (
	// KindFault marks genuine infrastructure failures (store or Discord
	// API); everything else is expected control flow.
	KindFault Kind = iota
	NoChannelConfigured
	ChannelMissing
	NotInTopicThread
	NotATopicThread
	NoRolesConfigured
	NotWhitelisted
	AlreadyEndorsed
	NotEndorsed
	Forbidden
	Cancelled
	TopicNotFound
	PlatformUnavailable
)

// Error carries a failure kind and a message suitable for direct display
// to the invoking user.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Fail builds an expected-control-flow failure.
func Fail(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Fault wraps an infrastructure error. The message shown to users is
// generic; the cause is for the logs.
func Fault(err error) *Error {
	return &Error{Kind: PlatformUnavailable, Message: "An error occurred while processing the command.", cause: err}
}

// KindOf extracts the failure kind from err, or KindFault if err is not a
// typed failure.
func KindOf(err error) Kind {
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr.Kind
	}
	return KindFault
}

// UserMessage returns the text to show the invoking user for err.
func UserMessage(err error) string {
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr.Message
	}
	return "An error occurred while processing the command."
}

// Expected reports whether err is expected control flow rather than a
// fault worth logging as an error.
func Expected(err error) bool {
	var cmdErr *Error
	if !errors.As(err, &cmdErr) {
		return false
	}
	return cmdErr.Kind != KindFault && cmdErr.Kind != PlatformUnavailable
}
