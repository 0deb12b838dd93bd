package errors

// ErrorCode identifies a failure class; it is also what gets logged as error_code.
type ErrorCode string

// Error is a coded error that can carry a message override, context data and a cause.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
	// Is matches any other Error with the same code, so errors.Is works
	// against a bare factory value such as New().New(ErrHookVeto).
	Is(target error) bool
}

// Factory builds Errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
