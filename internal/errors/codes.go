package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig ErrorCode = "invalid_configuration"
	ErrReadConfig    ErrorCode = "read_config_failed"

	// Startup errors
	ErrAlreadyRunning    ErrorCode = "already_running"
	ErrMissingDependency ErrorCode = "missing_dependency"
	ErrInitFailed        ErrorCode = "initialization_failed"
	ErrShutdownFailed    ErrorCode = "shutdown_failed"

	// Steady-state errors
	ErrMeasurement  ErrorCode = "measurement_failed"
	ErrAction       ErrorCode = "action_failed"
	ErrHookVeto     ErrorCode = "hook_veto"
	ErrNotification ErrorCode = "notification_failed"
	ErrMainLoop     ErrorCode = "main_loop_failed"

	// Sidecar errors
	ErrServerNotFound ErrorCode = "server_not_found"
	ErrWakeFailed     ErrorCode = "wake_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrInvalidConfig:     "Invalid configuration",
	ErrReadConfig:        "Failed to read configuration",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrMissingDependency: "Required external utility not found",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrMeasurement:       "Traffic measurement failed",
	ErrAction:            "Action command failed",
	ErrHookVeto:          "Pre-action hook vetoed the action",
	ErrNotification:      "Status notification failed",
	ErrMainLoop:          "Error in main loop",
	ErrServerNotFound:    "Server not found",
	ErrWakeFailed:        "Failed to wake server",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
