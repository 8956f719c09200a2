package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/typedpg/internal/dberr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The statement ran but its result was rejected (row count, validation, driver error)
	ExitCommandError = 2 // Command error (bad flags or config, pool could not be created or checked out)
)

// Error codes for failures outside the dberr taxonomy.
const (
	CodeUsage  = "USAGE"
	CodeConfig = "CONFIG"
	CodeError  = "ERROR"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode names err for output: the dberr kind when err is a taxonomy
// error, CodeError otherwise.
func ErrorCode(err error) string {
	if kind, ok := dberr.KindOf(err); ok {
		return string(kind)
	}
	return CodeError
}

// exitCodeFor maps a failure to an exit code. Failures to reach the
// database are command errors; failures of the statement itself are not.
func exitCodeFor(err error) int {
	kind, ok := dberr.KindOf(err)
	if !ok {
		return ExitCommandError
	}
	switch kind {
	case dberr.KindPoolCreation, dberr.KindPoolCheckout, dberr.KindPoolShutdown, dberr.KindTypeParserSetup:
		return ExitCommandError
	default:
		return ExitFailure
	}
}

// TextWriter is implemented by results with a custom text rendering.
type TextWriter interface {
	WriteText(w io.Writer) error
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status  string    `json:"status"`            // "ok" or "error"
	Data    any       `json:"data,omitempty"`    // success payload
	Error   *CLIError `json:"error,omitempty"`   // error details
	Session string    `json:"session,omitempty"` // session that ran the command
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // dberr kind, or USAGE/CONFIG/ERROR
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	return f.SuccessIn("", data)
}

// SuccessIn is Success for a result produced on session id.
func (f *OutputFormatter) SuccessIn(id string, data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:  "ok",
			Data:    data,
			Session: id,
		})
	}

	if tw, ok := data.(TextWriter); ok {
		return tw.WriteText(f.Writer)
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
func (f *OutputFormatter) Fail(message string, err error) error {
	_ = f.Error(ErrorCode(err), err.Error(), errorDetails(err))
	return WrapExitError(exitCodeFor(err), message, err)
}

// errorDetails extracts structured context from taxonomy errors.
func errorDetails(err error) any {
	var validation *dberr.RowValidationError
	if errors.As(err, &validation) {
		failures := make([]string, len(validation.Failures))
		for i, fe := range validation.Failures {
			failures[i] = fe.String()
		}
		return map[string]any{"schema": validation.Schema, "failures": failures}
	}
	var count *dberr.RowCountError
	if errors.As(err, &count) {
		return map[string]string{"expected": count.Expected, "received": count.Received}
	}
	var driver *dberr.DriverQueryError
	if errors.As(err, &driver) {
		return map[string]string{"statement": driver.Text}
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
