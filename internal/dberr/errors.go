package dberr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags every failure this module reports.
type Kind string

const (
	// KindPoolCreation indicates the session provider could not be constructed.
	KindPoolCreation Kind = "POOL_CREATION"

	// KindPoolCheckout indicates a session could not be checked out.
	KindPoolCheckout Kind = "POOL_CHECKOUT"

	// KindPoolShutdown indicates the provider failed to shut down.
	KindPoolShutdown Kind = "POOL_SHUTDOWN"

	// KindDriverQuery indicates the provider failed to execute a statement.
	KindDriverQuery Kind = "DRIVER_QUERY"

	// KindRowCount indicates a cardinality contract was violated.
	KindRowCount Kind = "ROW_COUNT"

	// KindRowValidation indicates a row did not satisfy its schema.
	KindRowValidation Kind = "ROW_VALIDATION"

	// KindTypeParserSetup indicates the type parser bootstrap failed.
	KindTypeParserSetup Kind = "TYPE_PARSER_SETUP"

	// KindTransactionRollback indicates a ROLLBACK was requested but failed.
	// The session that produced it must not be reused.
	KindTransactionRollback Kind = "TRANSACTION_ROLLBACK"

	// KindUnhandledConnection indicates a program panicked while holding a session.
	KindUnhandledConnection Kind = "UNHANDLED_CONNECTION"

	// KindUnhandledPool indicates an out-of-band failure reported by the provider.
	KindUnhandledPool Kind = "UNHANDLED_POOL"
)

// Error is the closed set of failures. Only the types in this package
// implement it.
type Error interface {
	error
	Kind() Kind
	taxonomy()
}

// KindOf returns the tag of the first taxonomy error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e Error
	if errors.As(err, &e) {
		return e.Kind(), true
	}
	return "", false
}

// Poisons reports whether a session that produced err must be discarded
// instead of recycled.
func Poisons(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindTransactionRollback, KindUnhandledConnection:
		return true
	default:
		return false
	}
}

// PoolCreationError reports that the provider could not be created.
type PoolCreationError struct {
	Err error
}

func (e *PoolCreationError) Error() string {
	return fmt.Sprintf("unable to create a connection pool: %v", e.Err)
}

func (e *PoolCreationError) Unwrap() error { return e.Err }
func (e *PoolCreationError) Kind() Kind { return KindPoolCreation }
func (e *PoolCreationError) taxonomy() {}

// PoolCheckoutError reports that no session could be acquired.
type PoolCheckoutError struct {
	Err error
}

func (e *PoolCheckoutError) Error() string {
	return fmt.Sprintf("unable to checkout a connection from the pool: %v", e.Err)
}

func (e *PoolCheckoutError) Unwrap() error { return e.Err }
func (e *PoolCheckoutError) Kind() Kind { return KindPoolCheckout }
func (e *PoolCheckoutError) taxonomy() {}

// PoolShutdownError reports that the provider failed to shut down.
type PoolShutdownError struct {
	Err error
}

func (e *PoolShutdownError) Error() string {
	return fmt.Sprintf("unable to shutdown a connection pool: %v", e.Err)
}

func (e *PoolShutdownError) Unwrap() error { return e.Err }
func (e *PoolShutdownError) Kind() Kind { return KindPoolShutdown }
func (e *PoolShutdownError) taxonomy() {}

// DriverQueryError reports an execution failure together with the
// statement that caused it.
type DriverQueryError struct {
	Err  error
	Text string
	Args []any
}

func (e *DriverQueryError) Error() string {
	return fmt.Sprintf("query failed: %v (statement=%q)", e.Err, oneLine(e.Text))
}

func (e *DriverQueryError) Unwrap() error { return e.Err }
func (e *DriverQueryError) Kind() Kind { return KindDriverQuery }
func (e *DriverQueryError) taxonomy() {}

// RowCountError reports a violated cardinality contract. Expected and
// Received are descriptive, e.g. "1", "0 or 1", ">= 1", "> 1".
type RowCountError struct {
	Text     string
	Args     []any
	Expected string
	Received string
}

func (e *RowCountError) Error() string {
	return fmt.Sprintf("query returned an unexpected number of rows: expected %s, received %s (statement=%q)",
		e.Expected, e.Received, oneLine(e.Text))
}

func (e *RowCountError) Kind() Kind { return KindRowCount }
func (e *RowCountError) taxonomy() {}

// FieldError is one structured validation failure.
type FieldError struct {
	// Path locates the failing value, e.g. "email" or "tags.2".
	Path    string
	Message string
}

func (f FieldError) String() string {
	if f.Path == "" {
		return f.Message
	}
	return f.Path + ": " + f.Message
}

// RowValidationError reports a row that does not satisfy its schema.
type RowValidationError struct {
	// Schema names the schema the row was validated against.
	Schema   string
	Value    any
	Failures []FieldError
}

func (e *RowValidationError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("validation of a result row against %s failed: %s", e.Schema, strings.Join(parts, "; "))
}

func (e *RowValidationError) Kind() Kind { return KindRowValidation }
func (e *RowValidationError) taxonomy() {}

// TypeParserSetupError reports a failed type parser bootstrap.
type TypeParserSetupError struct {
	Err error
}

func (e *TypeParserSetupError) Error() string {
	return fmt.Sprintf("type parser setup failed: %v", e.Err)
}

func (e *TypeParserSetupError) Unwrap() error { return e.Err }
func (e *TypeParserSetupError) Kind() Kind { return KindTypeParserSetup }
func (e *TypeParserSetupError) taxonomy() {}

// TransactionRollbackError carries both the ROLLBACK failure and the
// failure that triggered the rollback.
type TransactionRollbackError struct {
	RollbackErr error
	Cause       error
}

func (e *TransactionRollbackError) Error() string {
	return fmt.Sprintf("a ROLLBACK was requested but not successfully completed: %v (cause: %v)", e.RollbackErr, e.Cause)
}

// Unwrap exposes both errors to errors.Is and errors.As.
func (e *TransactionRollbackError) Unwrap() []error {
	return []error{e.RollbackErr, e.Cause}
}

func (e *TransactionRollbackError) Kind() Kind { return KindTransactionRollback }
func (e *TransactionRollbackError) taxonomy() {}

// UnhandledConnectionError wraps a panic raised by a program while it held
// a session.
type UnhandledConnectionError struct {
	Err error
}

func (e *UnhandledConnectionError) Error() string {
	return fmt.Sprintf("an unhandled error was raised by a connection: %v", e.Err)
}

func (e *UnhandledConnectionError) Unwrap() error { return e.Err }
func (e *UnhandledConnectionError) Kind() Kind { return KindUnhandledConnection }
func (e *UnhandledConnectionError) taxonomy() {}

// UnhandledPoolError wraps a failure the provider reported outside of any
// program, delivered through the pool's error callback.
type UnhandledPoolError struct {
	Err error
}

func (e *UnhandledPoolError) Error() string {
	return fmt.Sprintf("an unhandled error was raised by a connection pool: %v", e.Err)
}

func (e *UnhandledPoolError) Unwrap() error { return e.Err }
func (e *UnhandledPoolError) Kind() Kind { return KindUnhandledPool }
func (e *UnhandledPoolError) taxonomy() {}

// FromPanic converts a recovered panic value into an UnhandledConnectionError.
func FromPanic(r any) *UnhandledConnectionError {
	if err, ok := r.(error); ok {
		return &UnhandledConnectionError{Err: err}
	}
	return &UnhandledConnectionError{Err: fmt.Errorf("panic: %v", r)}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
