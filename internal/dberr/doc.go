// Package dberr defines the closed error taxonomy shared by every other
// package in typedpg.
//
// Every failure that crosses a package boundary is one of the pointer types
// declared here. The set is sealed: only this package can add members, so a
// type switch over them is exhaustive.
//
//	switch e := err.(type) {
//	case *dberr.RowCountError:
//	    // e.Expected, e.Received
//	case *dberr.TransactionRollbackError:
//	    // e.RollbackErr, e.Cause
//	}
//
// Wrapped errors are matched with errors.As, or tagged with KindOf.
//
// # Poisoned sessions
//
// TransactionRollbackError and UnhandledConnectionError mean the session
// that produced them is in an unknown state. Poisons reports this, and the
// pool passes such errors to the provider on release so the session is
// discarded instead of recycled.
package dberr
