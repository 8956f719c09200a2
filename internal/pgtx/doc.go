// Package pgtx runs functions inside a transaction on an already
// checked-out session.
//
// A transaction moves from begun to committed, rolled back, or rollback
// failed. Only the last state poisons the session: Run reports it as a
// TransactionRollbackError, and the pool discards the connection.
package pgtx
