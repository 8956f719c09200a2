// Package session defines the connection provider contract and the typed
// Session wrapper used by pools and transactions.
//
// A Provider hands out Conns. SQLProvider implements it over database/sql
// (lib/pq in production). Session adds statement execution with tagged
// errors, custom type decoding and a release-once guard.
package session
