// Package ledger persists the last day for which notifications were sent.
//
// It stores exactly one value and is only used for duplicate suppression:
//   - "file": one plain-text line (default)
//   - "sqlite": single-row table in a local database file
//   - "postgres": single-row table on a PostgreSQL server
package ledger
