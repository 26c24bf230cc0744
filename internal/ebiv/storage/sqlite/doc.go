// Package sqlite persists processing runs and their velocity fields in a
// SQLite database.
//
// The schema is owned by the embedded migrations in migrations/ and is
// applied with golang-migrate when a database is opened. Domain packages
// never see SQL; they hand a field.Field and its run metadata to a
// RunStore and get the same field back.
package sqlite
