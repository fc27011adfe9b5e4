// Package db provides the embedded database schema and seed fixtures.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Fixtures is the demo data set loaded by seed-db and by the in-memory
// storage mode.
//
//go:embed seed/fixtures.json
var Fixtures []byte
