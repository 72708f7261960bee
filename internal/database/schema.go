package database

import _ "embed"

// Schema is the full schema produced by applying every migration, without the
// migration bookkeeping table. Tests apply it directly to in-memory databases.
//
//go:embed schema.sql
var Schema string
