package database

import (
	"database/sql"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

// driverName is go-sqlite3 with the FOLD collation installed on every connection.
const driverName = "sqlite3_drive"

// foldCollation orders text by Unicode case folding. SQLite's built-in NOCASE
// only folds ASCII.
const foldCollation = "FOLD"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterCollation(foldCollation, compareFolded)
		},
	})
}

// compareFolded compares a and b after full Unicode case folding.
// A Caser is stateful, so each call gets its own.
func compareFolded(a, b string) int {
	fold := cases.Fold()
	return strings.Compare(fold.String(a), fold.String(b))
}
