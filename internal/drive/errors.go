package drive

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a drive error. Callers compare with errors.Is against
// the Err* sentinels rather than switching on the kind directly.
type ErrorKind int

const (
	KindInvalidPath ErrorKind = iota + 1
	KindNotFound
	KindParentNotFound
	KindInvalidMove
	KindForbidden
	KindExpired
	KindInvalidToken
	KindStorageFailure
	KindInvalidName
	KindIsDirectory
	KindNotDirectory
	KindLocked
)

var kindNames = map[ErrorKind]string{
	KindInvalidPath:    "invalid path",
	KindNotFound:       "not found",
	KindParentNotFound: "parent not found",
	KindInvalidMove:    "invalid move",
	KindForbidden:      "forbidden",
	KindExpired:        "share token expired",
	KindInvalidToken:   "invalid share token",
	KindStorageFailure: "storage failure",
	KindInvalidName:    "invalid name",
	KindIsDirectory:    "is a directory",
	KindNotDirectory:   "not a directory",
	KindLocked:         "encryption key locked",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Error is a domain error from a drive operation.
//
// Op names the operation that failed ("move", "share.revoke", ...), ID is the
// item or token involved, and Err is an optional underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.ID != "" {
		msg += ": " + e.ID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind. An expired token also matches
// ErrInvalidToken so callers that only care about validity need one check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindInvalidToken && e.Kind == KindExpired
}

// Sentinels for errors.Is.
var (
	ErrInvalidPath    = &Error{Kind: KindInvalidPath}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrParentNotFound = &Error{Kind: KindParentNotFound}
	ErrInvalidMove    = &Error{Kind: KindInvalidMove}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrExpired        = &Error{Kind: KindExpired}
	ErrInvalidToken   = &Error{Kind: KindInvalidToken}
	ErrStorageFailure = &Error{Kind: KindStorageFailure}
	ErrInvalidName    = &Error{Kind: KindInvalidName}
	ErrIsDirectory    = &Error{Kind: KindIsDirectory}
	ErrNotDirectory   = &Error{Kind: KindNotDirectory}
	ErrLocked         = &Error{Kind: KindLocked}
)

func newError(kind ErrorKind, op, id string) *Error {
	return &Error{Kind: kind, Op: op, ID: id}
}

// ErrBlobNotFound is returned by BlobStore.Get when no blob exists for a key.
var ErrBlobNotFound = errors.New("blob not found")
