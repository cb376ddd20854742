// Package regerr defines the closed taxonomy of error kinds that cross the
// sync and serve engine boundaries, so that callers can switch on kind
// rather than match against formatted strings.
package regerr

import "fmt"

// Kind identifies one of the error categories in the taxonomy. The sync
// engine returns these errors and aborts the run; the serve engine's
// handlers pick HTTP status codes themselves and do not inspect Kind.
type Kind uint8

const (
	// LockLoad means the lockfile could not be read or parsed.
	LockLoad Kind = iota
	// Resolver means the external resolver returned a diagnostic.
	Resolver
	// ArchiveRead means a source archive could not be read during a copy task.
	ArchiveRead
	// ArchiveWrite means an archive could not be written to the registry root.
	ArchiveWrite
	// IndexIO means an index file could not be read, written, or sorted.
	IndexIO
	// UpstreamTransport means the upstream request failed below the HTTP layer.
	UpstreamTransport
	// UpstreamStatus means the upstream responded with a non-2xx status.
	UpstreamStatus
	// RefreshTimeout means a bounded freshness refresh exceeded its deadline.
	// This is not surfaced as a failure; it signals "fall back to local".
	RefreshTimeout
	// Parse means an archive filename failed to parse into (name, version).
	Parse
	// PathEscape means a requested path resolved outside the registry root.
	PathEscape
)

func (k Kind) String() string {
	switch k {
	case LockLoad:
		return "lock_load"
	case Resolver:
		return "resolver"
	case ArchiveRead:
		return "archive_read"
	case ArchiveWrite:
		return "archive_write"
	case IndexIO:
		return "index_io"
	case UpstreamTransport:
		return "upstream_transport"
	case UpstreamStatus:
		return "upstream_status"
	case RefreshTimeout:
		return "refresh_timeout"
	case Parse:
		return "parse"
	case PathEscape:
		return "path_escape"
	default:
		return "unknown"
	}
}

// Error is a typed error carrying its Kind plus whatever context the
// producing site attached. Cause is the wrapped error, if any.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind with a message, no cause.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg}
}

// Wrap constructs an *Error of the given kind, wrapping cause.
func Wrap(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, Cause: cause}
}

// Is reports whether err is a *Error of kind k.
func Is(err error, k Kind) bool {
	re, ok := err.(*Error)
	return ok && re.Kind == k
}
