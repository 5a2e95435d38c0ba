// Package apperror classifies failures of the notification stores so callers
// can tell a missing row from a bad request, a name clash or an outage.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound covers both absent rows and rows outside the caller's scope.
	KindNotFound
	KindInvalidRequest
	// KindConflict is a unique constraint violation; retrying with another name may succeed.
	KindConflict
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidRequest:
		return "invalid_request"
	case KindConflict:
		return "conflict"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	// IDs lists the offending identifiers, if any.
	IDs []string
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.IDs) > 0 {
		msg = fmt.Sprintf("%s: [%s]", msg, strings.Join(e.IDs, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// InvalidIDs builds an InvalidRequest error listing the offending ids in a stable order.
func InvalidIDs(message string, ids []string) error {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return &Error{Kind: KindInvalidRequest, Message: message, IDs: sorted}
}

func Conflict(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Err: err}
}

func Unavailable(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindStoreUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func IsInvalid(err error) bool {
	return KindOf(err) == KindInvalidRequest
}

func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

func IsUnavailable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}
