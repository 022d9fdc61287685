package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies driver and domain failures so upper layers (and the HTTP
// surface) never have to inspect rod error strings.
type Kind string

const (
	KindBadRequest          Kind = "BadRequest"
	KindPageNotFound        Kind = "PageNotFound"
	KindUnsupportedMethod   Kind = "UnsupportedMethod"
	KindInvalidSelector     Kind = "InvalidSelector"
	KindInvalidArgs         Kind = "InvalidArgs"
	KindElementNotFound     Kind = "ElementNotFound"
	KindNoXPathForEncodedID Kind = "NoXPathForEncodedId"
	KindXPathMapNotCached   Kind = "XPathMapNotCached"
	KindTimeout             Kind = "Timeout"
	KindDialogNotFired      Kind = "DialogNotFired"
	KindDriverGone          Kind = "DriverGone"
	KindAxExtractionFailed  Kind = "AxExtractionFailed"
	KindRecordingNotFound   Kind = "RecordingNotFound"
	KindFilesystemError     Kind = "FilesystemError"
	KindForbidden           Kind = "Forbidden"
	KindBusy                Kind = "Busy"
	KindInternal            Kind = "Internal"
)

// Error is the domain error carried across package boundaries. Driver errors
// are translated here, at the adapter; everything above propagates unchanged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a domain error of the given kind.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to an underlying error.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// Translate maps a raw rod/CDP error into the domain taxonomy. The zero case
// wraps as Internal so callers always get a classified error back.
func Translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "context deadline exceeded"):
		return WrapError(KindTimeout, err, "%s", what)
	case strings.Contains(msg, "cannot find element") || strings.Contains(msg, "element not found"):
		return WrapError(KindElementNotFound, err, "%s", what)
	case strings.Contains(msg, "Cannot find context") || strings.Contains(msg, "Node with given id does not belong"):
		return WrapError(KindElementNotFound, err, "%s: detached", what)
	case strings.Contains(msg, "invalid selector") || strings.Contains(msg, "SyntaxError"):
		return WrapError(KindInvalidSelector, err, "%s", what)
	case strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close") ||
		strings.Contains(msg, "browser has been closed"):
		return WrapError(KindDriverGone, err, "%s", what)
	default:
		return WrapError(KindInternal, err, "%s", what)
	}
}
