package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrReferencedAsset = errors.New("asset is referenced")
	ErrRender          = errors.New("render error")
	ErrStorage         = errors.New("storage error")
	ErrAborted         = errors.New("aborted")
	ErrExternalTool    = errors.New("external tool error")
	ErrConfiguration   = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStorage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Code maps an error to the stable code recorded on failed jobs and returned
// by the HTTP API.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAbort(err):
		return "aborted"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrReferencedAsset):
		return "referenced_asset"
	case errors.Is(err, ErrRender):
		return "render"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}

// IsAbort reports whether an error represents cooperative cancellation rather
// than a failure. Cancelled work must never be recorded as failed.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

var markers = []error{
	ErrValidation,
	ErrNotFound,
	ErrConflict,
	ErrQuotaExceeded,
	ErrReferencedAsset,
	ErrRender,
	ErrStorage,
	ErrAborted,
	ErrExternalTool,
	ErrConfiguration,
}

// Message returns the human-readable portion of a wrapped error with the
// leading marker text stripped, for surfaces that already carry the code.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range markers {
		if rest, ok := strings.CutPrefix(msg, marker.Error()+": "); ok {
			return rest
		}
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
