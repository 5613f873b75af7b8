package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrRateLimited   = errors.New("rate limited")

	// ErrRetriesExhausted escalates a transient failure to permanent once the
	// retry budget is spent. It wraps the final transient error so diagnostics
	// keep the original classification.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Class partitions failures for retry and routing decisions.
type Class string

const (
	// ClassTransient failures may be retried.
	ClassTransient Class = "transient"
	// ClassPermanent failures route the asset to an error partition.
	ClassPermanent Class = "permanent"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to the transient/permanent split used by the retry
// policy and the outcome router. Timeouts and rate limits count as transient;
// everything else, including nil, is permanent.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrRetriesExhausted):
		return ClassPermanent
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout), errors.Is(err, ErrRateLimited):
		return ClassTransient
	default:
		return ClassPermanent
	}
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
