package poller

import "slices"

// Classifier decides whether a fetched status is terminal. The poller itself
// knows nothing about the shape of T.
type Classifier[T any] interface {
	IsSuccess(status T) bool
	IsFailure(status T) bool

	// Reason returns a human-readable failure reason for a failed status.
	Reason(status T) string
}

// StatusClassifier classifies by a status string extracted from T.
type StatusClassifier[T any] struct {
	// Extract returns the status field, wherever T keeps it.
	Extract func(status T) string

	// Succeeded lists status values that mean success.
	Succeeded []string

	// Failed lists status values that mean failure.
	Failed []string

	// FailureReason optionally pulls a reason out of a failed status.
	FailureReason func(status T) string
}

func (c StatusClassifier[T]) IsSuccess(status T) bool {
	return slices.Contains(c.Succeeded, c.Extract(status))
}

func (c StatusClassifier[T]) IsFailure(status T) bool {
	return slices.Contains(c.Failed, c.Extract(status))
}

func (c StatusClassifier[T]) Reason(status T) string {
	if c.FailureReason != nil {
		if reason := c.FailureReason(status); reason != "" {
			return reason
		}
	}
	return "status " + c.Extract(status)
}
