package backend

import (
	"errors"

	"github.com/papercomputeco/formu/pkg/poller"
)

// UnknownError is shown when a failure carries no usable message.
const UnknownError = "unknown error"

// FailureMessage returns the first non-empty of the given messages, checked
// in order (typically detail, then failure_reason), or UnknownError.
func FailureMessage(messages ...string) string {
	for _, m := range messages {
		if m != "" {
			return m
		}
	}
	return UnknownError
}

// Describe turns a job error into the single line shown to the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var serr *StatusError
	if errors.As(err, &serr) && serr.Detail != "" {
		return serr.Detail
	}

	var perr *poller.Error
	if errors.As(err, &perr) {
		switch perr.Kind {
		case poller.KindTimeout:
			return "task polling timed out"
		case poller.KindFailed:
			return FailureMessage(perr.Detail)
		}
	}

	return FailureMessage(err.Error())
}
