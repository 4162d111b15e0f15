package eventstream

import "errors"

// ErrNilJobEvent indicates a nil job event payload was provided to a publisher.
var ErrNilJobEvent = errors.New("nil job event")
