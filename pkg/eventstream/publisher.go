package eventstream

import "context"

// Publisher publishes job lifecycle events to an event stream backend.
type Publisher interface {
	PublishJob(ctx context.Context, event *JobEvent) error
	Close() error
}
