package jobs_test

import (
	"context"
	"sync"

	"github.com/papercomputeco/formu/pkg/backend"
	"github.com/papercomputeco/formu/pkg/eventstream"
)

// fakeBackend scripts job statuses and records calls in order.
type fakeBackend struct {
	mu sync.Mutex

	submitErr    error
	incrementErr error

	restyle []backend.RestyleTask
	model3d []backend.Model3DTask
	polls   int

	restyleReqs []backend.RestyleRequest
	model3dReqs []backend.Model3DRequest
	increments  []string
	calls       []string
}

func (f *fakeBackend) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) SubmitRestyle(_ context.Context, r backend.RestyleRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("submit")
	f.restyleReqs = append(f.restyleReqs, r)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "sora-1", nil
}

func (f *fakeBackend) RestyleStatus(_ context.Context, _ string) (backend.RestyleTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("poll")
	i := min(f.polls, len(f.restyle)-1)
	f.polls++
	return f.restyle[i], nil
}

func (f *fakeBackend) Submit3D(_ context.Context, r backend.Model3DRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("submit")
	f.model3dReqs = append(f.model3dReqs, r)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "tripo-1", nil
}

func (f *fakeBackend) Model3DStatus(_ context.Context, _ string) (backend.Model3DTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("poll")
	i := min(f.polls, len(f.model3d)-1)
	f.polls++
	return f.model3d[i], nil
}

func (f *fakeBackend) IncrementUsage(_ context.Context, taskID string, service backend.ServiceType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("increment")
	f.increments = append(f.increments, taskID+":"+string(service))
	return f.incrementErr
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.JobEvent
}

func (p *recordingPublisher) PublishJob(_ context.Context, event *eventstream.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []*eventstream.JobEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.JobEvent(nil), p.events...)
}
