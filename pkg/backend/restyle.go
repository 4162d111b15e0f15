package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/papercomputeco/formu/pkg/poller"
)

// Restyle defaults mirror the web client.
const (
	DefaultRestyleModel    = "sora_image"
	DefaultRestyleSize     = "1024x1024"
	DefaultRestyleStrength = 0.8
)

// Restyle task statuses.
const (
	RestyleSucceeded = "succeeded"
	RestyleFailed    = "failed"
)

// RestyleRequest is an image-to-image submission.
type RestyleRequest struct {
	Prompt   string
	Image    Image
	Model    string
	N        int
	Size     string
	Strength float64
}

func (r RestyleRequest) withDefaults() RestyleRequest {
	if r.Model == "" {
		r.Model = DefaultRestyleModel
	}
	if r.N <= 0 {
		r.N = 1
	}
	if r.Size == "" {
		r.Size = DefaultRestyleSize
	}
	if r.Strength <= 0 {
		r.Strength = DefaultRestyleStrength
	}
	return r
}

// RestyleImage is one generated picture, by URL or inline base64.
type RestyleImage struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}

// RestyleTask is the status document of a restyle job.
type RestyleTask struct {
	ID            string         `json:"id,omitempty"`
	Status        string         `json:"status"`
	FailureReason string         `json:"failure_reason,omitempty"`
	Detail        string         `json:"detail,omitempty"`
	Data          []RestyleImage `json:"data,omitempty"`
}

// RestyleClassifier classifies restyle tasks for the poller.
var RestyleClassifier = poller.StatusClassifier[RestyleTask]{
	Extract:   func(t RestyleTask) string { return t.Status },
	Succeeded: []string{RestyleSucceeded},
	Failed:    []string{RestyleFailed},
	FailureReason: func(t RestyleTask) string {
		return FailureMessage(t.Detail, t.FailureReason)
	},
}

// SubmitRestyle starts an asynchronous restyle job and returns its task id.
func (c *Client) SubmitRestyle(ctx context.Context, r RestyleRequest) (string, error) {
	r = r.withDefaults()

	form := newMultipartForm()
	form.field("prompt", r.Prompt)
	form.file("file", r.Image)
	form.field("model", r.Model)
	form.field("n", strconv.Itoa(r.N))
	form.field("size", r.Size)
	form.field("strength", strconv.FormatFloat(r.Strength, 'f', -1, 64))
	form.field("is_async", "true")
	if err := form.close(); err != nil {
		return "", err
	}

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := c.doForm(ctx, "/sora/image-to-image", form, &out); err != nil {
		return "", err
	}
	if out.TaskID == "" {
		return "", ErrMissingTaskID
	}

	c.logger.Debug("restyle submitted", "task_id", out.TaskID)
	return out.TaskID, nil
}

// RestyleStatus fetches the current status of a restyle job.
func (c *Client) RestyleStatus(ctx context.Context, taskID string) (RestyleTask, error) {
	var task RestyleTask
	err := c.doJSON(ctx, http.MethodGet, "/sora/tasks/"+url.PathEscape(taskID), nil, &task, false)
	return task, err
}
