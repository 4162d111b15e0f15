package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/papercomputeco/formu/pkg/poller"
)

// 3D task statuses.
const (
	Model3DSucceeded = "success"
	Model3DFailed    = "failed"
)

// Model3DRequest is an image-to-3D submission.
type Model3DRequest struct {
	Image  Image
	Prompt string
}

// Model3DProgress is the upstream task state nested under "data".
type Model3DProgress struct {
	TaskID   string `json:"task_id,omitempty"`
	Status   string `json:"status"`
	Progress int    `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Model3DTask is the status document of a 3D job.
type Model3DTask struct {
	Data       Model3DProgress `json:"data"`
	ModelURL   string          `json:"model_url,omitempty"`
	PreviewURL string          `json:"preview_url,omitempty"`
	Detail     string          `json:"detail,omitempty"`
}

// Model3DClassifier classifies 3D tasks for the poller.
var Model3DClassifier = poller.StatusClassifier[Model3DTask]{
	Extract:   func(t Model3DTask) string { return t.Data.Status },
	Succeeded: []string{Model3DSucceeded},
	Failed:    []string{Model3DFailed},
	FailureReason: func(t Model3DTask) string {
		return FailureMessage(t.Detail, t.Data.Message)
	},
}

// Submit3D starts a 3D reconstruction job and returns its task id.
func (c *Client) Submit3D(ctx context.Context, r Model3DRequest) (string, error) {
	form := newMultipartForm()
	form.file("file", r.Image)
	if r.Prompt != "" {
		form.field("prompt", r.Prompt)
	}
	if err := form.close(); err != nil {
		return "", err
	}

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := c.doForm(ctx, "/3d-generation/submit", form, &out); err != nil {
		return "", err
	}
	if out.TaskID == "" {
		return "", ErrMissingTaskID
	}

	c.logger.Debug("3d model submitted", "task_id", out.TaskID)
	return out.TaskID, nil
}

// Model3DStatus fetches the current status of a 3D job.
func (c *Client) Model3DStatus(ctx context.Context, taskID string) (Model3DTask, error) {
	var task Model3DTask
	err := c.doJSON(ctx, http.MethodGet, "/3d-generation/tasks/"+url.PathEscape(taskID), nil, &task, false)
	return task, err
}
