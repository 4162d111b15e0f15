package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/papercomputeco/formu/pkg/quota"
)

// ServiceType names the backend a usage increment is charged to.
type ServiceType string

const (
	ServiceRestyle ServiceType = "sora"
	Service3D      ServiceType = "tripo"
)

// PlanConfig is the plan block of a usage response.
type PlanConfig struct {
	Name     string `json:"name"`
	MaxUsage *int   `json:"maxUsage"`
	Color    string `json:"color"`
}

// UsageResponse is the body of GET /api/usage. A nil Remaining or MaxUsage
// means unlimited.
type UsageResponse struct {
	Used      int        `json:"used"`
	Remaining *int       `json:"remaining"`
	CanUse    bool       `json:"can_use"`
	UserType  string     `json:"user_type"`
	Config    PlanConfig `json:"config"`
}

// Snapshot converts the response into a quota snapshot.
func (u UsageResponse) Snapshot() quota.Snapshot {
	return quota.Snapshot{
		Used:      u.Used,
		Remaining: quota.FromNullable(u.Remaining),
		CanUse:    u.CanUse,
		PlanName:  u.Config.Name,
		PlanColor: u.Config.Color,
		UserType:  u.UserType,
		MaxUsage:  quota.FromNullable(u.Config.MaxUsage),
	}
}

// Usage fetches the caller's usage allowance.
func (c *Client) Usage(ctx context.Context) (UsageResponse, error) {
	if !c.LoggedIn() {
		return UsageResponse{}, ErrNotLoggedIn
	}

	var out UsageResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/usage", nil, &out, true); err != nil {
		return UsageResponse{}, authError(err)
	}
	return out, nil
}

// IncrementUsage charges one use of service for a completed task.
func (c *Client) IncrementUsage(ctx context.Context, taskID string, service ServiceType) error {
	if !c.LoggedIn() {
		return ErrNotLoggedIn
	}

	in := map[string]string{
		"task_id":      taskID,
		"service_type": string(service),
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/usage/increment", in, nil, true); err != nil {
		return fmt.Errorf("incrementing usage: %w", authError(err))
	}

	c.logger.Debug("usage incremented", "task_id", taskID, "service", service)
	return nil
}

// FetchQuota adapts Usage to quota.FetchFunc.
func (c *Client) FetchQuota(ctx context.Context) (quota.Snapshot, error) {
	u, err := c.Usage(ctx)
	if err != nil {
		return quota.Snapshot{}, err
	}
	return u.Snapshot(), nil
}

func authError(err error) error {
	var serr *StatusError
	if errors.As(err, &serr) && serr.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return err
}
