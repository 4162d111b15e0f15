// Package quota holds the process-wide view of the user's usage allowance.
//
// A Store is built once per process and handed to every consumer that needs
// to read or refresh quota. Snapshots are immutable values: a refresh replaces
// the current one wholesale and then notifies every subscriber.
package quota

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	// LoggedOutPlanName is the plan label shown when no quota is available.
	LoggedOutPlanName = "please log in"

	// LoggedOutPlanColor is the plan color shown when no quota is available.
	LoggedOutPlanColor = "#999999"

	unlimitedLiteral = "unlimited"
)

// Remaining is a usage count that may be unbounded. The zero value is a
// limited count of zero, never unlimited.
type Remaining struct {
	n         int
	unlimited bool
}

// Limited returns a bounded count.
func Limited(n int) Remaining {
	return Remaining{n: n}
}

// Unlimited returns the no-cap value.
func Unlimited() Remaining {
	return Remaining{unlimited: true}
}

// FromNullable maps a backend value where nil means unlimited.
func FromNullable(n *int) Remaining {
	if n == nil {
		return Unlimited()
	}
	return Limited(*n)
}

// IsUnlimited reports whether there is no cap.
func (r Remaining) IsUnlimited() bool {
	return r.unlimited
}

// Count returns the bounded count and false when r is unlimited.
func (r Remaining) Count() (int, bool) {
	if r.unlimited {
		return 0, false
	}
	return r.n, true
}

func (r Remaining) String() string {
	if r.unlimited {
		return unlimitedLiteral
	}
	return strconv.Itoa(r.n)
}

// MarshalJSON encodes unlimited as the string "unlimited" and counts as
// numbers.
func (r Remaining) MarshalJSON() ([]byte, error) {
	if r.unlimited {
		return json.Marshal(unlimitedLiteral)
	}
	return json.Marshal(r.n)
}

// UnmarshalJSON accepts a number, null, or "unlimited".
func (r *Remaining) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Unlimited()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != unlimitedLiteral {
			return fmt.Errorf("invalid remaining value %q", s)
		}
		*r = Unlimited()
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid remaining value: %w", err)
	}
	*r = Limited(n)
	return nil
}

// Snapshot is the quota state at one point in time.
type Snapshot struct {
	Used      int       `json:"used"`
	Remaining Remaining `json:"remaining"`
	CanUse    bool      `json:"can_use"`
	PlanName  string    `json:"plan_name"`
	PlanColor string    `json:"plan_color"`
	UserType  string    `json:"user_type,omitempty"`
	MaxUsage  Remaining `json:"max_usage"`
}

// LoggedOut is the fixed snapshot used before the first refresh, after a
// failed refresh, and after Reset.
func LoggedOut() Snapshot {
	return Snapshot{
		Remaining: Limited(0),
		CanUse:    false,
		PlanName:  LoggedOutPlanName,
		PlanColor: LoggedOutPlanColor,
		MaxUsage:  Limited(0),
	}
}

// IsLoggedOut reports whether s is the logged-out default.
func (s Snapshot) IsLoggedOut() bool {
	return s == LoggedOut()
}
