package enums

import "fmt"

// StintStatus mirrors the stint_status enum in Postgres. The settlement
// engine only observes completed and flips settled; the earlier states are
// owned by the staffing flows.
type StintStatus string

const (
	StintStatusOpen       StintStatus = "open"
	StintStatusAccepted   StintStatus = "accepted"
	StintStatusInProgress StintStatus = "in_progress"
	StintStatusCompleted  StintStatus = "completed"
	StintStatusSettled    StintStatus = "settled"
	StintStatusDisputed   StintStatus = "disputed"
	StintStatusCancelled  StintStatus = "cancelled"
)

var validStintStatuses = []StintStatus{
	StintStatusOpen,
	StintStatusAccepted,
	StintStatusInProgress,
	StintStatusCompleted,
	StintStatusSettled,
	StintStatusDisputed,
	StintStatusCancelled,
}

// String implements fmt.Stringer.
func (s StintStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StintStatus.
func (s StintStatus) IsValid() bool {
	for _, candidate := range validStintStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStintStatus converts raw input into a StintStatus.
func ParseStintStatus(value string) (StintStatus, error) {
	for _, candidate := range validStintStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stint status %q", value)
}
