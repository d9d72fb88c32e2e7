package monitor

import "time"

// Status is the last observed health of every registered dependency.
type Status struct {
	Components map[string]bool `json:"components"`
	Healthy    bool            `json:"healthy"`
	LastCheck  time.Time       `json:"last_check"`
}
