package model

import "fmt"

// Status is the run state shared by jobs and subjobs.
type Status int

const (
	StatusQueued Status = iota
	StatusRunning
	StatusFinished
	StatusFailed
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusQueued:    "Queued",
	StatusRunning:   "Running",
	StatusFinished:  "Finished",
	StatusFailed:    "Failed",
	StatusCancelled: "Cancelled",
}

// String returns the display name, or "Unknown (n)" for unmapped codes.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", int(s))
}

// Known reports whether s is one of the mapped status codes.
func (s Status) Known() bool {
	_, ok := statusNames[s]
	return ok
}

// InFlight reports whether work in this state has not reached a terminal state.
func (s Status) InFlight() bool {
	return s == StatusQueued || s == StatusRunning
}

// ParseStatus maps a display name back to its code.
func ParseStatus(name string) (Status, bool) {
	for code, n := range statusNames {
		if n == name {
			return code, true
		}
	}
	return 0, false
}
