package session

import "time"

// Session is one continuous period of user activity. EndTime and
// ActiveDurationSeconds stay nil while the session is open; once closed they
// are authoritative and never recomputed.
type Session struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"userId"`
	StartTime             time.Time  `json:"startTime"`
	EndTime               *time.Time `json:"endTime"`
	ActiveDurationSeconds *int64     `json:"activeDurationSeconds"`
	// LastHeartbeat is server-side bookkeeping for idle detection and is not
	// part of the client-facing contract.
	LastHeartbeat time.Time `json:"lastHeartbeat,omitempty"`
}

// Closed reports whether the session has been terminated.
func (s Session) Closed() bool {
	return s.EndTime != nil
}
