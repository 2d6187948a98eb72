package domain

import "time"

// ExclusionEntry marks a candidate as permanently unreachable for every target.
type ExclusionEntry struct {
	CandidateKey string
	Reason       string
	HitCount     int
	FirstSeen    time.Time
	LastSeen     time.Time
}
