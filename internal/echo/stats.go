//go:build linux

package echo

import "sync/atomic"

// Stats are the live counters of one server. All fields are atomics so
// the control plane can snapshot them while the loop runs.
type Stats struct {
	Received       atomic.Uint64
	Replied        atomic.Uint64
	ReplyErrors    atomic.Uint64
	AbsentInfo     atomic.Uint64
	FamilyMismatch atomic.Uint64
	Anomalies      atomic.Uint64
	Truncated      atomic.Uint64
}

// Snapshot is a point in time copy for status reporting.
type Snapshot struct {
	Received       uint64 `json:"received"`
	Replied        uint64 `json:"replied"`
	ReplyErrors    uint64 `json:"reply_errors"`
	AbsentInfo     uint64 `json:"absent_info"`
	FamilyMismatch uint64 `json:"family_mismatch"`
	Anomalies      uint64 `json:"ancillary_anomalies"`
	Truncated      uint64 `json:"truncated"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Received:       s.Received.Load(),
		Replied:        s.Replied.Load(),
		ReplyErrors:    s.ReplyErrors.Load(),
		AbsentInfo:     s.AbsentInfo.Load(),
		FamilyMismatch: s.FamilyMismatch.Load(),
		Anomalies:      s.Anomalies.Load(),
		Truncated:      s.Truncated.Load(),
	}
}
