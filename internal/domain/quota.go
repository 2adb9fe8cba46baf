package domain

import "time"

// QuotaRecord is the persisted state of one (user, feature) quota. Which
// fields are meaningful depends on the feature's reset policy.
type QuotaRecord struct {
	Count         int          `json:"count"`
	LastResetDate string       `json:"last_reset_date,omitempty"`
	Events        []QuotaEvent `json:"events,omitempty"`
	LastReset     time.Time    `json:"last_reset,omitempty"`
	Used          bool         `json:"used,omitempty"`
}

type QuotaEvent struct {
	Key    string    `json:"key"`
	SeenAt time.Time `json:"seen_at"`
}

func (r *QuotaRecord) Clone() *QuotaRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Events = append([]QuotaEvent(nil), r.Events...)
	return &out
}
