package trainingdto

type QuotaStatus struct {
	Feature     string `json:"feature"`
	Allowed     bool   `json:"allowed"`
	Remaining   int    `json:"remaining"`
	Limit       int    `json:"limit"`
	Unlimited   bool   `json:"unlimited,omitempty"`
	AlreadySeen bool   `json:"already_seen,omitempty"`
	// LimitReached marks an increment refused because the quota is spent.
	LimitReached bool `json:"limit_reached,omitempty"`
}

type QuotaIncrementRequest struct {
	UserID  string   `json:"user_id"`
	Feature string   `json:"feature"`
	Key     string   `json:"key,omitempty"`
	Moves   []string `json:"moves,omitempty"`
}
