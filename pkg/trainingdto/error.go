package trainingdto

const (
	CodeInvalidTrack      = "invalid_track"
	CodeInvalidDifficulty = "invalid_difficulty"
	CodeUnknownFeature    = "unknown_feature"
	CodeQuotaExceeded     = "quota_exceeded"
	CodeBadRequest        = "bad_request"
	CodeUserRequired      = "user_required"
	CodeInternal          = "internal"
)

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "training service error"
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error DomainError `json:"error"`
	// quota_exceeded only
	Remaining  *int   `json:"remaining,omitempty"`
	Limit      *int   `json:"limit,omitempty"`
	UpgradeURL string `json:"upgrade_url,omitempty"`
}
