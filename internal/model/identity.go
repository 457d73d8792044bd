package model

type (
	RegisterResponse struct {
		AnonymousCode    string `json:"anonymous_code"`
		ExpiresInMinutes int    `json:"expires_in_minutes"`
		Message          string `json:"message"`
	}

	StatusResponse struct {
		AnonymousCode    string `json:"anonymous_code"`
		IsActive         bool   `json:"is_active"`
		RemainingSeconds int64  `json:"remaining_seconds"`
		RemainingMinutes int64  `json:"remaining_minutes"`
		MessagesSent     int64  `json:"messages_sent"`
		Message          string `json:"message"`
	}

	RevokeResponse struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)
