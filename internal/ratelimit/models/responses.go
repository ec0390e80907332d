package models

// ExceededResponse is the 429 body written by the HTTP middleware.
type ExceededResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ErrorCode  string `json:"error_code"`
	RetryAfter int    `json:"retry_after"`
}
