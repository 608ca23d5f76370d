package models

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Code    string            `json:"code,omitempty"`    // Taxonomy code, see ErrorCode
	Details map[string]string `json:"details,omitempty"` // Validation details
}
