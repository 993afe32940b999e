package model

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	ErrorType string         `json:"type"`
	Attribute map[string]any `json:"attribute,omitempty"`
}
