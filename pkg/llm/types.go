package llm

import (
	"fmt"
	"net/http"
)

// Message represents a chat message in a conversation. ImageURL, when set,
// attaches an image to the message for vision-capable models.
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

// Options adjusts a single completion request.
type Options struct {
	// JSONResponse asks the model to return a single JSON object.
	JSONResponse bool
	// Model overrides the configured default model for this request.
	Model string
}

// Response represents a complete response from an LLM provider.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption for a request/response pair.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// APIError is a non-2xx response from the backend. Retryable reports
// whether the failure is worth retrying (rate limit or server error).
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
