package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"mailrelay/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErrorCode writes a JSON error response with a machine-readable code.
func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// LoginResponse confirms a completed login.
type LoginResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// LogoutResponse confirms a logout.
type LogoutResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// MessageResponse is the JSON representation of a single inbox message.
type MessageResponse struct {
	ID             string `json:"id"`
	Subject        string `json:"subject"`
	From           string `json:"from"`
	ReceivedAt     string `json:"received_at"`
	BodyPreview    string `json:"body_preview"`
	IsRead         bool   `json:"is_read"`
	HasAttachments bool   `json:"has_attachments"`
}

// InboxResponse is a page of messages with its count.
type InboxResponse struct {
	Count    int               `json:"count"`
	Messages []MessageResponse `json:"messages"`
}

// toMessageResponse converts a domain Message to its JSON representation.
func toMessageResponse(msg model.Message) MessageResponse {
	receivedAt := ""
	if !msg.ReceivedAt.IsZero() {
		receivedAt = msg.ReceivedAt.UTC().Format(time.RFC3339)
	}

	return MessageResponse{
		ID:             msg.ID,
		Subject:        msg.Subject,
		From:           msg.From,
		ReceivedAt:     receivedAt,
		BodyPreview:    msg.BodyPreview,
		IsRead:         msg.IsRead,
		HasAttachments: msg.HasAttachments,
	}
}
