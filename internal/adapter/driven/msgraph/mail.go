package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"mailrelay/internal/domain/model"
	"mailrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MailClient = (*Mail)(nil)

// Mail implements the driven.MailClient port against the Graph messages
// endpoint. Message previews are sanitized before they cross the domain
// boundary.
type Mail struct {
	httpClient *http.Client
	baseURL    string
	top        int
	sanitizer  *bluemonday.Policy
}

// NewMail creates a Mail client fetching up to top messages per call. An
// empty baseURL falls back to the production Graph endpoint.
func NewMail(baseURL string, top int) *Mail {
	if baseURL == "" {
		baseURL = DefaultGraphURL
	}
	return &Mail{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		top:        top,
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

// NewMailWithHTTPClient creates a Mail client with a custom http.Client and
// base URL. This constructor is intended for testing, allowing injection of
// an httptest server.
func NewMailWithHTTPClient(httpClient *http.Client, baseURL string, top int) *Mail {
	return &Mail{
		httpClient: httpClient,
		baseURL:    baseURL,
		top:        top,
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

// graphMessage is the wire shape of a Graph mail item, limited to the
// fields the relay projects.
type graphMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	ReceivedDateTime string `json:"receivedDateTime"`
	BodyPreview      string `json:"bodyPreview"`
	IsRead           bool   `json:"isRead"`
	HasAttachments   bool   `json:"hasAttachments"`
}

// ListInbox fetches the caller's most recent messages with the access token
// as a bearer credential. Every non-200 response, including a 401 token
// rejection, is normalized into *driven.DownstreamError.
func (m *Mail) ListInbox(ctx context.Context, accessToken string) ([]model.Message, error) {
	endpoint := fmt.Sprintf("%s/me/messages?$top=%d", m.baseURL, m.top)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &driven.DownstreamError{Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &driven.DownstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &driven.DownstreamError{Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &driven.DownstreamError{
			Status:  resp.StatusCode,
			Message: graphErrorMessage(body, resp.StatusCode),
		}
	}

	var list struct {
		Value []graphMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, &driven.DownstreamError{Status: resp.StatusCode, Message: "malformed message list response"}
	}

	messages := make([]model.Message, 0, len(list.Value))
	for _, gm := range list.Value {
		messages = append(messages, m.mapMessage(gm))
	}
	return messages, nil
}

func (m *Mail) mapMessage(gm graphMessage) model.Message {
	// receivedDateTime is RFC3339; a malformed value degrades to zero time
	// rather than failing the whole page.
	receivedAt, _ := time.Parse(time.RFC3339, gm.ReceivedDateTime)

	return model.Message{
		ID:             gm.ID,
		Subject:        gm.Subject,
		From:           gm.From.EmailAddress.Address,
		ReceivedAt:     receivedAt,
		BodyPreview:    m.sanitizer.Sanitize(gm.BodyPreview),
		IsRead:         gm.IsRead,
		HasAttachments: gm.HasAttachments,
	}
}
