package model

import "time"

// Message is the bounded projection of a downstream mail item served by the
// relay: identifier, subject, sender address, received timestamp, preview
// text, read flag, attachment flag.
type Message struct {
	ID             string
	Subject        string
	From           string
	ReceivedAt     time.Time
	BodyPreview    string
	IsRead         bool
	HasAttachments bool
}

// Inbox is a page of messages together with its count.
type Inbox struct {
	Count    int
	Messages []Message
}
