package notifier

import (
	"time"

	"github.com/MrEthical07/clubAuth"
)

// Message is the JSON body published for one notification.
type Message struct {
	Purpose     string    `json:"purpose"`
	Destination string    `json:"destination"`
	SubjectID   string    `json:"subject_id"`
	DisplayName string    `json:"display_name,omitempty"`
	SessionID   string    `json:"session_id"`
	Code        string    `json:"code,omitempty"`
	Link        string    `json:"link,omitempty"`
	ExpiresIn   int64     `json:"expires_in_seconds"`
	SentAt      time.Time `json:"sent_at"`
}

func newMessage(n clubAuth.Notification, now time.Time) Message {
	return Message{
		Purpose:     string(n.Purpose),
		Destination: n.Destination,
		SubjectID:   n.SubjectID,
		DisplayName: n.DisplayName,
		SessionID:   n.SessionID,
		Code:        n.Code,
		Link:        n.Link,
		ExpiresIn:   int64(n.ExpiresIn / time.Second),
		SentAt:      now.UTC(),
	}
}
