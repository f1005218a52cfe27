package domain

import "time"

// Notification is an outbound plaintext message addressed to one mailbox.
// It is the payload queued or published by the non-SMTP notification backends.
type Notification struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created"`
}
