// Package delivery sends generated campaign emails to recipients. The Sink
// interface is the boundary between the dispatch pipeline and the outbound
// provider so the pipeline never depends on a specific ESP.
package delivery

import (
	"context"
	"time"
)

// Message is one email to be delivered to a set of recipients.
type Message struct {
	CampaignID  string
	EmailNumber int
	Subject     string
	Body        string
	FromEmail   string
	FromName    string
	Recipients  []string
}

// RecipientResult records the outcome for a single recipient.
type RecipientResult struct {
	Email     string
	Success   bool
	MessageID string
	Error     error
	SentAt    time.Time
}

// Result aggregates per-recipient outcomes for one dispatch.
type Result struct {
	Delivered int
	Failed    int
	Results   []RecipientResult
}

// AllFailed reports whether no recipient accepted the message. The dispatch
// pipeline treats that as a retryable failure; a partial failure is not.
func (r *Result) AllFailed() bool {
	return r.Delivered == 0 && r.Failed > 0
}

// Sink delivers a message to its recipients. Implementations attempt every
// recipient and report per-recipient outcomes rather than failing fast.
type Sink interface {
	Deliver(ctx context.Context, msg *Message) (*Result, error)
}
