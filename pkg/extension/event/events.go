// Package event defines the payloads passed to extension event listeners.
package event

import (
	"net/mail"
	"time"
)

// Payment outcome values shared by repayment events and listener decisions.
const (
	PaymentSuccess = "success"
	PaymentPending = "pending"
	PaymentFailed  = "failed"
)

// MessageMetadata contains the basic header data for a message event.
type MessageMetadata struct {
	Mailbox     string
	ID          string
	ThreadID    string
	From        *mail.Address
	To          []*mail.Address
	Cc          []*mail.Address
	Bcc         []*mail.Address
	Date        time.Time
	Subject     string
	Snippet     string
	Labels      []string
	ScheduledAt time.Time // Zero unless the message is waiting to be sent.
	Size        int64
}

// DraftMetadata describes a draft after it has been created or updated.
type DraftMetadata struct {
	Mailbox   string
	DraftID   string
	MessageID string
	ThreadID  string
	To        []*mail.Address
	Subject   string
	UpdatedAt time.Time
}

// Repayment describes a repayment request as it passes through the processor.  Status and
// Message are empty in before-events.
type Repayment struct {
	PaymentID     string
	EntityID      string
	EntityName    string
	EntityGroupID string
	DisplayName   string
	RankingHint   float64
	Status        string
	Message       string
	ProcessedAt   time.Time
}

// PaymentDecision is returned by before-repayment listeners to override the processor.
type PaymentDecision struct {
	Status  string
	Message string
}
