package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Priority indicates how urgently a notification should be surfaced to the user.
type Priority string

// The fixed set of notification priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// The fixed vocabulary of notification types.
const (
	TypeBudgetPending  = "budget-pending"
	TypeBudgetApproved = "budget-approved"
	TypeBudgetRejected = "budget-rejected"
	TypeTicketNew      = "ticket-new"
	TypeTicketResolved = "ticket-resolved"
	TypeProjectUpdate  = "project-update"
	TypeClientUpdate   = "client-update"
	TypeSystem         = "system"
)

// defaultPriorityFor maps each notification type to the priority used when the
// server omits one.
var defaultPriorityFor = map[string]Priority{
	TypeBudgetPending:  PriorityHigh,
	TypeBudgetApproved: PriorityMedium,
	TypeBudgetRejected: PriorityHigh,
	TypeTicketNew:      PriorityHigh,
	TypeTicketResolved: PriorityLow,
	TypeProjectUpdate:  PriorityMedium,
	TypeClientUpdate:   PriorityMedium,
	TypeSystem:         PriorityLow,
}

// DefaultPriority returns the priority assigned to notifications of the given
// type when the server doesn't specify one.
func DefaultPriority(notificationType string) Priority {
	if p, ok := defaultPriorityFor[notificationType]; ok {
		return p
	}
	return PriorityMedium
}

// Notification represents a single notification delivered to a user or role.
type Notification struct {
	ID                string                 `json:"id"`
	UserID            string                 `json:"userId,omitempty"`
	TargetRole        string                 `json:"targetRole,omitempty"`
	Title             string                 `json:"title"`
	Message           string                 `json:"message"`
	Type              string                 `json:"type"`
	Priority          Priority               `json:"priority,omitempty"`
	Read              bool                   `json:"read"`
	CreatedAt         time.Time              `json:"createdAt"`
	RelatedEntityID   string                 `json:"relatedEntityId,omitempty"`
	RelatedEntityType string                 `json:"relatedEntityType,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// Recipient returns whichever of the user ID or target role identifies the
// recipient of the notification.
func (n *Notification) Recipient() string {
	if n.UserID != "" {
		return n.UserID
	}
	return n.TargetRole
}

// DecodeError is returned for inbound frames that can't be turned into a valid
// notification.
type DecodeError struct {
	message string
}

// Error returns the error message for a DecodeError.
func (e DecodeError) Error() string {
	return e.message
}

// NewDecodeError returns a new error indicating that an inbound frame was malformed.
func NewDecodeError(formatString string, a ...interface{}) DecodeError {
	return DecodeError{message: fmt.Sprintf(formatString, a...)}
}

// Decode parses a single inbound JSON frame into a notification, enforcing the
// schema at the boundary: the ID is required, at least one of the user ID and
// target role must identify a recipient, and an omitted priority is defaulted
// from the notification type. Malformed frames yield a DecodeError.
func Decode(frame []byte) (*Notification, error) {
	var notification Notification
	err := json.Unmarshal(frame, &notification)
	if err != nil {
		return nil, NewDecodeError("unable to parse notification frame: %s", err.Error())
	}

	// Validate the required fields.
	if notification.ID == "" {
		return nil, NewDecodeError("notification frame has no id")
	}
	if notification.UserID == "" && notification.TargetRole == "" {
		return nil, NewDecodeError("notification %s has no recipient", notification.ID)
	}

	// Apply the priority default for the notification type.
	if notification.Priority == "" {
		notification.Priority = DefaultPriority(notification.Type)
	}

	return &notification, nil
}
