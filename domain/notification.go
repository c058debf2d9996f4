package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationFollow          NotificationType = "follow"
	NotificationFollowRequested NotificationType = "followRequested"
	NotificationFollowAccepted  NotificationType = "followAccepted"
	NotificationBite            NotificationType = "bite"
)

// Notification is a side-effect record raised by federation state
// transitions; it is not itself part of the protocol.
type Notification struct {
	Id               uuid.UUID
	AccountId        uuid.UUID // the local user receiving the notification
	NotificationType NotificationType
	ActorId          uuid.UUID // the account that triggered it
	ActorUsername    string    // denormalized for display
	ActorHost        string    // empty for local actors
	NoteId           *uuid.UUID
	BiteId           *uuid.UUID
	Read             bool
	CreatedAt        time.Time
}

// ActorHandle returns the formatted @user or @user@host string
func (n *Notification) ActorHandle() string {
	if n.ActorHost == "" {
		return "@" + n.ActorUsername
	}
	return "@" + n.ActorUsername + "@" + n.ActorHost
}

// TypeLabel returns a human-readable label for the notification type
func (n *Notification) TypeLabel() string {
	switch n.NotificationType {
	case NotificationFollow:
		return "followed you"
	case NotificationFollowRequested:
		return "requested to follow you"
	case NotificationFollowAccepted:
		return "accepted your follow request"
	case NotificationBite:
		return "bit you"
	default:
		return ""
	}
}
