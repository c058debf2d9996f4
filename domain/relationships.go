package domain

import (
	"time"

	"github.com/google/uuid"
)

// Following is a confirmed follower->followee edge. Host and inbox columns of
// both ends are denormalized so the delivery layer can fan out without extra
// lookups. At most one edge exists per ordered pair.
type Following struct {
	Id                    uuid.UUID
	FollowerId            uuid.UUID
	FolloweeId            uuid.UUID
	FollowerHost          string
	FollowerInboxURI      string
	FollowerSharedInbox   string
	FolloweeHost          string
	FolloweeInboxURI      string
	FolloweeSharedInbox   string
	CreatedAt             time.Time
}

// FollowRequest is a pending follow awaiting approval by a locked followee.
// RequestURI is the ActivityPub id of the inbound Follow activity; a later
// Accept or Reject is correlated through it. A given ordered pair has a
// FollowRequest or a Following edge, never both.
type FollowRequest struct {
	Id         uuid.UUID
	FollowerId uuid.UUID
	FolloweeId uuid.UUID
	RequestURI string
	CreatedAt  time.Time
}

// Blocking is a directed block edge. An inbound Follow across a block in
// either direction is answered with a federated Reject.
type Blocking struct {
	Id        uuid.UUID
	BlockerId uuid.UUID
	BlockeeId uuid.UUID
	CreatedAt time.Time
}
