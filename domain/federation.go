package domain

import (
	"time"

	"github.com/google/uuid"
)

// Instance is per-host federation bookkeeping, updated opportunistically when
// activities arrive from that host.
type Instance struct {
	Host        string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// Activity is a log row for an inbound or outbound activity, used for
// deduplication and debugging.
type Activity struct {
	Id           uuid.UUID
	ActivityURI  string
	ActivityType string // Follow, Create, Like, Announce, Undo, Bite, ...
	ActorURI     string
	ObjectURI    string
	RawJSON      string
	Processed    bool
	Local        bool // true if originated from this server
	CreatedAt    time.Time
}

// DeliveryJob is one unit of outbound work handed to the delivery worker.
// The activity is embedded fully serialized so the job is self-contained;
// the worker owns signing, per-recipient delivery, retries and shared-inbox
// optimization.
type DeliveryJob struct {
	Id           uuid.UUID
	ActorId      uuid.UUID
	RecipientIds []uuid.UUID
	ActivityJSON string
	ToFollowers  bool
	CreatedAt    time.Time
}
