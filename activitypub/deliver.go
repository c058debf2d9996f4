package activitypub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/domain"
)

// Deliverer hands outbound activities to the delivery queue. It never
// performs HTTP itself; each call serializes the activity once and enqueues
// a single self-contained job. The queue worker owns signing, per-recipient
// delivery, retries and shared-inbox fan-out.
type Deliverer struct {
	db Database
}

// NewDeliverer creates a deliverer backed by the production database.
func NewDeliverer() *Deliverer {
	return NewDelivererWithDeps(NewDBWrapper())
}

// NewDelivererWithDeps creates a deliverer with an injected database for testing.
func NewDelivererWithDeps(database Database) *Deliverer {
	return &Deliverer{db: database}
}

// DeliverTo enqueues delivery of an activity to an explicit recipient set.
func (d *Deliverer) DeliverTo(activity map[string]any, actor *domain.User, recipients ...uuid.UUID) error {
	if len(recipients) == 0 {
		return fmt.Errorf("%w: delivery without recipients", ErrInvalidRequest)
	}
	return d.enqueue(activity, actor, recipients, false)
}

// DeliverToFollowers enqueues delivery of an activity to the actor's
// followers, plus any extra recipients.
func (d *Deliverer) DeliverToFollowers(activity map[string]any, actor *domain.User, extra ...uuid.UUID) error {
	return d.enqueue(activity, actor, extra, true)
}

// DeliverNoteActivity picks the fan-out for a note-bearing activity from the
// note's visibility: specified notes go only to the listed recipients,
// everything else goes to followers.
func (d *Deliverer) DeliverNoteActivity(activity map[string]any, actor *domain.User, note *domain.Note, recipients ...uuid.UUID) error {
	if note.Visibility == domain.VisibilitySpecified {
		return d.DeliverTo(activity, actor, recipients...)
	}
	return d.DeliverToFollowers(activity, actor, recipients...)
}

func (d *Deliverer) enqueue(activity map[string]any, actor *domain.User, recipients []uuid.UUID, toFollowers bool) error {
	serialized, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to serialize activity: %w", err)
	}
	job := &domain.DeliveryJob{
		Id:           uuid.New(),
		ActorId:      actor.Id,
		RecipientIds: recipients,
		ActivityJSON: string(serialized),
		ToFollowers:  toFollowers,
		CreatedAt:    time.Now(),
	}
	return d.db.EnqueueDeliveryJob(job)
}
