package activitypub

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/domain"
)

// activityStreamsContext is the JSON-LD context on every rendered activity.
const activityStreamsContext = "https://www.w3.org/ns/activitystreams"

// Renderer builds outbound protocol objects as pure data. It performs no
// I/O and no validation beyond the structural rules below.
type Renderer struct {
	localDomain string
}

// NewRenderer creates a renderer for this server's domain.
func NewRenderer(localDomain string) *Renderer {
	return &Renderer{localDomain: localDomain}
}

// ActorURI returns the canonical URI of a user: the stored one for remote
// users, the derived /users/{name} form for local ones.
func (r *Renderer) ActorURI(user *domain.User) string {
	if user.IsRemote() {
		return user.Uri
	}
	return "https://" + r.localDomain + "/users/" + user.Username
}

// InboxURI returns the delivery endpoint of a user.
func (r *Renderer) InboxURI(user *domain.User) string {
	if user.IsRemote() {
		return user.InboxURI
	}
	return "https://" + r.localDomain + "/users/" + user.Username + "/inbox"
}

// KeyId returns the fragment URI of a local user's signing key.
func (r *Renderer) KeyId(user *domain.User) string {
	return r.ActorURI(user) + "#main-key"
}

// FollowURI returns the id this server assigns to a follow relationship.
// Inbound Accept/Reject activities are correlated against this shape.
func (r *Renderer) FollowURI(followerId, followeeId uuid.UUID) string {
	return fmt.Sprintf("https://%s/follows/%s/%s", r.localDomain, followerId, followeeId)
}

// activityURI mints an id for a one-off outbound activity.
func (r *Renderer) activityURI() string {
	return "https://" + r.localDomain + "/activities/" + uuid.NewString()
}

// checkFederatedPair enforces that a follow-shaped activity crosses the
// federation boundary: exactly one of the two parties is local.
func checkFederatedPair(a, b *domain.User) error {
	if a.IsLocal() == b.IsLocal() {
		return fmt.Errorf("%w: follow requires exactly one local party", ErrInvalidRequest)
	}
	return nil
}

// RenderFollow builds a Follow from a local user to a remote one (or the
// shape this server expects back for the inverse direction).
func (r *Renderer) RenderFollow(follower, followee *domain.User) (map[string]any, error) {
	if err := checkFederatedPair(follower, followee); err != nil {
		return nil, err
	}
	return map[string]any{
		"@context": activityStreamsContext,
		"id":       r.FollowURI(follower.Id, followee.Id),
		"type":     "Follow",
		"actor":    r.ActorURI(follower),
		"object":   r.ActorURI(followee),
	}, nil
}

// RenderAccept builds an Accept of an inbound Follow. The follow object is
// embedded verbatim so the remote side can correlate by its own id.
func (r *Renderer) RenderAccept(followee *domain.User, follow map[string]any) map[string]any {
	return map[string]any{
		"@context": activityStreamsContext,
		"id":       r.activityURI(),
		"type":     "Accept",
		"actor":    r.ActorURI(followee),
		"object":   follow,
	}
}

// RenderReject builds a Reject of an inbound Follow.
func (r *Renderer) RenderReject(followee *domain.User, follow map[string]any) map[string]any {
	return map[string]any{
		"@context": activityStreamsContext,
		"id":       r.activityURI(),
		"type":     "Reject",
		"actor":    r.ActorURI(followee),
		"object":   follow,
	}
}

// RenderUndo wraps a previously sent activity in an Undo by the same actor.
func (r *Renderer) RenderUndo(actor *domain.User, activity map[string]any) map[string]any {
	return map[string]any{
		"@context": activityStreamsContext,
		"id":       r.activityURI(),
		"type":     "Undo",
		"actor":    r.ActorURI(actor),
		"object":   activity,
	}
}
