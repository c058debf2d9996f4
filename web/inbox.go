package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/activitypub"
	"github.com/loxodon-net/loxodon/domain"
	"github.com/loxodon-net/loxodon/util"
)

// InboxHandler is the transport boundary for inbound federation: it owns
// body parsing, signature verification, activity-log deduplication and the
// mapping of processor errors onto HTTP statuses.
type InboxHandler struct {
	db        activitypub.Database
	processor *activitypub.Processor
	conf      *util.AppConfig
}

// NewInboxHandler creates a handler backed by the production database.
func NewInboxHandler(conf *util.AppConfig, processor *activitypub.Processor) *InboxHandler {
	return NewInboxHandlerWithDeps(activitypub.NewDBWrapper(), conf, processor)
}

// NewInboxHandlerWithDeps creates a handler with injected dependencies for testing.
func NewInboxHandlerWithDeps(database activitypub.Database, conf *util.AppConfig, processor *activitypub.Processor) *InboxHandler {
	return &InboxHandler{db: database, processor: processor, conf: conf}
}

// Handle processes one POSTed activity.
func (h *InboxHandler) Handle(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		log.Printf("Inbox: failed to read body: %v", err)
		c.Status(http.StatusRequestEntityTooLarge)
		return
	}

	var activity activitypub.RemoteObject
	if err := json.Unmarshal(body, &activity); err != nil {
		log.Printf("Inbox: failed to parse activity: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	// Duplicate deliveries of an already processed activity are answered
	// without re-running their side effects.
	record := h.dedup(activity, body)
	if record == nil {
		c.Status(http.StatusAccepted)
		return
	}

	authId, ok := h.authenticate(c)
	if !ok {
		return
	}

	if err := h.processor.PerformActivity(activity, authId); err != nil {
		log.Printf("Inbox: %s rejected: %v", activity.Type(), err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	if record.Id != uuid.Nil {
		record.Processed = true
		if err := h.db.UpdateActivity(record); err != nil {
			log.Printf("Inbox: failed to mark %s processed: %v", record.ActivityURI, err)
		}
	}
	c.Status(http.StatusAccepted)
}

// HandlePerUser processes a delivery addressed to one local user's inbox.
// The addressed user must exist; dispatch itself is shared with the instance
// inbox because every activity carries its own addressing.
func (h *InboxHandler) HandlePerUser(c *gin.Context) {
	username := c.Param("actor")
	if ok, _ := util.IsValidWebFingerUsername(username); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such user"})
		return
	}
	if err, user := h.db.ReadUserByAcct(username, ""); err != nil || user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such user"})
		return
	}
	h.Handle(c)
}

// dedup records the activity in the log. A nil return means this activity
// was already fully processed. Activities without an id cannot be
// deduplicated and pass through with a zero record.
func (h *InboxHandler) dedup(activity activitypub.RemoteObject, body []byte) *domain.Activity {
	uri := activity.ID()
	if uri == "" {
		return &domain.Activity{}
	}
	if err, prev := h.db.ReadActivityByURI(uri); err == nil && prev != nil {
		if prev.Processed {
			log.Printf("Inbox: duplicate delivery of %s, ignoring", uri)
			return nil
		}
		return prev
	}

	record := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  uri,
		ActivityType: activity.Type(),
		ActorURI:     activity.Str("actor"),
		ObjectURI:    activity.Str("object"),
		RawJSON:      string(body),
		CreatedAt:    time.Now(),
	}
	if err := h.db.CreateActivity(record); err != nil {
		log.Printf("Inbox: failed to log activity %s: %v", uri, err)
		return &domain.Activity{}
	}
	return record
}

// authenticate verifies the HTTP signature and resolves the signing actor.
// When authorized fetch is off a missing signature is tolerated and the
// processor runs unauthenticated.
func (h *InboxHandler) authenticate(c *gin.Context) (*uuid.UUID, bool) {
	if c.GetHeader("Signature") == "" {
		if h.conf.Conf.AuthorizedFetch {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
			return nil, false
		}
		return nil, true
	}

	keyId, err := activitypub.KeyIdFromRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unparseable signature"})
		return nil, false
	}
	actorURI := strings.Split(keyId, "#")[0]

	signer, err := h.processor.Resolver().Resolve(actorURI, activitypub.ResolveUri)
	if err != nil {
		log.Printf("Inbox: cannot resolve signer %s: %v", actorURI, err)
		c.JSON(statusFor(err), gin.H{"error": "unknown signer"})
		return nil, false
	}
	if signer.PublicKeyPem == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signer has no key"})
		return nil, false
	}

	if _, err := activitypub.VerifyRequest(c.Request, signer.PublicKeyPem); err != nil {
		log.Printf("Inbox: signature of %s did not verify: %v", actorURI, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad signature"})
		return nil, false
	}
	return &signer.Id, true
}

// statusFor maps the federation error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, activitypub.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, activitypub.ErrIdentityMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, activitypub.ErrBlockedInstance):
		return http.StatusForbidden
	case errors.Is(err, activitypub.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, activitypub.ErrActorGone):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
