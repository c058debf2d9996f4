package activitypub

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/domain"
	"github.com/loxodon-net/loxodon/util"
)

// publicURI is the ActivityStreams addressing magnet for public posts.
const publicURI = "https://www.w3.org/ns/activitystreams#Public"

// Processor dispatches inbound activities to their state transitions. One
// activity is processed end-to-end sequentially; the only detached work is
// the per-host instance bookkeeping refresh.
type Processor struct {
	db              Database
	resolver        *UserResolver
	objects         *ObjectResolver
	renderer        *Renderer
	deliverer       *Deliverer
	gate            *Gate
	authorizedFetch bool
}

// NewProcessor wires a processor against the production database.
func NewProcessor(conf *util.AppConfig, fetcher *Fetcher, gate *Gate) *Processor {
	database := NewDBWrapper()
	return NewProcessorWithDeps(database, conf, fetcher, gate)
}

// NewProcessorWithDeps wires a processor with an injected database for testing.
func NewProcessorWithDeps(database Database, conf *util.AppConfig, fetcher *Fetcher, gate *Gate) *Processor {
	domainName := conf.Conf.Host
	if conf.Conf.SslDomain != "" {
		domainName = conf.Conf.SslDomain
	}
	return &Processor{
		db:              database,
		resolver:        NewUserResolverWithDeps(database, fetcher, domainName),
		objects:         NewObjectResolverWithDeps(database, fetcher, gate, domainName),
		renderer:        NewRenderer(domainName),
		deliverer:       NewDelivererWithDeps(database),
		gate:            gate,
		authorizedFetch: conf.Conf.AuthorizedFetch,
	}
}

// Resolver exposes the processor's user resolver for transport-layer use
// (signature verification needs actor keys).
func (p *Processor) Resolver() *UserResolver {
	return p.resolver
}

// PerformActivity validates and dispatches one inbound activity.
// authFetchActorId is the actor authenticated at the transport boundary via
// its HTTP signature; when the deployment requires authenticated delivery it
// must match the activity's claimed actor exactly.
func (p *Processor) PerformActivity(activity RemoteObject, authFetchActorId *uuid.UUID) error {
	actorURI := activity.Str("actor")
	if actorURI == "" {
		return fmt.Errorf("%w: activity without actor", ErrInvalidRequest)
	}

	actorHost, err := resourceHost(actorURI)
	if err != nil {
		return err
	}
	if p.gate.ShouldBlock(actorHost) {
		return fmt.Errorf("%w: %s", ErrBlockedInstance, actorHost)
	}

	kind := activity.Type()
	if kind == "" {
		return fmt.Errorf("%w: activity without type", ErrInvalidRequest)
	}
	// Bite is object-less by shape; everything else must carry an object.
	if kind != "Bite" && activity["object"] == nil {
		return fmt.Errorf("%w: %s without object", ErrInvalidRequest, kind)
	}

	actor, err := p.resolver.Resolve(actorURI, ResolveUri)
	if err != nil {
		return fmt.Errorf("failed to resolve actor %s: %w", actorURI, err)
	}

	if p.authorizedFetch {
		if authFetchActorId == nil {
			return fmt.Errorf("%w: unauthenticated delivery refused", ErrInvalidRequest)
		}
		if *authFetchActorId != actor.Id {
			return fmt.Errorf("%w: signed as %s but claims actor %s", ErrIdentityMismatch, *authFetchActorId, actor.Uri)
		}
	}

	// Known actors go stale between deliveries; refresh before dispatch.
	actor = p.resolver.GetUpdatedUser(actor)

	go p.refreshInstance(actorHost)

	log.Printf("Inbox: %s from %s", kind, actor.Uri)

	switch kind {
	case "Create":
		return p.handleCreate(activity, actor)
	case "Update":
		return p.handleUpdate(activity, actor)
	case "Delete":
		return p.handleDelete(activity, actor)
	case "Follow":
		return p.handleFollow(activity, actor)
	case "Accept":
		return p.handleAccept(activity, actor)
	case "Reject":
		return p.handleReject(activity, actor)
	case "Undo":
		return p.handleUndo(activity, actor)
	case "Like":
		return p.handleLike(activity, actor)
	case "Announce":
		return p.handleAnnounce(activity, actor)
	case "Bite":
		return p.handleBite(activity, actor)
	default:
		return fmt.Errorf("%w: unsupported activity kind %q", ErrInvalidRequest, kind)
	}
}

// refreshInstance updates per-host bookkeeping. Detached from the request;
// failures are logged and nothing else.
func (p *Processor) refreshInstance(host string) {
	if err := p.db.UpsertInstance(host, time.Now()); err != nil {
		log.Printf("Inbox: instance refresh for %s failed: %v", host, err)
	}
}

// Follow handling

func (p *Processor) handleFollow(activity RemoteObject, actor *domain.User) error {
	followee, err := p.resolver.Resolve(activity.Str("object"), ResolveUri)
	if err != nil {
		return fmt.Errorf("failed to resolve followee: %w", err)
	}
	if followee.IsRemote() {
		return fmt.Errorf("%w: follow of a remote followee delivered here", ErrInvalidRequest)
	}

	blocked, err := p.eitherBlocks(followee.Id, actor.Id)
	if err != nil {
		return err
	}
	if blocked {
		reject := p.renderer.RenderReject(followee, activity)
		if err := p.deliverer.DeliverTo(reject, followee, actor.Id); err != nil {
			return err
		}
		log.Printf("Inbox: rejected follow from %s to %s (blocked)", actor.Uri, followee.Username)
		return nil
	}

	if followee.IsLocked {
		created, err := p.db.CreateFollowRequest(&domain.FollowRequest{
			Id:         uuid.New(),
			FollowerId: actor.Id,
			FolloweeId: followee.Id,
			RequestURI: activity.ID(),
			CreatedAt:  time.Now(),
		})
		if err != nil {
			return err
		}
		if created {
			p.notify(followee, actor, domain.NotificationFollowRequested, nil, nil)
		}
		return nil
	}

	accept := p.renderer.RenderAccept(followee, activity)
	if err := p.deliverer.DeliverTo(accept, followee, actor.Id); err != nil {
		return err
	}

	created, err := p.createFollowingEdge(actor, followee)
	if err != nil {
		return err
	}
	if created {
		p.notify(followee, actor, domain.NotificationFollow, nil, nil)
	}
	return nil
}

// createFollowingEdge inserts the edge idempotently and bumps both counters
// only when a row was actually created.
func (p *Processor) createFollowingEdge(follower, followee *domain.User) (bool, error) {
	created, err := p.db.CreateFollowing(&domain.Following{
		Id:                  uuid.New(),
		FollowerId:          follower.Id,
		FolloweeId:          followee.Id,
		FollowerHost:        follower.Host,
		FollowerInboxURI:    follower.InboxURI,
		FollowerSharedInbox: follower.SharedInboxURI,
		FolloweeHost:        followee.Host,
		FolloweeInboxURI:    followee.InboxURI,
		FolloweeSharedInbox: followee.SharedInboxURI,
		CreatedAt:           time.Now(),
	})
	if err != nil || !created {
		return created, err
	}
	if err := p.db.IncrementFollowersCount(followee.Id, 1); err != nil {
		return true, err
	}
	if err := p.db.IncrementFollowingCount(follower.Id, 1); err != nil {
		return true, err
	}
	return true, nil
}

func (p *Processor) eitherBlocks(a, b uuid.UUID) (bool, error) {
	blocked, err := p.db.IsBlocking(a, b)
	if err != nil || blocked {
		return blocked, err
	}
	return p.db.IsBlocking(b, a)
}

// handleUnfollow tears down the relationship in both its pending and
// established forms, adjusting counters by the rows actually removed.
func (p *Processor) handleUnfollow(follow RemoteObject, actor *domain.User) error {
	followee, err := p.resolver.Resolve(follow.Str("object"), ResolveUri)
	if err != nil {
		return fmt.Errorf("failed to resolve followee: %w", err)
	}

	if _, err := p.db.DeleteFollowRequest(actor.Id, followee.Id); err != nil {
		return err
	}
	removed, err := p.db.DeleteFollowing(actor.Id, followee.Id)
	if err != nil {
		return err
	}
	if removed > 0 {
		if err := p.db.IncrementFollowersCount(followee.Id, -int(removed)); err != nil {
			return err
		}
		if err := p.db.IncrementFollowingCount(actor.Id, -int(removed)); err != nil {
			return err
		}
	}
	if followee.IsLocal() {
		if err := p.db.DeleteNotification(followee.Id, actor.Id, domain.NotificationFollow); err != nil {
			return err
		}
	}
	return nil
}

// Accept/Reject handling: answers to follows this server sent out earlier.

// parseFollowReference validates the embedded Follow's id against the local
// follows/{follower}/{followee} shape and the responding actor.
func (p *Processor) parseFollowReference(activity RemoteObject, actor *domain.User) (uuid.UUID, uuid.UUID, error) {
	followId := ""
	if inner := activity.Object("object"); inner != nil {
		followId = inner.ID()
	} else {
		followId = activity.Str("object")
	}
	if followId == "" {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: response without follow reference", ErrInvalidRequest)
	}

	u, err := url.Parse(followId)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: bad follow id %q", ErrInvalidRequest, followId)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "follows" {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: follow id %q does not match this server's shape", ErrInvalidRequest, followId)
	}
	followerId, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: bad follower id in %q", ErrInvalidRequest, followId)
	}
	followeeId, err := uuid.Parse(parts[2])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: bad followee id in %q", ErrInvalidRequest, followId)
	}
	if followeeId != actor.Id {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %s answered a follow addressed to someone else", ErrIdentityMismatch, actor.Uri)
	}
	return followerId, followeeId, nil
}

func (p *Processor) handleAccept(activity RemoteObject, actor *domain.User) error {
	followerId, followeeId, err := p.parseFollowReference(activity, actor)
	if err != nil {
		return err
	}

	err, follower := p.db.ReadUserById(followerId)
	if err != nil || follower == nil {
		return fmt.Errorf("%w: unknown follower %s", ErrNotFound, followerId)
	}

	removed, err := p.db.DeleteFollowRequest(followerId, followeeId)
	if err != nil {
		return err
	}
	if removed == 0 {
		// A duplicate Accept for an already promoted follow is harmless;
		// one nobody asked for must not fabricate an edge.
		if err, edge := p.db.ReadFollowing(followerId, followeeId); err == nil && edge != nil {
			return nil
		}
		return fmt.Errorf("%w: no pending follow from %s to %s", ErrNotFound, followerId, actor.Uri)
	}
	created, err := p.createFollowingEdge(follower, actor)
	if err != nil {
		return err
	}
	if created && follower.IsLocal() {
		p.notify(follower, actor, domain.NotificationFollowAccepted, nil, nil)
	}
	return nil
}

func (p *Processor) handleReject(activity RemoteObject, actor *domain.User) error {
	followerId, followeeId, err := p.parseFollowReference(activity, actor)
	if err != nil {
		return err
	}

	if _, err := p.db.DeleteFollowRequest(followerId, followeeId); err != nil {
		return err
	}
	removed, err := p.db.DeleteFollowing(followerId, followeeId)
	if err != nil {
		return err
	}
	if removed > 0 {
		if err := p.db.IncrementFollowersCount(followeeId, -int(removed)); err != nil {
			return err
		}
		if err := p.db.IncrementFollowingCount(followerId, -int(removed)); err != nil {
			return err
		}
	}
	return p.db.DeleteNotification(followerId, actor.Id, domain.NotificationFollowAccepted)
}

// Undo handling

func (p *Processor) handleUndo(activity RemoteObject, actor *domain.User) error {
	inner := activity.Object("object")
	if inner == nil {
		return fmt.Errorf("%w: undo without an embedded activity", ErrInvalidRequest)
	}
	switch inner.Type() {
	case "Follow":
		return p.handleUnfollow(inner, actor)
	case "Like":
		return p.handleUnlike(inner, actor)
	case "Announce":
		return p.handleUnannounce(inner, actor)
	default:
		return fmt.Errorf("%w: cannot undo a %q", ErrInvalidRequest, inner.Type())
	}
}

func (p *Processor) handleUnlike(like RemoteObject, actor *domain.User) error {
	note := p.findNote(like["object"])
	if note == nil {
		log.Printf("Inbox: undo of like on unknown note, ignoring")
		return nil
	}
	removed, err := p.db.DeleteLike(actor.Id, note.Id)
	if err != nil {
		return err
	}
	if removed > 0 {
		return p.db.IncrementLikeCount(note.Id, -int(removed))
	}
	return nil
}

func (p *Processor) handleUnannounce(announce RemoteObject, actor *domain.User) error {
	note := p.findNote(announce["object"])
	if note == nil {
		log.Printf("Inbox: undo of announce on unknown note, ignoring")
		return nil
	}
	removed, err := p.db.DeleteRenote(actor.Id, note.Id)
	if err != nil {
		return err
	}
	if removed > 0 {
		return p.db.IncrementRenoteCount(note.Id, -int(removed))
	}
	return nil
}

// Note handling

func (p *Processor) handleCreate(activity RemoteObject, actor *domain.User) error {
	obj := activity.Object("object")
	if obj == nil {
		resolved := p.objects.ResolveObject(activity["object"])
		if resolved == nil {
			return fmt.Errorf("%w: object of create", ErrNotFound)
		}
		if resolved.NoteId != nil {
			// already ingested
			return nil
		}
		obj = resolved.Object
	}
	if obj == nil || obj.Type() != "Note" {
		return fmt.Errorf("%w: create of a %q", ErrInvalidRequest, obj.Type())
	}
	_, err := p.ingestNote(obj, actor)
	return err
}

// ingestNote stores a remote note, deduplicated by its URI.
func (p *Processor) ingestNote(obj RemoteObject, author *domain.User) (*domain.Note, error) {
	uri := obj.ID()
	if uri == "" {
		return nil, fmt.Errorf("%w: note without id", ErrInvalidRequest)
	}
	if err, existing := p.db.ReadNoteByURI(uri); err == nil && existing != nil {
		return existing, nil
	}

	if attributed := obj.Str("attributedTo"); attributed != "" && attributed != author.Uri {
		// Relayed note, the author is whoever the note names.
		resolved, err := p.resolver.Resolve(attributed, ResolveUri)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve note author: %w", err)
		}
		author = resolved
	}

	note := &domain.Note{
		Id:           uuid.New(),
		UserId:       author.Id,
		URI:          uri,
		Content:      obj.Str("content"),
		Visibility:   visibilityOf(obj),
		InReplyToURI: obj.Str("inReplyTo"),
		CreatedAt:    time.Now(),
	}
	if err := p.db.CreateNote(note); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			err, existing := p.db.ReadNoteByURI(uri)
			if err == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	if note.InReplyToURI != "" {
		if err := p.db.IncrementReplyCountByURI(note.InReplyToURI); err != nil {
			log.Printf("Inbox: reply count bump for %s failed: %v", note.InReplyToURI, err)
		}
	}
	return note, nil
}

func (p *Processor) handleLike(activity RemoteObject, actor *domain.User) error {
	note := p.findNote(activity["object"])
	if note == nil {
		log.Printf("Inbox: like of unknown note, ignoring")
		return nil
	}
	created, err := p.db.CreateLike(&domain.Like{
		Id:        uuid.New(),
		UserId:    actor.Id,
		NoteId:    note.Id,
		URI:       activity.ID(),
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	if created {
		return p.db.IncrementLikeCount(note.Id, 1)
	}
	return nil
}

func (p *Processor) handleAnnounce(activity RemoteObject, actor *domain.User) error {
	note := p.findNote(activity["object"])
	if note == nil {
		// First sight of the renoted note, pull and ingest it.
		resolved := p.objects.ResolveObject(activity["object"])
		if resolved == nil || resolved.Object == nil {
			return fmt.Errorf("%w: announced note", ErrNotFound)
		}
		ingested, err := p.ingestNote(resolved.Object, actor)
		if err != nil {
			return err
		}
		note = ingested
	}

	renote := &domain.Note{
		Id:         uuid.New(),
		UserId:     actor.Id,
		URI:        activity.ID(),
		Visibility: visibilityOf(activity),
		RenoteId:   &note.Id,
		CreatedAt:  time.Now(),
	}
	if err := p.db.CreateNote(renote); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil
		}
		return err
	}
	return p.db.IncrementRenoteCount(note.Id, 1)
}

// Update/Delete handling

func (p *Processor) handleUpdate(activity RemoteObject, actor *domain.User) error {
	obj := activity.Object("object")
	if obj == nil {
		return fmt.Errorf("%w: update without an embedded object", ErrInvalidRequest)
	}
	if obj.IsActor() {
		if obj.ID() != actor.Uri {
			return fmt.Errorf("%w: %s may not update %s", ErrIdentityMismatch, actor.Uri, obj.ID())
		}
		updated := actorToUser(obj, actor.Host)
		updated.Id = actor.Id
		updated.FollowersCount = actor.FollowersCount
		updated.FollowingCount = actor.FollowingCount
		updated.CreatedAt = actor.CreatedAt
		if updated.Username == "" {
			updated.Username = actor.Username
		}
		return p.db.UpdateUser(updated)
	}
	if obj.Type() == "Note" {
		err, note := p.db.ReadNoteByURI(obj.ID())
		if err != nil || note == nil {
			log.Printf("Inbox: update of unknown note %s, ignoring", obj.ID())
			return nil
		}
		if note.UserId != actor.Id {
			return fmt.Errorf("%w: %s may not update a note they do not own", ErrIdentityMismatch, actor.Uri)
		}
		return p.db.UpdateNoteContent(obj.ID(), obj.Str("content"), actor.Id)
	}
	return fmt.Errorf("%w: update of a %q", ErrInvalidRequest, obj.Type())
}

func (p *Processor) handleDelete(activity RemoteObject, actor *domain.User) error {
	objURI := activity.Str("object")
	if objURI == "" {
		return fmt.Errorf("%w: delete without object", ErrInvalidRequest)
	}

	if objURI == actor.Uri {
		log.Printf("Inbox: deleting actor %s", actor.Uri)
		if err := p.db.DeleteFollowingsByUserId(actor.Id); err != nil {
			return err
		}
		return p.db.DeleteUser(actor.Id)
	}

	if err, other := p.db.ReadUserByUri(objURI); err == nil && other != nil {
		return fmt.Errorf("%w: %s may not delete %s", ErrIdentityMismatch, actor.Uri, objURI)
	}

	// Deleting something we never stored is fine.
	if _, err := p.db.DeleteNoteByURI(objURI, actor.Id); err != nil {
		return err
	}
	return nil
}

// Bite handling

func (p *Processor) handleBite(activity RemoteObject, actor *domain.User) error {
	targetRef := activity["target"]
	if targetRef == nil {
		// Some implementations address the bitten user in "to" instead.
		targetRef = activity["to"]
	}
	if targetRef == nil {
		return fmt.Errorf("%w: bite without target", ErrInvalidRequest)
	}

	resolved := p.objects.ResolveObject(targetRef)
	if resolved == nil {
		return fmt.Errorf("%w: bite target", ErrNotFound)
	}

	bite, owner, err := p.biteFor(activity, actor, resolved)
	if err != nil {
		return err
	}
	if owner == nil || owner.IsRemote() {
		// Not authoritative for a remote-owned target; acknowledge the
		// bite and keep nothing.
		log.Printf("Inbox: bite on remote-owned target %s, dropping", resolved.URI)
		return nil
	}

	if err := p.db.CreateBite(bite); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil
		}
		return err
	}
	p.notify(owner, actor, domain.NotificationBite, nil, &bite.Id)
	return nil
}

// biteFor builds the bite record for a resolved target and returns the
// target's owner.
func (p *Processor) biteFor(activity RemoteObject, actor *domain.User, resolved *ResolvedObject) (*domain.Bite, *domain.User, error) {
	uri := activity.ID()

	switch {
	case resolved.UserId != nil:
		err, target := p.db.ReadUserById(*resolved.UserId)
		if err != nil || target == nil {
			return nil, nil, fmt.Errorf("%w: bite target user", ErrNotFound)
		}
		return domain.NewUserBite(uri, actor.Id, target.Id), target, nil

	case resolved.NoteId != nil:
		err, note := p.db.ReadNoteById(*resolved.NoteId)
		if err != nil || note == nil {
			return nil, nil, fmt.Errorf("%w: bite target note", ErrNotFound)
		}
		err, owner := p.db.ReadUserById(note.UserId)
		if err != nil || owner == nil {
			return nil, nil, fmt.Errorf("%w: bite target note owner", ErrNotFound)
		}
		return domain.NewNoteBite(uri, actor.Id, note.Id), owner, nil

	default:
		// A full remote object: a bitten bite bounced back, or a remote
		// actor/note we may already know by URI.
		if err, prev := p.db.ReadBiteByURI(resolved.URI); err == nil && prev != nil {
			err, owner := p.db.ReadUserById(prev.UserId)
			if err != nil || owner == nil {
				return nil, nil, fmt.Errorf("%w: bite target bite owner", ErrNotFound)
			}
			return domain.NewBiteBite(uri, actor.Id, prev.Id), owner, nil
		}
		if err, target := p.db.ReadUserByUri(resolved.URI); err == nil && target != nil {
			return domain.NewUserBite(uri, actor.Id, target.Id), target, nil
		}
		if resolved.Object != nil && resolved.Object.IsActor() {
			// Remote actor not stored locally, by definition remote-owned.
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: bite target %s", ErrNotFound, resolved.URI)
	}
}

// helpers

// findNote locates a note referenced by URI or embedded object, local
// permalinks included. Returns nil when unknown.
func (p *Processor) findNote(ref any) *domain.Note {
	resolvedURI := ""
	switch v := ref.(type) {
	case string:
		resolvedURI = v
	case map[string]any:
		resolvedURI = RemoteObject(v).ID()
	}
	if resolvedURI == "" {
		return nil
	}
	if err, note := p.db.ReadNoteByURI(resolvedURI); err == nil && note != nil {
		return note
	}
	resolved := p.objects.ResolveObject(resolvedURI)
	if resolved != nil && resolved.NoteId != nil {
		if err, note := p.db.ReadNoteById(*resolved.NoteId); err == nil && note != nil {
			return note
		}
	}
	return nil
}

func (p *Processor) notify(recipient, actor *domain.User, ntype domain.NotificationType, noteId, biteId *uuid.UUID) {
	err := p.db.CreateNotification(&domain.Notification{
		Id:               uuid.New(),
		AccountId:        recipient.Id,
		NotificationType: ntype,
		ActorId:          actor.Id,
		ActorUsername:    actor.Username,
		ActorHost:        actor.Host,
		NoteId:           noteId,
		BiteId:           biteId,
		CreatedAt:        time.Now(),
	})
	if err != nil {
		log.Printf("Inbox: notification for %s failed: %v", recipient.Username, err)
	}
}

// visibilityOf derives note visibility from ActivityStreams addressing.
func visibilityOf(obj RemoteObject) string {
	to := strSlice(obj["to"])
	cc := strSlice(obj["cc"])
	if containsPublic(to) {
		return domain.VisibilityPublic
	}
	if containsPublic(cc) {
		return domain.VisibilityHome
	}
	for _, addr := range to {
		if strings.HasSuffix(addr, "/followers") {
			return domain.VisibilityFollowers
		}
	}
	return domain.VisibilitySpecified
}

func containsPublic(addrs []string) bool {
	for _, a := range addrs {
		if a == publicURI || a == "as:Public" || a == "Public" {
			return true
		}
	}
	return false
}

func strSlice(v any) []string {
	switch vv := v.(type) {
	case string:
		return []string{vv}
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
