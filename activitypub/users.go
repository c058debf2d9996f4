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
	"golang.org/x/sync/singleflight"
)

// ResolveFlag controls which query shapes Resolve accepts and how strict the
// result check is.
type ResolveFlag uint

const (
	// ResolveAcct permits acct:user@host (and @user@host) queries.
	ResolveAcct ResolveFlag = 1 << iota
	// ResolveUri permits https actor URI queries.
	ResolveUri
	// MatchProfileUrl additionally matches stored human profile URLs on
	// the fast path.
	MatchProfileUrl
	// OnlyExisting answers from the local store only, never the network.
	OnlyExisting
	// EnforceUri requires the resolved actor's canonical URI to equal the
	// query exactly. Used where accepting a different identity than asked
	// for would be a security problem.
	EnforceUri
)

// remoteUserTTL is how long a cached remote actor is considered fresh.
const remoteUserTTL = 24 * time.Hour

// refreshWait bounds how long GetUpdatedUser waits for a background refresh
// before handing back the stale copy.
const refreshWait = 1500 * time.Millisecond

// UserResolver turns actor identifiers into local user records, running
// WebFinger discovery for actors this server has never seen.
type UserResolver struct {
	db          Database
	fetcher     *Fetcher
	localDomain string
	creating    singleflight.Group
}

// NewUserResolver creates a resolver backed by the production database.
func NewUserResolver(fetcher *Fetcher, localDomain string) *UserResolver {
	return NewUserResolverWithDeps(NewDBWrapper(), fetcher, localDomain)
}

// NewUserResolverWithDeps creates a resolver with injected dependencies for testing.
func NewUserResolverWithDeps(database Database, fetcher *Fetcher, localDomain string) *UserResolver {
	return &UserResolver{
		db:          database,
		fetcher:     fetcher,
		localDomain: localDomain,
	}
}

// Resolve resolves an actor identifier to a user record, creating a remote
// user on first contact. Accepted shapes are governed by flags; see the
// flag constants.
func (r *UserResolver) Resolve(query string, flags ResolveFlag) (*domain.User, error) {
	query = strings.TrimSpace(query)
	if strings.HasPrefix(query, "@") {
		query = "acct:" + query[1:]
	}
	if query == "" || strings.ContainsAny(query, " \t\r\n") {
		return nil, fmt.Errorf("%w: malformed query %q", ErrInvalidRequest, query)
	}

	u, err := url.Parse(query)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("%w: query %q is not an absolute URI", ErrInvalidRequest, query)
	}

	switch u.Scheme {
	case "acct":
		if flags&ResolveAcct == 0 {
			return nil, fmt.Errorf("%w: acct queries not allowed here", ErrInvalidRequest)
		}
	case "https":
		if flags&ResolveUri == 0 {
			return nil, fmt.Errorf("%w: uri queries not allowed here", ErrInvalidRequest)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRequest, u.Scheme)
	}

	// Fragment variants of a URI are the same identity.
	u.Fragment = ""
	u.RawFragment = ""
	query = u.String()

	if u.Scheme == "https" && r.isLocalNotePermalink(u) {
		return nil, fmt.Errorf("%w: %s is a note permalink, not an actor", ErrInvalidRequest, query)
	}

	if user, done, err := r.fastPath(query, u, flags); done {
		return user, err
	}
	if flags&OnlyExisting != 0 {
		return nil, ErrNotFound
	}

	session := &discoverySession{resolver: r, cache: make(map[string]*WebFingerResponse)}
	acctURI, profileURI, err := session.discover(query, "", 0)
	if err != nil {
		return nil, err
	}

	user, err := r.findOrCreate(acctURI, profileURI)
	if err != nil {
		return nil, err
	}

	if flags&EnforceUri != 0 && user.Uri != query {
		return nil, fmt.Errorf("%w: resolved %s but %s was required", ErrIdentityMismatch, user.Uri, query)
	}
	return user, nil
}

// ResolveOrNil is the best-effort variant for callers that treat a missing
// actor as an empty result.
func (r *UserResolver) ResolveOrNil(query string, flags ResolveFlag) *domain.User {
	user, err := r.Resolve(query, flags)
	if err != nil {
		log.Printf("Resolver: %s did not resolve: %v", query, err)
		return nil
	}
	return user
}

// fastPath answers from the local store. The bool result reports whether
// resolution is finished, successfully or not.
func (r *UserResolver) fastPath(query string, u *url.URL, flags ResolveFlag) (*domain.User, bool, error) {
	if u.Scheme == "https" {
		if err, user := r.db.ReadUserByUri(query); err == nil && user != nil {
			return user, true, nil
		}
		if flags&MatchProfileUrl != 0 {
			if err, user := r.db.ReadUserByProfileUrl(query); err == nil && user != nil {
				return user, true, nil
			}
		}
		if r.isLocalHost(u.Host) {
			// Our own actor URIs have the shape /users/{name}.
			if name, ok := strings.CutPrefix(u.Path, "/users/"); ok && !strings.Contains(name, "/") {
				if err, user := r.db.ReadUserByAcct(name, ""); err == nil && user != nil {
					return user, true, nil
				}
			}
			// This server never federates with itself.
			return nil, true, ErrNotFound
		}
		return nil, false, nil
	}

	// acct:user@host
	name, host, found := strings.Cut(strings.TrimPrefix(query, "acct:"), "@")
	if !found || name == "" || host == "" {
		return nil, true, fmt.Errorf("%w: malformed acct %q", ErrInvalidRequest, query)
	}
	norm, err := NormalizeHost(host)
	if err != nil {
		return nil, true, fmt.Errorf("%w: bad host in %q", ErrInvalidRequest, query)
	}
	if r.isLocalHost(norm) {
		if err, user := r.db.ReadUserByAcct(name, ""); err == nil && user != nil {
			return user, true, nil
		}
		return nil, true, ErrNotFound
	}
	if err, user := r.db.ReadUserByAcct(name, norm); err == nil && user != nil {
		return user, true, nil
	}
	return nil, false, nil
}

func (r *UserResolver) isLocalHost(host string) bool {
	norm, err := NormalizeHost(host)
	if err != nil {
		return false
	}
	local, err := NormalizeHost(r.localDomain)
	if err != nil {
		return false
	}
	return norm == local
}

func (r *UserResolver) isLocalNotePermalink(u *url.URL) bool {
	return r.isLocalHost(u.Host) && strings.HasPrefix(u.Path, "/notes/")
}

// findOrCreate re-checks the store under the confirmed identifiers and
// creates the actor on first contact. A per-profile-URI lock keeps
// concurrent resolutions of the same new actor from inserting duplicates.
func (r *UserResolver) findOrCreate(acctURI, profileURI string) (*domain.User, error) {
	name, host, err := splitAcct(acctURI)
	if err != nil {
		return nil, err
	}

	if err, user := r.db.ReadUserByUri(profileURI); err == nil && user != nil {
		return user, nil
	}
	if err, user := r.db.ReadUserByAcct(name, host); err == nil && user != nil {
		return user, nil
	}

	v, err, _ := r.creating.Do(profileURI, func() (any, error) {
		if err, user := r.db.ReadUserByUri(profileURI); err == nil && user != nil {
			return user, nil
		}
		return r.createRemoteUser(name, host, profileURI)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.User), nil
}

func (r *UserResolver) createRemoteUser(name, host, profileURI string) (*domain.User, error) {
	actor, err := r.fetcher.FetchActor(profileURI)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, ErrNotFound
	}

	user := actorToUser(actor, host)
	if user.Username == "" {
		user.Username = name
	}

	if err := r.db.CreateUser(user); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			// Lost a race against another writer, their row wins.
			if err, existing := r.db.ReadUserByUri(user.Uri); err == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to store remote user: %w", err)
	}
	log.Printf("Resolver: created remote user @%s@%s (%s)", user.Username, user.Host, user.Uri)
	return user, nil
}

// actorToUser maps a fetched actor document onto a user row.
func actorToUser(actor RemoteObject, host string) *domain.User {
	user := &domain.User{
		Id:            uuid.New(),
		Username:      actor.Str("preferredUsername"),
		Host:          host,
		Uri:           actor.ID(),
		ProfileUrl:    actor.Str("url"),
		DisplayName:   actor.Str("name"),
		Summary:       actor.Str("summary"),
		InboxURI:      actor.Str("inbox"),
		OutboxURI:     actor.Str("outbox"),
		IsLocked:      actor["manuallyApprovesFollowers"] == true,
		LastFetchedAt: time.Now(),
		CreatedAt:     time.Now(),
	}
	if endpoints := actor.Object("endpoints"); endpoints != nil {
		user.SharedInboxURI = endpoints.Str("sharedInbox")
	}
	if icon := actor.Object("icon"); icon != nil {
		user.AvatarURL = icon.Str("url")
	}
	if pk := actor.Object("publicKey"); pk != nil {
		user.PublicKeyPem = pk.Str("publicKeyPem")
	}
	return user
}

// GetUpdatedUser refreshes a stale remote user in the background, waiting
// briefly for the result. It never fails: a slow or broken refresh hands
// back the copy we already have.
func (r *UserResolver) GetUpdatedUser(user *domain.User) *domain.User {
	if user.IsLocal() || time.Since(user.LastFetchedAt) < remoteUserTTL {
		return user
	}

	// Stamp first so concurrent callers don't all refetch.
	if err := r.db.TouchUserFetchedAt(user.Id, time.Now()); err != nil {
		log.Printf("Resolver: failed to stamp %s: %v", user.Uri, err)
		return user
	}

	ch := make(chan *domain.User, 1)
	go func() {
		defer close(ch)
		refreshed, err := r.refreshRemoteUser(user)
		if err != nil {
			log.Printf("Resolver: refresh of %s failed: %v", user.Uri, err)
			return
		}
		if refreshed != nil {
			ch <- refreshed
		}
	}()

	select {
	case refreshed, ok := <-ch:
		if ok && refreshed != nil {
			return refreshed
		}
		return user
	case <-time.After(refreshWait):
		return user
	}
}

func (r *UserResolver) refreshRemoteUser(user *domain.User) (*domain.User, error) {
	actor, err := r.fetcher.FetchActor(user.Uri)
	if err != nil {
		// A gone actor is logged, not torn down; deletion only happens on
		// an authenticated Delete from the actor itself.
		return nil, err
	}
	if actor == nil {
		return nil, nil
	}

	updated := actorToUser(actor, user.Host)
	updated.Id = user.Id
	updated.FollowersCount = user.FollowersCount
	updated.FollowingCount = user.FollowingCount
	updated.CreatedAt = user.CreatedAt
	if updated.Username == "" {
		updated.Username = user.Username
	}
	if err := r.db.UpdateUser(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// discoverySession is one WebFinger discovery run. Responses are cached per
// session so a chain that revisits the same resource does not refetch it.
type discoverySession struct {
	resolver *UserResolver
	cache    map[string]*WebFingerResponse
}

func (s *discoverySession) webfinger(host, resource string) (*WebFingerResponse, error) {
	key := host + "|" + resource
	if wf, ok := s.cache[key]; ok {
		return wf, nil
	}
	wf, err := s.resolver.fetcher.QueryWebFinger(host, resource)
	if err != nil {
		return nil, err
	}
	s.cache[key] = wf
	return wf, nil
}

// discover runs the WebFinger discovery chain and returns the confirmed
// (acct URI, profile URI) pair. confirmedActorURI carries an actor identity
// already verified by a direct fetch, so re-validation of that exact profile
// can be skipped. depth bounds the reverse-discovery recursion to one hop.
func (s *discoverySession) discover(query, confirmedActorURI string, depth int) (string, string, error) {
	queryHost, err := resourceHost(query)
	if err != nil {
		return "", "", err
	}

	wf, err := s.webfinger(queryHost, query)
	if err != nil {
		return "", "", err
	}

	if wf == nil && strings.HasPrefix(query, "https://") && depth == 0 {
		// The host has no WebFinger answer for this URI; go to the actor
		// document itself and work backwards.
		return s.reverseDiscover(query)
	}
	if wf == nil {
		return "", "", ErrNotFound
	}

	profileURI := wf.SelfLink()
	if profileURI == "" {
		return "", "", fmt.Errorf("%w: no self link for %s", ErrNotFound, query)
	}
	acctURI := extractAcctURI(wf)
	if acctURI == "" {
		return "", "", fmt.Errorf("%w: no account identifier for %s", ErrNotFound, query)
	}

	profileHost, err := resourceHost(profileURI)
	if err != nil {
		return "", "", err
	}
	acctHost, err := resourceHost(acctURI)
	if err != nil {
		return "", "", err
	}

	// When every host already agrees there is nothing left to validate.
	if acctHost == profileHost && profileHost == queryHost {
		return acctURI, profileURI, nil
	}

	// Re-validate the profile URI unless a direct fetch already confirmed
	// this exact actor.
	wf2 := wf
	if confirmedActorURI != profileURI {
		wf2, err = s.webfinger(profileHost, profileURI)
		if err != nil {
			return "", "", err
		}
		if wf2 == nil {
			if depth > 0 {
				return "", "", ErrNotFound
			}
			return s.reverseDiscover(profileURI)
		}
	}

	acctURI2 := extractAcctURI(wf2)
	if acctURI2 == "" {
		return "", "", fmt.Errorf("%w: no account identifier for %s", ErrNotFound, profileURI)
	}
	acctHost2, err := resourceHost(acctURI2)
	if err != nil {
		return "", "", err
	}
	if acctHost2 == profileHost {
		return acctURI2, profileURI, nil
	}

	// One final authoritative lookup at the claimed account's own host.
	wf3, err := s.webfinger(acctHost2, acctURI2)
	if err != nil {
		return "", "", err
	}
	if wf3 == nil {
		return "", "", ErrNotFound
	}
	finalAcct := extractAcctURI(wf3)
	if finalAcct == "" {
		finalAcct = acctURI2
	}
	finalSelf := wf3.SelfLink()
	finalSelfHost := ""
	if finalSelf != "" {
		finalSelfHost, _ = resourceHost(finalSelf)
	}
	if finalSelfHost != profileHost {
		// The chain is inconsistent but the profile host is the one
		// identity a direct fetch can vouch for; pin the account there.
		name, _, err := splitAcct(finalAcct)
		if err != nil {
			return "", "", err
		}
		finalAcct = "acct:" + name + "@" + profileHost
	}
	return finalAcct, profileURI, nil
}

// reverseDiscover recovers a WebFinger identity starting from a bare actor
// URI: fetch the actor, then restart discovery from the identifier the
// actor itself advertises.
func (s *discoverySession) reverseDiscover(uri string) (string, string, error) {
	actor, err := s.resolver.fetcher.FetchActor(uri)
	if err != nil {
		return "", "", err
	}
	if actor == nil {
		return "", "", ErrNotFound
	}

	if actor.ID() != uri {
		// The document lives elsewhere; one retry of plain discovery at
		// its claimed id, with no further fallback.
		return s.discover(actor.ID(), "", 1)
	}

	actorHost, err := resourceHost(actor.ID())
	if err != nil {
		return "", "", err
	}
	resource := actor.Str("webfinger")
	if resource == "" {
		resource = "acct:" + actor.Str("preferredUsername") + "@" + actorHost
	}
	return s.discover(resource, actor.ID(), 1)
}

// extractAcctURI pulls the account identifier out of a WebFinger response.
// An explicit acct: subject or alias wins; failing that, a bare user@host
// shaped value is accepted for non-conformant servers.
func extractAcctURI(wf *WebFingerResponse) string {
	candidates := append([]string{wf.Subject}, wf.Aliases...)
	for _, c := range candidates {
		if strings.HasPrefix(c, "acct:") {
			return c
		}
	}
	for _, c := range candidates {
		if c == "" || strings.ContainsAny(c, ": ") {
			continue
		}
		if strings.Count(c, "@") == 1 && !strings.HasPrefix(c, "@") && !strings.HasSuffix(c, "@") {
			return "acct:" + c
		}
	}
	return ""
}

// resourceHost returns the normalized host of an acct: or https resource.
func resourceHost(resource string) (string, error) {
	if after, ok := strings.CutPrefix(resource, "acct:"); ok {
		_, host, found := strings.Cut(after, "@")
		if !found || host == "" {
			return "", fmt.Errorf("%w: malformed acct %q", ErrInvalidRequest, resource)
		}
		return NormalizeHost(host)
	}
	u, err := url.Parse(resource)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: bad resource %q", ErrInvalidRequest, resource)
	}
	return NormalizeHost(u.Host)
}

func splitAcct(acctURI string) (string, string, error) {
	name, host, found := strings.Cut(strings.TrimPrefix(acctURI, "acct:"), "@")
	if !found || name == "" || host == "" {
		return "", "", fmt.Errorf("%w: malformed acct %q", ErrInvalidRequest, acctURI)
	}
	if ok, reason := util.IsValidWebFingerUsername(name); !ok {
		return "", "", fmt.Errorf("%w: username in %q: %s", ErrInvalidRequest, acctURI, reason)
	}
	norm, err := NormalizeHost(host)
	if err != nil {
		return "", "", err
	}
	return name, norm, nil
}
