package activitypub

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/domain"
)

const localDomain = "local.example"

func newTestResolver(db *MockDatabase, client *MockHTTPClient) *UserResolver {
	fetcher := NewFetcherWithDeps(client, newTestGate(), localDomain)
	return NewUserResolverWithDeps(db, fetcher, localDomain)
}

func registerRemoteAlice(client *MockHTTPClient) {
	client.Responses["https://remote.example/.well-known/webfinger"] = &MockResponse{
		StatusCode:  200,
		ContentType: "application/jrd+json",
		Body: `{
			"subject": "acct:alice@remote.example",
			"links": [{"rel": "self", "type": "application/activity+json", "href": "https://remote.example/users/alice"}]
		}`,
	}
	client.Responses["https://remote.example/users/alice"] = &MockResponse{
		StatusCode: 200,
		Body: `{
			"id": "https://remote.example/users/alice",
			"type": "Person",
			"preferredUsername": "alice",
			"name": "Alice",
			"inbox": "https://remote.example/users/alice/inbox",
			"endpoints": {"sharedInbox": "https://remote.example/inbox"},
			"publicKey": {"id": "https://remote.example/users/alice#main-key", "publicKeyPem": "PEM"}
		}`,
	}
}

func webfingerCalls(client *MockHTTPClient) int {
	client.mu.Lock()
	defer client.mu.Unlock()
	n := 0
	for _, u := range client.Requests {
		if strings.Contains(u, "webfinger") {
			n++
		}
	}
	return n
}

func TestResolveCreatesRemoteUser(t *testing.T) {
	db := NewMockDatabase()
	client := NewMockHTTPClient()
	registerRemoteAlice(client)
	resolver := newTestResolver(db, client)

	user, err := resolver.Resolve("acct:alice@remote.example", ResolveAcct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Username != "alice" || user.Host != "remote.example" {
		t.Errorf("got @%s@%s", user.Username, user.Host)
	}
	if user.Uri != "https://remote.example/users/alice" {
		t.Errorf("got uri %q", user.Uri)
	}
	if user.SharedInboxURI != "https://remote.example/inbox" {
		t.Errorf("got shared inbox %q", user.SharedInboxURI)
	}
	if len(db.Users) != 1 {
		t.Errorf("expected 1 stored user, got %d", len(db.Users))
	}
}

func TestResolveAgreeingHostsSingleWebFingerCall(t *testing.T) {
	db := NewMockDatabase()
	client := NewMockHTTPClient()
	registerRemoteAlice(client)
	resolver := newTestResolver(db, client)

	if _, err := resolver.Resolve("acct:alice@remote.example", ResolveAcct); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := webfingerCalls(client); got != 1 {
		t.Errorf("expected exactly 1 webfinger call, got %d", got)
	}
}

func TestResolveAtPrefixRewrite(t *testing.T) {
	db := NewMockDatabase()
	client := NewMockHTTPClient()
	registerRemoteAlice(client)
	resolver := newTestResolver(db, client)

	user, err := resolver.Resolve("@alice@remote.example", ResolveAcct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("got %q", user.Username)
	}
}

func TestResolveFastPathNoNetwork(t *testing.T) {
	db := NewMockDatabase()
	known := &domain.User{
		Id:       uuid.New(),
		Username: "alice",
		Host:     "remote.example",
		Uri:      "https://remote.example/users/alice",
	}
	db.AddUser(known)
	client := NewMockHTTPClient()
	resolver := newTestResolver(db, client)

	user, err := resolver.Resolve("https://remote.example/users/alice", ResolveUri)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Id != known.Id {
		t.Error("expected the stored user")
	}
	if client.RequestCount() != 0 {
		t.Errorf("fast path must not hit the network, got %d requests", client.RequestCount())
	}
}

func TestResolveFragmentStripped(t *testing.T) {
	db := NewMockDatabase()
	db.AddUser(&domain.User{
		Id:       uuid.New(),
		Username: "alice",
		Host:     "remote.example",
		Uri:      "https://remote.example/users/alice",
	})
	resolver := newTestResolver(db, NewMockHTTPClient())

	user, err := resolver.Resolve("https://remote.example/users/alice#main-key", ResolveUri)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Uri != "https://remote.example/users/alice" {
		t.Errorf("got %q", user.Uri)
	}
}

func TestResolveOnlyExisting(t *testing.T) {
	db := NewMockDatabase()
	client := NewMockHTTPClient()
	registerRemoteAlice(client)
	resolver := newTestResolver(db, client)

	_, err := resolver.Resolve("acct:alice@remote.example", ResolveAcct|OnlyExisting)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if client.RequestCount() != 0 {
		t.Errorf("OnlyExisting must not hit the network, got %d requests", client.RequestCount())
	}
}

func TestResolveValidation(t *testing.T) {
	resolver := newTestResolver(NewMockDatabase(), NewMockHTTPClient())

	tests := []struct {
		query string
		flags ResolveFlag
	}{
		{"acct:alice@remote.example", ResolveUri},                   // acct without Acct flag
		{"https://remote.example/users/alice", ResolveAcct},        // uri without Uri flag
		{"http://remote.example/users/alice", ResolveAcct | ResolveUri}, // bad scheme
		{"ftp://remote.example/x", ResolveAcct | ResolveUri},
		{"alice", ResolveAcct | ResolveUri}, // not absolute
		{"", ResolveAcct | ResolveUri},
		{"https://local.example/notes/" + uuid.NewString(), ResolveUri}, // note permalink
	}
	for _, tt := range tests {
		if _, err := resolver.Resolve(tt.query, tt.flags); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Resolve(%q) = %v, want invalid request", tt.query, err)
		}
	}
}

func TestResolveOwnDomainUnknownUserFails(t *testing.T) {
	db := NewMockDatabase()
	client := NewMockHTTPClient()
	resolver := newTestResolver(db, client)

	_, err := resolver.Resolve("acct:nobody@local.example", ResolveAcct)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if client.RequestCount() != 0 {
		t.Error("this server must never webfinger itself")
	}
}

func TestResolveLocalUser(t *testing.T) {
	db := NewMockDatabase()
	db.AddUser(&domain.User{Id: uuid.New(), Username: "bob", Host: ""})
	resolver := newTestResolver(db, NewMockHTTPClient())

	user, err := resolver.Resolve("acct:bob@local.example", ResolveAcct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !user.IsLocal() {
		t.Error("expected a local user")
	}
}

func TestResolveEnforceUri(t *testing.T) {
	db := NewMockDatabase()
	client := NewMockHTTPClient()
	// WebFinger for the alias points at the canonical actor URI.
	client.Responses["https://remote.example/.well-known/webfinger"] = &MockResponse{
		StatusCode:  200,
		ContentType: "application/jrd+json",
		Body: `{
			"subject": "acct:alice@remote.example",
			"links": [{"rel": "self", "type": "application/activity+json", "href": "https://remote.example/users/alice"}]
		}`,
	}
	registerActorDoc := &MockResponse{
		StatusCode: 200,
		Body: `{
			"id": "https://remote.example/users/alice",
			"type": "Person",
			"preferredUsername": "alice",
			"inbox": "https://remote.example/users/alice/inbox"
		}`,
	}
	client.Responses["https://remote.example/users/alice"] = registerActorDoc
	client.Responses["https://remote.example/@alice"] = registerActorDoc
	resolver := newTestResolver(db, client)

	// The alias resolves fine without enforcement...
	if _, err := resolver.Resolve("https://remote.example/@alice", ResolveUri); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// ...but EnforceUri requires the canonical URI to equal the query.
	_, err := resolver.Resolve("https://remote.example/@alice", ResolveUri|EnforceUri)
	if !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected identity mismatch, got %v", err)
	}
}

func TestResolveConcurrentCreatesOneUser(t *testing.T) {
	db := NewMockDatabase()
	client := NewMockHTTPClient()
	registerRemoteAlice(client)
	resolver := newTestResolver(db, client)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := resolver.Resolve("acct:alice@remote.example", ResolveAcct); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(db.Users) != 1 {
		t.Errorf("expected exactly 1 user row, got %d", len(db.Users))
	}
}

func TestGetUpdatedUserFreshIsNoop(t *testing.T) {
	db := NewMockDatabase()
	client := NewMockHTTPClient()
	resolver := newTestResolver(db, client)

	user := &domain.User{
		Id:            uuid.New(),
		Username:      "alice",
		Host:          "remote.example",
		Uri:           "https://remote.example/users/alice",
		LastFetchedAt: time.Now(),
	}
	db.AddUser(user)

	got := resolver.GetUpdatedUser(user)
	if got != user {
		t.Error("fresh user must be returned unchanged")
	}
	if client.RequestCount() != 0 {
		t.Error("fresh user must not trigger a fetch")
	}
}

func TestGetUpdatedUserStaleRefreshes(t *testing.T) {
	db := NewMockDatabase()
	client := NewMockHTTPClient()
	client.Responses["https://remote.example/users/alice"] = &MockResponse{
		StatusCode: 200,
		Body: `{
			"id": "https://remote.example/users/alice",
			"type": "Person",
			"preferredUsername": "alice",
			"name": "Alice Renamed",
			"inbox": "https://remote.example/users/alice/inbox"
		}`,
	}
	resolver := newTestResolver(db, client)

	user := &domain.User{
		Id:            uuid.New(),
		Username:      "alice",
		Host:          "remote.example",
		Uri:           "https://remote.example/users/alice",
		LastFetchedAt: time.Now().Add(-48 * time.Hour),
	}
	db.AddUser(user)

	got := resolver.GetUpdatedUser(user)
	if got.DisplayName != "Alice Renamed" {
		t.Errorf("expected refreshed display name, got %q", got.DisplayName)
	}
}

func TestGetUpdatedUserNeverFails(t *testing.T) {
	db := NewMockDatabase()
	client := NewMockHTTPClient() // remote answers 404 for everything
	resolver := newTestResolver(db, client)

	user := &domain.User{
		Id:            uuid.New(),
		Username:      "alice",
		Host:          "remote.example",
		Uri:           "https://remote.example/users/alice",
		LastFetchedAt: time.Now().Add(-48 * time.Hour),
	}
	db.AddUser(user)

	got := resolver.GetUpdatedUser(user)
	if got == nil {
		t.Fatal("a failed refresh must still hand back the stale user")
	}
}

func TestReverseDiscoveryFromBareURI(t *testing.T) {
	db := NewMockDatabase()
	client := NewMockHTTPClient()
	// The host answers WebFinger only for the acct form, not the URI form.
	client.Responses["https://remote.example/users/alice"] = &MockResponse{
		StatusCode: 200,
		Body: `{
			"id": "https://remote.example/users/alice",
			"type": "Person",
			"preferredUsername": "alice",
			"inbox": "https://remote.example/users/alice/inbox"
		}`,
	}
	// Only the acct-form resource is answered; the URI-form lookup 404s,
	// forcing the resolver through the actor document.
	client.Responses["https://remote.example/.well-known/webfinger?resource=acct%3Aalice%40remote.example"] = &MockResponse{
		StatusCode:  200,
		ContentType: "application/jrd+json",
		Body: `{
			"subject": "acct:alice@remote.example",
			"links": [{"rel": "self", "type": "application/activity+json", "href": "https://remote.example/users/alice"}]
		}`,
	}
	resolver := newTestResolver(db, client)

	user, err := resolver.Resolve("https://remote.example/users/alice", ResolveUri)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Acct() != "alice@remote.example" {
		t.Errorf("got %q", user.Acct())
	}
}
