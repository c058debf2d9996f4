package activitypub

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/loxodon-net/loxodon/util"
	"golang.org/x/time/rate"
)

// The two content types a conforming server may use for ActivityPub
// documents.
const (
	ContentTypeActivityJSON = "application/activity+json"
	ContentTypeLDJSON       = `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
)

// acceptActivityJSON is what we send in Accept headers on outbound fetches.
const acceptActivityJSON = ContentTypeActivityJSON + ", " + ContentTypeLDJSON

// maxFetchBodySize caps how much of a remote document we are willing to read.
const maxFetchBodySize = 1 << 20 // 1 MiB

// RemoteObject is a fetched ActivityPub document, kept as a raw map because
// activity shapes vary too much across implementations for rigid structs.
type RemoteObject map[string]any

// ID returns the document's id, or "" if absent or not a string.
func (o RemoteObject) ID() string {
	return o.Str("id")
}

// Type returns the document's type, or "" if absent. A type given as an
// array yields its first string element.
func (o RemoteObject) Type() string {
	switch v := o["type"].(type) {
	case string:
		return v
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				return s
			}
		}
	}
	return ""
}

// Str returns the string value at key. A nested object is resolved to its
// own id, which covers the common "object": {...} vs "object": "uri" split.
func (o RemoteObject) Str(key string) string {
	switch v := o[key].(type) {
	case string:
		return v
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return id
		}
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				return s
			}
		}
	}
	return ""
}

// Object returns the nested object at key, if the value is an embedded
// document rather than a bare URI.
func (o RemoteObject) Object(key string) RemoteObject {
	if m, ok := o[key].(map[string]any); ok {
		return RemoteObject(m)
	}
	return nil
}

// IsActor reports whether the document's type is one of the ActivityPub
// actor types.
func (o RemoteObject) IsActor() bool {
	switch o.Type() {
	case "Person", "Service", "Application", "Group", "Organization":
		return true
	}
	return false
}

// Fetcher retrieves remote ActivityPub documents. Every fetch is gated by
// federation policy, rate limited per host, and identity checked: the
// returned document's id must match the address it was ultimately served
// from, one corrective refetch allowed.
type Fetcher struct {
	client      HTTPClient
	gate        *Gate
	localDomain string

	signKey   *rsa.PrivateKey
	signKeyId string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a fetcher with the default HTTP client.
func NewFetcher(gate *Gate, localDomain string) *Fetcher {
	return NewFetcherWithDeps(NewDefaultHTTPClient(10*time.Second), gate, localDomain)
}

// NewFetcherWithDeps creates a fetcher with injected dependencies for testing.
func NewFetcherWithDeps(client HTTPClient, gate *Gate, localDomain string) *Fetcher {
	return &Fetcher{
		client:      client,
		gate:        gate,
		localDomain: localDomain,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// SetSigningKey installs the instance actor's key so outbound GETs are
// signed, which servers in authorized-fetch mode require.
func (f *Fetcher) SetSigningKey(privateKeyPem, keyId string) error {
	key, err := ParsePrivateKey(privateKeyPem)
	if err != nil {
		return err
	}
	f.signKey = key
	f.signKeyId = keyId
	return nil
}

func (f *Fetcher) isLocalHost(host string) bool {
	if f.localDomain == "" {
		return false
	}
	norm, err := NormalizeHost(host)
	if err != nil {
		return false
	}
	local, err := NormalizeHost(f.localDomain)
	if err != nil {
		return false
	}
	return norm == local
}

func (f *Fetcher) hostLimiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(5), 10)
		f.limiters[host] = lim
	}
	return lim
}

// Get performs a gated, rate-limited GET against a remote server. Callers
// own the response body. A nil response with nil error means the host is
// blocked by federation policy or is this server itself.
func (f *Fetcher) Get(uri, accept string) (*http.Response, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: bad url %q", ErrInvalidRequest, uri)
	}
	if f.gate.ShouldBlock(u.Host) {
		return nil, nil
	}
	if f.isLocalHost(u.Host) {
		// This server never fetches from itself.
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := f.hostLimiter(u.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", u.Host, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", util.GetNameAndVersion()+" ActivityPub")

	if f.signKey != nil {
		if err := SignGetRequest(req, f.signKey, f.signKeyId); err != nil {
			return nil, fmt.Errorf("failed to sign request: %w", err)
		}
	}

	return f.client.Do(req)
}

// fetchOnce retrieves one document without identity checking and returns it
// together with the final URL it was served from after redirects.
func (f *Fetcher) fetchOnce(uri string) (RemoteObject, string, error) {
	resp, err := f.Get(uri, acceptActivityJSON)
	if err != nil {
		return nil, "", err
	}
	if resp == nil {
		// blocked host, not an error
		return nil, "", nil
	}
	defer resp.Body.Close()

	finalURL := uri
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode == http.StatusGone {
		return nil, finalURL, ErrActorGone
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Fetch: %s answered %d", uri, resp.StatusCode)
		return nil, finalURL, nil
	}
	if !isActivityContentType(resp.Header.Get("Content-Type")) {
		log.Printf("Fetch: %s served non-ActivityPub content type %q", uri, resp.Header.Get("Content-Type"))
		return nil, finalURL, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBodySize))
	if err != nil {
		return nil, finalURL, fmt.Errorf("failed to read response: %w", err)
	}

	var obj RemoteObject
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, finalURL, fmt.Errorf("failed to parse document: %w", err)
	}
	return obj, finalURL, nil
}

// FetchObject retrieves an ActivityPub document and enforces that its id
// matches the address it was served from. When they disagree, the document
// is refetched once at its claimed id; if the refetched copy still does not
// own that address the whole fetch fails as a spoofing attempt.
//
// A (nil, nil) return means the document is unavailable for a benign reason:
// blocked host, non-2xx answer, or wrong content type.
func (f *Fetcher) FetchObject(uri string) (RemoteObject, error) {
	obj, finalURL, err := f.fetchOnce(uri)
	if err != nil || obj == nil {
		return nil, err
	}

	id := obj.ID()
	if id == "" {
		return nil, fmt.Errorf("%w: document at %s has no id", ErrInvalidRequest, uri)
	}
	if id == finalURL {
		return obj, nil
	}

	// The document claims a different id than the address that served it.
	// Trust only a copy fetched from the claimed id itself.
	obj2, finalURL2, err := f.fetchOnce(id)
	if err != nil {
		return nil, err
	}
	if obj2 == nil {
		return nil, fmt.Errorf("%w: %s claims id %s which did not serve it", ErrIdentityMismatch, uri, id)
	}
	if obj2.ID() != finalURL2 {
		return nil, fmt.Errorf("%w: id %s does not own its address", ErrIdentityMismatch, obj2.ID())
	}
	return obj2, nil
}

// FetchActor retrieves an actor document. Beyond the generic identity check
// it requires an actor type and the fields this server cannot work without.
func (f *Fetcher) FetchActor(uri string) (RemoteObject, error) {
	obj, err := f.FetchObject(uri)
	if err != nil || obj == nil {
		return nil, err
	}
	if !obj.IsActor() {
		return nil, fmt.Errorf("%w: %s is not an actor (type %q)", ErrInvalidRequest, uri, obj.Type())
	}
	if obj.Str("preferredUsername") == "" || obj.Str("inbox") == "" {
		return nil, fmt.Errorf("%w: actor %s missing required fields", ErrInvalidRequest, uri)
	}
	return obj, nil
}

func isActivityContentType(ct string) bool {
	mediaType := strings.TrimSpace(strings.ToLower(strings.Split(ct, ";")[0]))
	return mediaType == "application/activity+json" || mediaType == "application/ld+json"
}
