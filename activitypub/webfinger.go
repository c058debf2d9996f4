package activitypub

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// WebFingerLink is one entry of a WebFinger response's links array.
type WebFingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

// WebFingerResponse is the JRD document returned by a WebFinger endpoint.
type WebFingerResponse struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases"`
	Links   []WebFingerLink `json:"links"`
}

// SelfLink returns the href of the rel="self" link carrying an ActivityPub
// content type, which is the actor document's address.
func (r *WebFingerResponse) SelfLink() string {
	for _, link := range r.Links {
		if link.Rel != "self" {
			continue
		}
		if isActivityContentType(link.Type) {
			return link.Href
		}
	}
	return ""
}

// SubjectAcct splits the response subject into username and host. The
// "acct:" scheme prefix is optional in the wild.
func (r *WebFingerResponse) SubjectAcct() (string, string, error) {
	subject := strings.TrimPrefix(r.Subject, "acct:")
	name, host, found := strings.Cut(subject, "@")
	if !found || name == "" || host == "" {
		return "", "", fmt.Errorf("%w: malformed webfinger subject %q", ErrInvalidRequest, r.Subject)
	}
	return name, host, nil
}

// QueryWebFinger asks the given host to resolve a resource, either an
// "acct:user@host" identifier or an actor URI. A (nil, nil) return means the
// host is blocked or did not answer usefully.
func (f *Fetcher) QueryWebFinger(host, resource string) (*WebFingerResponse, error) {
	endpoint := url.URL{
		Scheme:   "https",
		Host:     host,
		Path:     "/.well-known/webfinger",
		RawQuery: url.Values{"resource": {resource}}.Encode(),
	}

	resp, err := f.Get(endpoint.String(), "application/jrd+json")
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return nil, ErrActorGone
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("WebFinger: %s answered %d for %s", host, resp.StatusCode, resource)
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read webfinger response: %w", err)
	}

	var wf WebFingerResponse
	if err := json.Unmarshal(body, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse webfinger response: %w", err)
	}
	return &wf, nil
}
