package activitypub

import (
	"log"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ResolvedObject is the result of resolving an object reference. Exactly one
// of the three content fields is populated: Object for embedded or fetched
// documents, NoteId or UserId as id-only stubs when the reference points at
// something this server already stores. Callers holding a stub re-load the
// full row by id.
type ResolvedObject struct {
	URI    string
	Object RemoteObject
	NoteId *uuid.UUID
	UserId *uuid.UUID
}

// ObjectResolver turns object references into objects. It is best-effort by
// contract: every failure degrades to a nil result and a log line.
type ObjectResolver struct {
	db          Database
	fetcher     *Fetcher
	gate        *Gate
	localDomain string
}

// NewObjectResolver creates a resolver backed by the production database.
func NewObjectResolver(fetcher *Fetcher, gate *Gate, localDomain string) *ObjectResolver {
	return NewObjectResolverWithDeps(NewDBWrapper(), fetcher, gate, localDomain)
}

// NewObjectResolverWithDeps creates a resolver with injected dependencies for testing.
func NewObjectResolverWithDeps(database Database, fetcher *Fetcher, gate *Gate, localDomain string) *ObjectResolver {
	return &ObjectResolver{
		db:          database,
		fetcher:     fetcher,
		gate:        gate,
		localDomain: localDomain,
	}
}

// ResolveObject resolves a reference, which may be a bare URI string or an
// embedded document. A nil result means the object is unavailable; callers
// cannot and must not distinguish why.
func (r *ObjectResolver) ResolveObject(ref any) *ResolvedObject {
	// An embedded document with a body needs no I/O at all.
	if m, ok := ref.(map[string]any); ok {
		obj := RemoteObject(m)
		if obj.Type() != "" {
			return &ResolvedObject{URI: obj.ID(), Object: obj}
		}
		ref = obj.ID()
	}

	uri, _ := ref.(string)
	if uri == "" {
		log.Printf("ObjectResolver: reference without identifier, ignoring")
		return nil
	}

	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		log.Printf("ObjectResolver: unparseable reference %q", uri)
		return nil
	}
	if r.gate.ShouldBlock(u.Host) {
		return nil
	}

	if stub := r.lookupLocal(uri, u); stub != nil {
		return stub
	}

	obj, err := r.fetcher.FetchObject(uri)
	if err != nil {
		log.Printf("ObjectResolver: fetch of %s failed: %v", uri, err)
		return nil
	}
	if obj == nil {
		return nil
	}
	return &ResolvedObject{URI: obj.ID(), Object: obj}
}

// lookupLocal returns an id-only stub when the reference names a note or
// actor already in the store, including the permalink forms of this
// server's own objects.
func (r *ObjectResolver) lookupLocal(uri string, u *url.URL) *ResolvedObject {
	if err, note := r.db.ReadNoteByURI(uri); err == nil && note != nil {
		return &ResolvedObject{URI: uri, NoteId: &note.Id}
	}
	if err, user := r.db.ReadUserByUri(uri); err == nil && user != nil {
		return &ResolvedObject{URI: uri, UserId: &user.Id}
	}

	norm, err := NormalizeHost(u.Host)
	if err != nil {
		return nil
	}
	local, err := NormalizeHost(r.localDomain)
	if err != nil || norm != local {
		return nil
	}

	if rest, ok := strings.CutPrefix(u.Path, "/notes/"); ok {
		if id, err := uuid.Parse(rest); err == nil {
			if err, note := r.db.ReadNoteById(id); err == nil && note != nil {
				return &ResolvedObject{URI: uri, NoteId: &note.Id}
			}
		}
	}
	if name, ok := strings.CutPrefix(u.Path, "/users/"); ok && !strings.Contains(name, "/") {
		if err, user := r.db.ReadUserByAcct(name, ""); err == nil && user != nil {
			return &ResolvedObject{URI: uri, UserId: &user.Id}
		}
	}
	return nil
}
