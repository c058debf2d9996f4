package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a local or remote actor. Remote users carry the canonical
// actor URI and host; for local users both are empty and the server derives
// their URIs from its own domain.
type User struct {
	Id             uuid.UUID
	Username       string
	Host           string // empty for local users
	Uri            string // canonical actor URI, empty for local users
	ProfileUrl     string // human-readable profile page, if advertised
	DisplayName    string
	Summary        string
	InboxURI       string
	SharedInboxURI string
	OutboxURI      string
	PublicKeyPem   string
	AvatarURL      string
	IsLocked       bool // follows require manual approval
	FollowersCount int
	FollowingCount int
	LastFetchedAt  time.Time
	CreatedAt      time.Time
}

// IsLocal reports whether the user belongs to this server.
func (u *User) IsLocal() bool {
	return u.Host == ""
}

// IsRemote reports whether the user lives on another server.
func (u *User) IsRemote() bool {
	return u.Host != ""
}

// Acct returns the user@host form, or just the username for local users.
func (u *User) Acct() string {
	if u.Host == "" {
		return u.Username
	}
	return u.Username + "@" + u.Host
}

// Keypair holds the RSA keypair of a local user, used to sign outbound
// fetches and deliveries on that user's behalf. Immutable once issued.
type Keypair struct {
	UserId     uuid.UUID
	PublicPem  string
	PrivatePem string
	CreatedAt  time.Time
}
