package domain

import (
	"time"

	"github.com/google/uuid"
)

// Note visibility levels, mirroring the ActivityPub addressing conventions.
const (
	VisibilityPublic    = "public"    // to: Public
	VisibilityHome      = "home"      // cc: Public (unlisted)
	VisibilityFollowers = "followers" // to: followers collection
	VisibilitySpecified = "specified" // to: explicit recipients only
)

// Note is a post, local or federated in. RenoteId is set for renotes
// (Announce); InReplyToURI for replies.
type Note struct {
	Id          uuid.UUID
	UserId      uuid.UUID
	URI         string // empty for local notes until federated out
	Content     string
	Visibility  string
	RenoteId    *uuid.UUID
	InReplyToURI string
	LikeCount   int
	RenoteCount int
	ReplyCount  int
	CreatedAt   time.Time
}

// Like is a favourite on a note, deduplicated per account and note.
type Like struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	NoteId    uuid.UUID
	URI       string
	CreatedAt time.Time
}
