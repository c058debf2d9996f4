package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Bite is a reciprocal "poke" activity. Its target is exactly one of a user,
// a note or another bite; the constructors below are the only way to build a
// valid one.
type Bite struct {
	Id           uuid.UUID
	URI          string
	UserId       uuid.UUID // who bit
	TargetUserId *uuid.UUID
	TargetNoteId *uuid.UUID
	TargetBiteId *uuid.UUID
	CreatedAt    time.Time
}

var ErrBiteTarget = errors.New("bite must have exactly one target")

// NewUserBite builds a bite aimed at a user.
func NewUserBite(uri string, biter, target uuid.UUID) *Bite {
	return &Bite{Id: uuid.New(), URI: uri, UserId: biter, TargetUserId: &target, CreatedAt: time.Now()}
}

// NewNoteBite builds a bite aimed at a note.
func NewNoteBite(uri string, biter, target uuid.UUID) *Bite {
	return &Bite{Id: uuid.New(), URI: uri, UserId: biter, TargetNoteId: &target, CreatedAt: time.Now()}
}

// NewBiteBite builds a bite aimed at another bite (a bite-back).
func NewBiteBite(uri string, biter, target uuid.UUID) *Bite {
	return &Bite{Id: uuid.New(), URI: uri, UserId: biter, TargetBiteId: &target, CreatedAt: time.Now()}
}

// Validate checks the exactly-one-target invariant.
func (b *Bite) Validate() error {
	n := 0
	if b.TargetUserId != nil {
		n++
	}
	if b.TargetNoteId != nil {
		n++
	}
	if b.TargetBiteId != nil {
		n++
	}
	if n != 1 {
		return ErrBiteTarget
	}
	return nil
}

// TargetKind returns "user", "note" or "bite".
func (b *Bite) TargetKind() string {
	switch {
	case b.TargetUserId != nil:
		return "user"
	case b.TargetNoteId != nil:
		return "note"
	case b.TargetBiteId != nil:
		return "bite"
	}
	return ""
}
