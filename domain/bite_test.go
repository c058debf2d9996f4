package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestBiteValidateExactlyOneTarget(t *testing.T) {
	userId := uuid.New()
	noteId := uuid.New()
	biteId := uuid.New()

	tests := []struct {
		name  string
		bite  *Bite
		valid bool
	}{
		{"user target", NewUserBite("https://a.example/bites/1", uuid.New(), userId), true},
		{"note target", NewNoteBite("https://a.example/bites/2", uuid.New(), noteId), true},
		{"bite target", NewBiteBite("https://a.example/bites/3", uuid.New(), biteId), true},
		{"no target", &Bite{Id: uuid.New(), UserId: uuid.New()}, false},
		{"two targets", &Bite{Id: uuid.New(), UserId: uuid.New(), TargetUserId: &userId, TargetNoteId: &noteId}, false},
		{"all three", &Bite{Id: uuid.New(), UserId: uuid.New(), TargetUserId: &userId, TargetNoteId: &noteId, TargetBiteId: &biteId}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bite.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected validation to fail")
			}
		})
	}
}

func TestBiteTargetKind(t *testing.T) {
	if kind := NewUserBite("u", uuid.New(), uuid.New()).TargetKind(); kind != "user" {
		t.Errorf("got %q", kind)
	}
	if kind := NewNoteBite("u", uuid.New(), uuid.New()).TargetKind(); kind != "note" {
		t.Errorf("got %q", kind)
	}
	if kind := NewBiteBite("u", uuid.New(), uuid.New()).TargetKind(); kind != "bite" {
		t.Errorf("got %q", kind)
	}
}
