package activitypub

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/domain"
)

func TestRenderFollowRequiresOneLocalParty(t *testing.T) {
	r := NewRenderer(localDomain)
	local := &domain.User{Id: uuid.New(), Username: "bob"}
	otherLocal := &domain.User{Id: uuid.New(), Username: "carol"}
	remote := &domain.User{Id: uuid.New(), Username: "alice", Host: "remote.example", Uri: "https://remote.example/users/alice"}
	otherRemote := &domain.User{Id: uuid.New(), Username: "dave", Host: "remote.example", Uri: "https://remote.example/users/dave"}

	if _, err := r.RenderFollow(local, remote); err != nil {
		t.Errorf("local->remote follow must render: %v", err)
	}
	if _, err := r.RenderFollow(remote, local); err != nil {
		t.Errorf("remote->local follow must render: %v", err)
	}
	if _, err := r.RenderFollow(local, otherLocal); !errors.Is(err, ErrInvalidRequest) {
		t.Error("local->local follow must be refused")
	}
	if _, err := r.RenderFollow(remote, otherRemote); !errors.Is(err, ErrInvalidRequest) {
		t.Error("remote->remote follow must be refused")
	}
}

func TestRenderFollowShape(t *testing.T) {
	r := NewRenderer(localDomain)
	local := &domain.User{Id: uuid.New(), Username: "bob"}
	remote := &domain.User{Id: uuid.New(), Username: "alice", Host: "remote.example", Uri: "https://remote.example/users/alice"}

	follow, err := r.RenderFollow(local, remote)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantId := "https://" + localDomain + "/follows/" + local.Id.String() + "/" + remote.Id.String()
	if follow["id"] != wantId {
		t.Errorf("got id %v, want %s", follow["id"], wantId)
	}
	if follow["type"] != "Follow" {
		t.Errorf("got type %v", follow["type"])
	}
	if follow["actor"] != "https://"+localDomain+"/users/bob" {
		t.Errorf("got actor %v", follow["actor"])
	}
	if follow["object"] != remote.Uri {
		t.Errorf("got object %v", follow["object"])
	}
}

func TestRenderAcceptEmbedsFollow(t *testing.T) {
	r := NewRenderer(localDomain)
	local := &domain.User{Id: uuid.New(), Username: "bob"}
	follow := map[string]any{"id": "https://remote.example/follows/1", "type": "Follow"}

	accept := r.RenderAccept(local, follow)
	if accept["type"] != "Accept" {
		t.Errorf("got type %v", accept["type"])
	}
	embedded, ok := accept["object"].(map[string]any)
	if !ok || embedded["id"] != "https://remote.example/follows/1" {
		t.Error("accept must embed the original follow")
	}
}

func TestRenderUndoWrapsActivity(t *testing.T) {
	r := NewRenderer(localDomain)
	local := &domain.User{Id: uuid.New(), Username: "bob"}
	inner := map[string]any{"id": "x", "type": "Follow"}

	undo := r.RenderUndo(local, inner)
	if undo["type"] != "Undo" {
		t.Errorf("got type %v", undo["type"])
	}
	if undo["actor"] != "https://"+localDomain+"/users/bob" {
		t.Errorf("got actor %v", undo["actor"])
	}
}
