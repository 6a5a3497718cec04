package gate

import (
	"errors"
	"strings"
	"testing"
)

func TestCanCreateAnonymousRequiresChannelOptIn(t *testing.T) {
	if err := CanCreate(nil, ChannelPolicy{AllowAnonymousPosts: false}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for anonymous actor, got %v", err)
	}
	if err := CanCreate(nil, ChannelPolicy{AllowAnonymousPosts: true}); err != nil {
		t.Fatalf("expected anonymous creation to pass, got %v", err)
	}
	if err := CanCreate(&Actor{ID: ""}, ChannelPolicy{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected empty actor id to count as anonymous, got %v", err)
	}
}

func TestCanCreateIdentifiedActorPasses(t *testing.T) {
	if err := CanCreate(&Actor{ID: "user-1"}, ChannelPolicy{AllowAnonymousPosts: false}); err != nil {
		t.Fatalf("expected identified actor to pass, got %v", err)
	}
}

func TestCanModifyEnforcesOwnership(t *testing.T) {
	owner := "user-1"

	if err := CanModify(nil, &owner); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without actor, got %v", err)
	}
	if err := CanModify(&Actor{ID: "user-2"}, &owner); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
	if err := CanModify(&Actor{ID: "user-1"}, &owner); err != nil {
		t.Fatalf("expected owner to pass, got %v", err)
	}
}

func TestCanModifyRejectsAnonymousResources(t *testing.T) {
	if err := CanModify(&Actor{ID: "user-1"}, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for nil owner, got %v", err)
	}
	empty := ""
	if err := CanModify(&Actor{ID: "user-1"}, &empty); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for empty owner, got %v", err)
	}
}

func TestFingerprintIsOpaqueAndUnique(t *testing.T) {
	first := Fingerprint("10.0.0.1:4242", "agent/1.0")
	second := Fingerprint("10.0.0.1:4242", "agent/1.0")

	if !strings.HasPrefix(first, "anon_") {
		t.Fatalf("expected anon_ prefix, got %q", first)
	}
	if first == second {
		t.Fatalf("expected distinct fingerprints for identical metadata")
	}
	if strings.Contains(first, "10.0.0.1") {
		t.Fatalf("fingerprint must not embed request metadata: %q", first)
	}
}
