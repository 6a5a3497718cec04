// Package gate evaluates who may create or modify discussion content.
// Ownership checks are absolute: no role bypasses them at this layer.
// Elevated moderation is an external capability.
package gate

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"
)

var (
	ErrUnauthorized = errors.New("actor required")
	ErrForbidden    = errors.New("forbidden")
)

// Actor is the identity supplied by the external session provider.
// A nil *Actor is an anonymous caller.
type Actor struct {
	ID string
}

// ChannelPolicy is the subset of channel settings the gate evaluates.
type ChannelPolicy struct {
	AllowAnonymousPosts bool
	MinRoleToPost       string
}

// CanCreate decides whether the actor may create a thread or post in a
// channel. Anonymous actors need the channel to opt in; identified actors
// pass here, with role gating left to the surrounding permission layers.
func CanCreate(actor *Actor, policy ChannelPolicy) error {
	if actor == nil || actor.ID == "" {
		if !policy.AllowAnonymousPosts {
			return ErrForbidden
		}
	}
	return nil
}

// CanModify decides whether the actor may edit or delete a resource.
// Anonymous resources (nil owner) cannot be modified through this gate.
func CanModify(actor *Actor, ownerID *string) error {
	if actor == nil || actor.ID == "" {
		return ErrUnauthorized
	}
	if ownerID == nil || *ownerID == "" {
		return ErrForbidden
	}
	if actor.ID != *ownerID {
		return ErrForbidden
	}
	return nil
}

// Fingerprint synthesizes an opaque tag for an anonymous post from the
// current time, a random salt, and request metadata. It correlates spam
// without retaining reversible identity.
func Fingerprint(remoteAddr, userAgent string) string {
	var salt [16]byte
	_, _ = rand.Read(salt[:])

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(time.Now().UnixNano()))

	digest, err := blake2b.New256(nil)
	if err != nil {
		return "anon_" + hex.EncodeToString(salt[:])
	}
	digest.Write(ts[:])
	digest.Write(salt[:])
	digest.Write([]byte(remoteAddr))
	digest.Write([]byte(userAgent))
	return "anon_" + hex.EncodeToString(digest.Sum(nil))
}
