// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

// Package identity decodes advertised node identities and holds the
// client's long-lived identity keypair.
//
// Identities are the 32 byte Ed25519 public key rendered in base58 with
// the Bitcoin alphabet, which is how the directory service publishes them.
package identity

import (
	"errors"
	"fmt"
	"io"

	"github.com/katzenpost/hpqc/sign/ed25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidIdentity is returned when an identity string does not decode
// to an Ed25519 public key.
var ErrInvalidIdentity = errors.New("identity: invalid identity")

// Decode parses an advertised identity string into a verifiable public key.
func Decode(s string) (*ed25519.PublicKey, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidIdentity)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %d bytes, expected %d", ErrInvalidIdentity, len(raw), ed25519.PublicKeySize)
	}
	pk := new(ed25519.PublicKey)
	if err := pk.FromBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return pk, nil
}

// Encode renders a public key as an identity string.
func Encode(pk *ed25519.PublicKey) string {
	return base58.Encode(pk.Bytes())
}

// KeyPair is the client's identity keypair.  It is created once per client
// initialization and is only read afterwards.
type KeyPair struct {
	private *ed25519.PrivateKey
	public  *ed25519.PublicKey
}

// NewKeyPair samples a fresh identity keypair from r.
func NewKeyPair(r io.Reader) (*KeyPair, error) {
	priv, pub, err := ed25519.NewKeypair(r)
	if err != nil {
		return nil, err
	}
	return &KeyPair{private: priv, public: pub}, nil
}

// FromPrivateKey wraps an existing private key, as loaded from disk.
func FromPrivateKey(priv *ed25519.PrivateKey) *KeyPair {
	return &KeyPair{private: priv, public: priv.PublicKey()}
}

// PublicKey returns the public half.  The caller MUST NOT modify it.
func (k *KeyPair) PublicKey() *ed25519.PublicKey {
	return k.public
}

// PrivateKey returns the private half for persistence.  The caller MUST
// NOT modify or retain it.
func (k *KeyPair) PrivateKey() *ed25519.PrivateKey {
	return k.private
}

// Identity returns the encoded identity string of the public half.
func (k *KeyPair) Identity() string {
	return Encode(k.public)
}

// Sign signs message with the identity key.
func (k *KeyPair) Sign(message []byte) []byte {
	return k.private.SignMessage(message)
}

// Reset scrubs the key material.
func (k *KeyPair) Reset() {
	k.private.Reset()
}

// String never reveals the private key.
func (k *KeyPair) String() string {
	return fmt.Sprintf("identity(%s)", k.Identity())
}
