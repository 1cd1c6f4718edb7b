// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package gateway

import (
	"crypto/hmac"
	"errors"
	"fmt"

	"github.com/katzenpost/hpqc/util"
	"github.com/mr-tron/base58"
)

// SharedKeySize is the size of a SharedKey in bytes.
const SharedKeySize = 32

var errSharedKeySize = errors.New("gateway: invalid shared key size")

// SharedKey is the symmetric key derived during registration with one
// gateway.  It is only valid for that gateway.
type SharedKey struct {
	key [SharedKeySize]byte
}

// NewSharedKey copies b into a new SharedKey.
func NewSharedKey(b []byte) (*SharedKey, error) {
	if len(b) != SharedKeySize {
		return nil, errSharedKeySize
	}
	k := new(SharedKey)
	copy(k.key[:], b)
	return k, nil
}

// SharedKeyFromBase58 decodes a key previously exported with ToBase58.
func SharedKeyFromBase58(s string) (*SharedKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("gateway: malformed shared key: %v", err)
	}
	defer util.ExplicitBzero(raw)
	return NewSharedKey(raw)
}

// Bytes returns a copy of the key material.
func (k *SharedKey) Bytes() []byte {
	b := make([]byte, SharedKeySize)
	copy(b, k.key[:])
	return b
}

// ToBase58 exports the key for persistence.
func (k *SharedKey) ToBase58() string {
	return base58.Encode(k.key[:])
}

// Equal compares two keys in constant time.
func (k *SharedKey) Equal(other *SharedKey) bool {
	if other == nil {
		return false
	}
	return hmac.Equal(k.key[:], other.key[:])
}

// Reset scrubs the key material.
func (k *SharedKey) Reset() {
	util.ExplicitBzero(k.key[:])
}

// String implements fmt.Stringer without leaking the key.
func (k *SharedKey) String() string {
	return "[shared key]"
}

// GoString implements fmt.GoStringer so %#v does not leak the key either.
func (k *SharedKey) GoString() string {
	return k.String()
}
