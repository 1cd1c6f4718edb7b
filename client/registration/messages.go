// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package registration

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/katzenpost/hpqc/sign/ed25519"
	"github.com/katzenpost/hpqc/util"

	"github.com/katzenpost/bootstrap/client/gateway"
)

const (
	// ProtocolVersion is the registration exchange version.
	ProtocolVersion = 1

	// EphemeralKeySize is the size of an X25519 public key.
	EphemeralKeySize = curve25519.PointSize

	maxMessageSize = 4096
)

var protocolLabel = []byte("katzenpost-bootstrap-register-v1")

// Status is the gateway's verdict on a registration request.
type Status uint8

const (
	StatusOK Status = iota
	StatusRejected
	StatusBadRequest
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRejected:
		return "rejected"
	case StatusBadRequest:
		return "bad request"
	default:
		return fmt.Sprintf("[unknown status %d]", uint8(s))
	}
}

var (
	errBadSignature  = errors.New("registration: invalid signature")
	errBadEphemeral  = errors.New("registration: invalid ephemeral key")
	errBadVersion    = errors.New("registration: unsupported protocol version")
	errBadClientID   = errors.New("registration: invalid client identity")
	errMessageLength = errors.New("registration: message too large")
	errMessageType   = errors.New("registration: unexpected message type")
)

// RegisterRequest is sent by the client.
type RegisterRequest struct {
	Version        uint8
	ClientIdentity []byte
	Ephemeral      []byte

	// Signature by the client identity over the label and Ephemeral.
	Signature []byte
}

// RegisterResponse is the gateway's answer.
type RegisterResponse struct {
	Status    Status
	Ephemeral []byte

	// Signature by the gateway identity over the transcript.
	Signature []byte
	Error     string
}

func encode(v interface{}) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(b) > maxMessageSize {
		return nil, errMessageLength
	}
	return b, nil
}

func decode(b []byte, v interface{}) error {
	if len(b) > maxMessageSize {
		return errMessageLength
	}
	return cbor.Unmarshal(b, v)
}

func requestSigningMessage(ephemeral []byte) []byte {
	return concat(protocolLabel, ephemeral)
}

func transcript(clientEphemeral, gatewayEphemeral, clientIdentity []byte) []byte {
	return concat(protocolLabel, clientEphemeral, gatewayEphemeral, clientIdentity)
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

// ephemeral is a one-shot X25519 keypair.
type ephemeral struct {
	private [curve25519.ScalarSize]byte
	public  []byte
}

func newEphemeral(r io.Reader) (*ephemeral, error) {
	e := new(ephemeral)
	if _, err := io.ReadFull(r, e.private[:]); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(e.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	e.public = pub
	return e, nil
}

func (e *ephemeral) reset() {
	util.ExplicitBzero(e.private[:])
}

// deriveSharedKey runs the key agreement shared by both sides.  The
// salt binds both ephemerals and the info binds both identities.
func deriveSharedKey(e *ephemeral, peerEphemeral, clientEphemeral, gatewayEphemeral []byte, clientID, gatewayID *ed25519.PublicKey) (*gateway.SharedKey, error) {
	if len(peerEphemeral) != EphemeralKeySize {
		return nil, errBadEphemeral
	}
	dh, err := curve25519.X25519(e.private[:], peerEphemeral)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadEphemeral, err)
	}
	defer util.ExplicitBzero(dh)

	salt := concat(clientEphemeral, gatewayEphemeral)
	info := concat(protocolLabel, clientID.Bytes(), gatewayID.Bytes())
	okm := make([]byte, gateway.SharedKeySize)
	defer util.ExplicitBzero(okm)
	if _, err := io.ReadFull(hkdf.New(sha256.New, dh, salt, info), okm); err != nil {
		return nil, err
	}
	return gateway.NewSharedKey(okm)
}
