// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrNoGatewayAvailable is returned by Select when no candidate
	// could be registered with, including when there were none.
	ErrNoGatewayAvailable = errors.New("gateway: no gateway available")

	// ErrGatewayNotFound is returned by Resolve when the pinned identity
	// is not in the topology.
	ErrGatewayNotFound = errors.New("gateway: gateway not found")
)

// FailureKind classifies a per-candidate handshake failure.
type FailureKind int

const (
	// InvalidIdentity means the advertised identity did not decode.
	InvalidIdentity FailureKind = iota
	// ConnectFailure means the transport could not be opened in time.
	ConnectFailure
	// RegisterFailure means the registration exchange failed or timed out.
	RegisterFailure
	// CloseFailure means the transport could not be cleanly closed after
	// a successful registration.
	CloseFailure
)

func (k FailureKind) String() string {
	switch k {
	case InvalidIdentity:
		return "invalid identity"
	case ConnectFailure:
		return "connect error"
	case RegisterFailure:
		return "register error"
	case CloseFailure:
		return "close error"
	default:
		return fmt.Sprintf("[unknown failure kind %d]", int(k))
	}
}

// HandshakeError is the error returned by a failed registration attempt.
// It never crosses Select; the selector absorbs it and moves on.
type HandshakeError struct {
	// Kind is what went wrong.
	Kind FailureKind

	// State is the state the handshake was in when it failed.
	State State

	// Gateway is the candidate's advertised identity.
	Gateway string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("gateway: handshake with %v failed in %v: %v: %v", e.Gateway, e.State, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// FetchError is returned when the directory could not be queried or its
// answer could not be parsed.  It aborts the whole operation.
type FetchError struct {
	// Directory is the directory address that was queried.
	Directory string

	// Err is the original error.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("gateway: failed to fetch topology from %v: %v", e.Directory, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NoGatewayError is the concrete ErrNoGatewayAvailable, carrying why each
// candidate was rejected.
type NoGatewayError struct {
	Directory string
	Failures  []*HandshakeError
}

// Error implements the error interface.
func (e *NoGatewayError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("%v: directory %v lists no compatible gateways", ErrNoGatewayAvailable, e.Directory)
	}
	return fmt.Sprintf("%v: all %d gateways from %v failed", ErrNoGatewayAvailable, len(e.Failures), e.Directory)
}

// Unwrap makes errors.Is(err, ErrNoGatewayAvailable) hold.
func (e *NoGatewayError) Unwrap() error {
	return ErrNoGatewayAvailable
}
