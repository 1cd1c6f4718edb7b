// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package gateway

import (
	"context"

	"github.com/katzenpost/hpqc/sign/ed25519"

	"github.com/katzenpost/bootstrap/core/identity"
)

// Transport opens registration connections to gateways.
type Transport interface {
	// Connect opens a connection to the gateway listening on listener
	// whose identity is gatewayKey.  It MUST give up once ctx is done,
	// and MUST return a nil Conn with any error.
	Connect(ctx context.Context, listener string, gatewayKey *ed25519.PublicKey) (Conn, error)
}

// Conn is an open registration connection.
type Conn interface {
	// Register runs the registration exchange and returns the derived
	// key.  It MUST return once ctx is done or the Conn is closed.
	Register(ctx context.Context, keypair *identity.KeyPair) (*SharedKey, error)

	// Close shuts the connection down.
	Close() error
}

// RegistrationResult is the outcome of a successful selection.
type RegistrationResult struct {
	// GatewayIdentity is the gateway's encoded identity key.
	GatewayIdentity string

	// GatewayListener is the address the client registered at.
	GatewayListener string

	// SharedKey is the key agreed with that gateway.
	SharedKey *SharedKey
}
