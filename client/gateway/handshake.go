// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/katzenpost/hpqc/sign/ed25519"
	"go.uber.org/multierr"
	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/bootstrap/client/constants"
	"github.com/katzenpost/bootstrap/core/identity"
	"github.com/katzenpost/bootstrap/core/topology"
)

// DefaultAttemptTimeout bounds Connect plus Register for one candidate.
const DefaultAttemptTimeout = constants.GatewayAttemptTimeout

var (
	errNoKey        = errors.New("gateway: registration returned no key")
	errNoDescriptor = errors.New("gateway: missing gateway descriptor")
)

// State is a registration handshake state.
type State int

const (
	StateInit State = iota
	StateIdentityValidated
	StateConnected
	StateRegistered
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIdentityValidated:
		return "identity_validated"
	case StateConnected:
		return "connected"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("[unknown state %d]", int(s))
	}
}

// Handshake runs one-shot registrations: validate identity, connect,
// register, close.  A Handshake holds no per-attempt state and may be
// reused for successive attempts.
type Handshake struct {
	transport Transport
	timeout   time.Duration
	log       *logging.Logger
}

// NewHandshake returns a Handshake using t.  A zero timeout means
// DefaultAttemptTimeout.
func NewHandshake(t Transport, timeout time.Duration, log *logging.Logger) *Handshake {
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	return &Handshake{
		transport: t,
		timeout:   timeout,
		log:       log,
	}
}

// session is the state of a single attempt.  It owns conn until close.
type session struct {
	desc       *topology.GatewayDescriptor
	gatewayKey *ed25519.PublicKey
	conn       Conn
	deadline   time.Time
	state      State
}

func (s *session) fail(kind FailureKind, err error) error {
	e := &HandshakeError{
		Kind:  kind,
		State: s.state,
		Err:   err,
	}
	if s.desc != nil {
		e.Gateway = s.desc.IdentityKey
	}
	return e
}

// close shuts the transport exactly once.
func (s *session) close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Attempt registers with the gateway described by desc.  On any failure
// the returned error is a *HandshakeError and no connection is left open.
func (h *Handshake) Attempt(ctx context.Context, desc *topology.GatewayDescriptor, keypair *identity.KeyPair) (*RegistrationResult, error) {
	s := &session{
		desc:  desc,
		state: StateInit,
	}
	if desc == nil {
		return nil, s.fail(InvalidIdentity, errNoDescriptor)
	}

	gatewayKey, err := identity.Decode(desc.IdentityKey)
	if err != nil {
		h.log.Warningf("Gateway %v announces invalid identity", desc.IdentityKey)
		return nil, s.fail(InvalidIdentity, err)
	}
	s.gatewayKey = gatewayKey
	s.state = StateIdentityValidated

	attemptCtx, cancelFn := context.WithTimeout(ctx, h.timeout)
	defer cancelFn()
	s.deadline, _ = attemptCtx.Deadline()

	h.log.Debugf("Connecting to %v at %v", desc.IdentityKey, desc.ClientListener)
	conn, err := h.connect(attemptCtx, s)
	if err != nil {
		return nil, s.fail(ConnectFailure, err)
	}
	s.conn = conn
	s.state = StateConnected

	key, err := h.register(attemptCtx, s, keypair)
	if err != nil {
		if closeErr := s.close(); closeErr != nil {
			h.log.Debugf("Close after failed registration with %v: %v", desc.IdentityKey, closeErr)
			err = multierr.Append(err, closeErr)
		}
		return nil, s.fail(RegisterFailure, err)
	}
	s.state = StateRegistered

	if err := s.close(); err != nil {
		// The key dies with the session.
		key.Reset()
		return nil, s.fail(CloseFailure, err)
	}
	s.state = StateClosed

	return &RegistrationResult{
		GatewayIdentity: desc.IdentityKey,
		GatewayListener: desc.ClientListener,
		SharedKey:       key,
	}, nil
}

// connect runs Transport.Connect bounded by ctx.  A connection that only
// arrives after ctx expired is closed as soon as it shows up.
func (h *Handshake) connect(ctx context.Context, s *session) (Conn, error) {
	type result struct {
		conn Conn
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		conn, err := h.transport.Connect(ctx, s.desc.ClientListener, s.gatewayKey)
		resultCh <- result{conn, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			if r.conn != nil {
				r.conn.Close()
			}
			return nil, r.err
		}
		return r.conn, nil
	case <-ctx.Done():
		h.log.Debugf("Connect to %v exceeded deadline %v", s.desc.IdentityKey, s.deadline.Format(time.StampMilli))
		go func() {
			if r := <-resultCh; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// register runs Conn.Register bounded by ctx.  If ctx expires first the
// connection is closed to abort the exchange, and register waits for it
// to unwind before returning.
func (h *Handshake) register(ctx context.Context, s *session, keypair *identity.KeyPair) (*SharedKey, error) {
	type result struct {
		key *SharedKey
		err error
	}
	conn := s.conn
	resultCh := make(chan result, 1)
	go func() {
		key, err := conn.Register(ctx, keypair)
		resultCh <- result{key, err}
	}()

	select {
	case r := <-resultCh:
		if r.err == nil && r.key == nil {
			return nil, errNoKey
		}
		if r.err != nil && r.key != nil {
			r.key.Reset()
			r.key = nil
		}
		return r.key, r.err
	case <-ctx.Done():
		h.log.Debugf("Registration with %v exceeded deadline %v", s.desc.IdentityKey, s.deadline.Format(time.StampMilli))
		err := multierr.Append(ctx.Err(), s.close())
		if r := <-resultCh; r.key != nil {
			r.key.Reset()
		}
		return nil, err
	}
}
