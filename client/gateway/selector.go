// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

// Package gateway selects and registers with a gateway from the directory
// topology.
//
// Candidates are tried one at a time in the order the directory lists
// them.  Each attempt is bounded by its own timeout and leaves no
// connection open behind it, so at most one transport is ever open.  The
// first gateway to complete the handshake wins.
package gateway

import (
	"context"
	"errors"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/bootstrap/core/identity"
	"github.com/katzenpost/bootstrap/core/topology"
)

// Observer is notified of every candidate attempt.  err is nil on
// success and a *HandshakeError otherwise.
type Observer interface {
	OnAttempt(desc *topology.GatewayDescriptor, elapsed time.Duration, err error)
}

// SelectorConfig is the configuration of a Selector.
type SelectorConfig struct {
	// Source is the directory the topology is fetched from.
	Source topology.Source

	// Transport is used for the registration handshakes.
	Transport Transport

	// AttemptTimeout bounds each candidate, DefaultAttemptTimeout if zero.
	AttemptTimeout time.Duration

	// Observer is optional.
	Observer Observer

	// Logger is required.
	Logger *logging.Logger
}

// Selector picks the first gateway that completes registration.
type Selector struct {
	source    topology.Source
	handshake *Handshake
	observer  Observer
	log       *logging.Logger
}

// NewSelector returns a new Selector.
func NewSelector(cfg *SelectorConfig) *Selector {
	return &Selector{
		source:    cfg.Source,
		handshake: NewHandshake(cfg.Transport, cfg.AttemptTimeout, cfg.Logger),
		observer:  cfg.Observer,
		log:       cfg.Logger,
	}
}

// Select fetches the topology from directoryAddress, keeps the gateways
// compatible with clientVersion and registers with the first one that
// accepts keypair.
//
// A directory failure is returned as a *FetchError.  If no gateway could
// be registered with, the error satisfies errors.Is(err,
// ErrNoGatewayAvailable).  Cancelling ctx stops the search and returns
// ctx.Err().
func (s *Selector) Select(ctx context.Context, directoryAddress string, keypair *identity.KeyPair, clientVersion string) (*RegistrationResult, error) {
	topo, err := s.source.GetTopology(ctx, directoryAddress)
	if err != nil {
		return nil, &FetchError{Directory: directoryAddress, Err: err}
	}

	gateways := topo.FilterByVersion(clientVersion).Gateways()
	if len(gateways) == 0 {
		s.log.Errorf("No gateways compatible with version %v at %v", clientVersion, directoryAddress)
		return nil, &NoGatewayError{Directory: directoryAddress}
	}
	s.log.Debugf("Trying %d candidate gateways", len(gateways))

	failures := make([]*HandshakeError, 0, len(gateways))
	for i, desc := range gateways {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		result, err := s.handshake.Attempt(ctx, desc, keypair)
		s.observe(desc, time.Since(start), err)
		if err == nil {
			s.log.Noticef("Registered with gateway %v (%d/%d)", desc.IdentityKey, i+1, len(gateways))
			return result, nil
		}

		s.log.Warningf("Gateway %d/%d rejected: %v", i+1, len(gateways), err)
		var hsErr *HandshakeError
		if errors.As(err, &hsErr) {
			failures = append(failures, hsErr)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return nil, &NoGatewayError{
		Directory: directoryAddress,
		Failures:  failures,
	}
}

func (s *Selector) observe(desc *topology.GatewayDescriptor, elapsed time.Duration, err error) {
	if s.observer != nil {
		s.observer.OnAttempt(desc, elapsed, err)
	}
}
