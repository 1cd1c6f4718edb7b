// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package gateway

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/katzenpost/hpqc/rand"
	"github.com/katzenpost/hpqc/sign/ed25519"
	"github.com/stretchr/testify/require"
	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/bootstrap/core/identity"
	"github.com/katzenpost/bootstrap/core/log"
	"github.com/katzenpost/bootstrap/core/topology"
)

const testVersion = "0.8.0"

var (
	errFakeConnect  = errors.New("fake: connection refused")
	errFakeRegister = errors.New("fake: gateway rejected registration")
	errFakeClose    = errors.New("fake: close failed")
	errFakeClosed   = errors.New("fake: use of closed connection")
)

func newTestLogger(t *testing.T) *logging.Logger {
	backend, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	return backend.GetLogger("gateway/test")
}

func newTestKeyPair(t *testing.T) *identity.KeyPair {
	kp, err := identity.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	return kp
}

func newValidIdentity(t *testing.T) string {
	return newTestKeyPair(t).Identity()
}

func gw(id, listener string) *topology.GatewayDescriptor {
	return &topology.GatewayDescriptor{
		IdentityKey:    id,
		ClientListener: listener,
		Version:        testVersion,
	}
}

type fakeSource struct {
	topo  *topology.Topology
	err   error
	calls int
}

func (s *fakeSource) GetTopology(ctx context.Context, directoryAddress string) (*topology.Topology, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.topo, nil
}

// behavior programs how a fake gateway listening at a given address fails.
type behavior struct {
	connectErr   error
	connectBlock bool
	// connectStall delays Connect, ignoring the context.
	connectStall time.Duration
	registerErr  error
	// registerHang blocks Register until the connection is closed,
	// ignoring the context.
	registerHang bool
	closeErr     error
}

type fakeTransport struct {
	sync.Mutex

	behaviors map[string]behavior
	connects  []string
	conns     []*fakeConn
	open      int
	maxOpen   int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{behaviors: make(map[string]behavior)}
}

func (t *fakeTransport) Connect(ctx context.Context, listener string, gatewayKey *ed25519.PublicKey) (Conn, error) {
	t.Lock()
	t.connects = append(t.connects, listener)
	b := t.behaviors[listener]
	t.Unlock()

	if b.connectBlock {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if b.connectStall > 0 {
		time.Sleep(b.connectStall)
	}
	if b.connectErr != nil {
		return nil, b.connectErr
	}

	c := &fakeConn{
		transport: t,
		listener:  listener,
		b:         b,
		closeCh:   make(chan struct{}),
	}
	t.Lock()
	defer t.Unlock()
	t.conns = append(t.conns, c)
	t.open++
	if t.open > t.maxOpen {
		t.maxOpen = t.open
	}
	return c, nil
}

func (t *fakeTransport) connectCount() int {
	t.Lock()
	defer t.Unlock()
	return len(t.connects)
}

// connectedAndClosed reports whether n connections were opened and all of
// them have been closed again.
func (t *fakeTransport) connectedAndClosed(n int) bool {
	t.Lock()
	defer t.Unlock()
	return len(t.conns) == n && t.open == 0
}

func (t *fakeTransport) requireAllClosed(require *require.Assertions) {
	t.Lock()
	defer t.Unlock()
	require.Zero(t.open)
	for _, c := range t.conns {
		require.True(c.closed, "connection to %v left open", c.listener)
	}
}

type fakeConn struct {
	transport *fakeTransport
	listener  string
	b         behavior

	closeCh    chan struct{}
	closed     bool
	closeCalls int
	key        *SharedKey
}

func (c *fakeConn) Register(ctx context.Context, keypair *identity.KeyPair) (*SharedKey, error) {
	if c.b.registerHang {
		<-c.closeCh
		return nil, errFakeClosed
	}
	if c.b.registerErr != nil {
		return nil, c.b.registerErr
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	k, err := NewSharedKey(bytes.Repeat([]byte{c.listener[len(c.listener)-1]}, SharedKeySize))
	if err != nil {
		return nil, err
	}
	c.key = k
	return k, nil
}

func (c *fakeConn) Close() error {
	c.transport.Lock()
	defer c.transport.Unlock()
	c.closeCalls++
	if !c.closed {
		c.closed = true
		close(c.closeCh)
		c.transport.open--
	}
	return c.b.closeErr
}

type recordingObserver struct {
	sync.Mutex
	attempts []string
	errs     []error
}

func (o *recordingObserver) OnAttempt(desc *topology.GatewayDescriptor, _ time.Duration, err error) {
	o.Lock()
	defer o.Unlock()
	o.attempts = append(o.attempts, desc.ClientListener)
	o.errs = append(o.errs, err)
}
