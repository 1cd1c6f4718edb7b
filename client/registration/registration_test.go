// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package registration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/katzenpost/hpqc/rand"
	"github.com/stretchr/testify/require"
	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/bootstrap/client/gateway"
	"github.com/katzenpost/bootstrap/core/identity"
	"github.com/katzenpost/bootstrap/core/log"
	"github.com/katzenpost/bootstrap/core/topology"
)

func newTestLogger(t *testing.T) *logging.Logger {
	backend, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	return backend.GetLogger("registration/test")
}

func newTestKeyPair(t *testing.T) *identity.KeyPair {
	kp, err := identity.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	return kp
}

type testGateway struct {
	sync.Mutex

	identity *identity.KeyPair
	server   *httptest.Server
	keys     map[string]*gateway.SharedKey
	reject   error
}

func newTestGateway(t *testing.T) *testGateway {
	g := &testGateway{
		identity: newTestKeyPair(t),
		keys:     make(map[string]*gateway.SharedKey),
	}
	g.server = httptest.NewServer(NewResponder(&ResponderConfig{
		Identity: g.identity,
		OnRegister: func(client string, key *gateway.SharedKey) error {
			g.Lock()
			defer g.Unlock()
			if g.reject != nil {
				return g.reject
			}
			g.keys[client] = key
			return nil
		},
		Logger: newTestLogger(t),
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *testGateway) setReject(err error) {
	g.Lock()
	defer g.Unlock()
	g.reject = err
}

func (g *testGateway) listener() string {
	return "ws://" + strings.TrimPrefix(g.server.URL, "http://")
}

func (g *testGateway) keyFor(client string) *gateway.SharedKey {
	g.Lock()
	defer g.Unlock()
	return g.keys[client]
}

func TestRegisterRoundTrip(t *testing.T) {
	require := require.New(t)

	g := newTestGateway(t)
	client := newTestKeyPair(t)
	transport := NewTransport(&TransportConfig{Logger: newTestLogger(t)})

	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()

	conn, err := transport.Connect(ctx, g.listener(), g.identity.PublicKey())
	require.NoError(err)
	key, err := conn.Register(ctx, client)
	require.NoError(err)
	require.NoError(conn.Close())

	require.True(key.Equal(g.keyFor(client.Identity())))
}

func TestRegisterWrongGatewayIdentity(t *testing.T) {
	require := require.New(t)

	g := newTestGateway(t)
	impostor := newTestKeyPair(t)
	transport := NewTransport(&TransportConfig{Logger: newTestLogger(t)})

	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()

	conn, err := transport.Connect(ctx, g.listener(), impostor.PublicKey())
	require.NoError(err)
	defer conn.Close()
	_, err = conn.Register(ctx, newTestKeyPair(t))
	require.ErrorIs(err, errBadSignature)
}

func TestRegisterRejected(t *testing.T) {
	require := require.New(t)

	g := newTestGateway(t)
	g.setReject(errors.New("gateway full"))
	transport := NewTransport(&TransportConfig{Logger: newTestLogger(t)})

	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()

	conn, err := transport.Connect(ctx, g.listener(), g.identity.PublicKey())
	require.NoError(err)
	defer conn.Close()
	_, err = conn.Register(ctx, newTestKeyPair(t))
	require.Error(err)
	require.Contains(err.Error(), "gateway full")
}

func TestConnectErrors(t *testing.T) {
	require := require.New(t)

	transport := NewTransport(&TransportConfig{Logger: newTestLogger(t)})
	pk := newTestKeyPair(t).PublicKey()

	_, err := transport.Connect(context.Background(), "http://127.0.0.1:1", pk)
	require.Error(err)
	_, err = transport.Connect(context.Background(), "::not a url", pk)
	require.Error(err)

	ctx, cancelFn := context.WithTimeout(context.Background(), time.Second)
	defer cancelFn()
	_, err = transport.Connect(ctx, "ws://127.0.0.1:1", pk)
	require.Error(err)
}

func TestRegisterHonorsDeadline(t *testing.T) {
	require := require.New(t)

	// Accepts the websocket but never answers.
	silent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var upgrader websocket.Upgrader
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}))
	defer silent.Close()

	transport := NewTransport(&TransportConfig{Logger: newTestLogger(t)})
	ctx, cancelFn := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancelFn()

	conn, err := transport.Connect(ctx, "ws://"+strings.TrimPrefix(silent.URL, "http://"), newTestKeyPair(t).PublicKey())
	require.NoError(err)
	start := time.Now()
	_, err = conn.Register(ctx, newTestKeyPair(t))
	require.Error(err)
	require.Less(time.Since(start), 2*time.Second)
	conn.Close()
}

func TestSelectWithWebsocketGateways(t *testing.T) {
	require := require.New(t)

	bad := newTestGateway(t)
	bad.setReject(errors.New("not accepting clients"))
	good := newTestGateway(t)

	topo := &topology.Topology{
		GatewayNodes: []*topology.GatewayDescriptor{
			{IdentityKey: "not-base58", ClientListener: "ws://127.0.0.1:1", Version: "0.8.0"},
			{IdentityKey: bad.identity.Identity(), ClientListener: bad.listener(), Version: "0.8.0"},
			{IdentityKey: good.identity.Identity(), ClientListener: good.listener(), Version: "0.8.0"},
		},
	}
	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(topo)
	}))
	defer directory.Close()

	logger := newTestLogger(t)
	selector := gateway.NewSelector(&gateway.SelectorConfig{
		Source:    topology.NewDirectoryClient(&topology.DirectoryConfig{Logger: logger}),
		Transport: NewTransport(&TransportConfig{Logger: logger}),
		Logger:    logger,
	})

	client := newTestKeyPair(t)
	result, err := selector.Select(context.Background(), directory.URL, client, "0.8.0")
	require.NoError(err)
	require.Equal(good.identity.Identity(), result.GatewayIdentity)
	require.Equal(good.listener(), result.GatewayListener)
	require.True(result.SharedKey.Equal(good.keyFor(client.Identity())))
}
