// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katzenpost/bootstrap/core/topology"
)

func TestResolve(t *testing.T) {
	require := require.New(t)

	old := gw("pinned", "ws://old:9000")
	old.Version = "0.1.0"
	source := &fakeSource{topo: &topology.Topology{GatewayNodes: []*topology.GatewayDescriptor{
		gw("other", "ws://other:9000"),
		old,
		gw("pinned", "ws://later:9000"),
	}}}

	// Not version filtered, first match wins.
	listener, err := Resolve(context.Background(), source, testDirectory, "pinned")
	require.NoError(err)
	require.Equal("ws://old:9000", listener)

	_, err = Resolve(context.Background(), source, testDirectory, "missing")
	require.ErrorIs(err, ErrGatewayNotFound)
	require.False(errors.Is(err, ErrNoGatewayAvailable))
}

func TestResolveEmptyTopology(t *testing.T) {
	source := &fakeSource{topo: &topology.Topology{}}
	_, err := Resolve(context.Background(), source, testDirectory, "pinned")
	require.ErrorIs(t, err, ErrGatewayNotFound)
}

func TestResolveFetchError(t *testing.T) {
	require := require.New(t)

	source := &fakeSource{err: errors.New("no route to host")}
	_, err := Resolve(context.Background(), source, testDirectory, "pinned")
	var fetchErr *FetchError
	require.ErrorAs(err, &fetchErr)
	require.False(errors.Is(err, ErrGatewayNotFound))
}

func TestResolveSkipsNullEntries(t *testing.T) {
	require := require.New(t)

	source := &fakeSource{topo: &topology.Topology{GatewayNodes: []*topology.GatewayDescriptor{
		nil,
		gw("pinned", "ws://pinned:9000"),
	}}}
	var (
		listener string
		err      error
	)
	require.NotPanics(func() {
		listener, err = Resolve(context.Background(), source, testDirectory, "pinned")
	})
	require.NoError(err)
	require.Equal("ws://pinned:9000", listener)
}
