// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package gateway

import (
	"context"
	"fmt"

	"github.com/katzenpost/bootstrap/core/topology"
)

// Resolve returns the current client listener of the pinned gateway.  No
// handshake is performed and the topology is not version filtered.
func Resolve(ctx context.Context, source topology.Source, directoryAddress, pinnedIdentity string) (string, error) {
	topo, err := source.GetTopology(ctx, directoryAddress)
	if err != nil {
		return "", &FetchError{Directory: directoryAddress, Err: err}
	}
	for _, g := range topo.Gateways() {
		if g != nil && g.IdentityKey == pinnedIdentity {
			return g.ClientListener, nil
		}
	}
	return "", fmt.Errorf("%w: %v", ErrGatewayNotFound, pinnedIdentity)
}
