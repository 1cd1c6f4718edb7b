// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

// Package topology implements the directory view of the network: the
// snapshot of known mix nodes and gateways, its version filter, and the
// client that fetches it.
package topology

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

// GatewayDescriptor is a gateway as announced to the directory.
type GatewayDescriptor struct {
	// IdentityKey is the base58 encoded identity public key.  A descriptor
	// whose identity does not decode is unusable for registration.
	IdentityKey string `json:"identityKey"`

	// ClientListener is the address clients connect to.
	ClientListener string `json:"clientListener"`

	// MixnetListener is the address mix nodes forward packets to.
	MixnetListener string `json:"mixnetListener"`

	Location  string `json:"location"`
	SphinxKey string `json:"sphinxKey"`

	RegisteredClients uint64 `json:"registeredClients"`

	// LastSeen is in unix nanoseconds.
	LastSeen int64  `json:"lastSeen"`
	Version  string `json:"version"`
}

// MixDescriptor is a mix node as announced to the directory.
type MixDescriptor struct {
	IdentityKey string `json:"identityKey"`
	Host        string `json:"host"`
	Layer       uint64 `json:"layer"`
	Location    string `json:"location"`
	SphinxKey   string `json:"sphinxKey"`
	LastSeen    int64  `json:"lastSeen"`
	Version     string `json:"version"`
}

// Topology is a directory snapshot.  Order is significant: gateways are
// kept in the order the directory listed them.
type Topology struct {
	MixNodes     []*MixDescriptor     `json:"mixNodes"`
	GatewayNodes []*GatewayDescriptor `json:"gatewayNodes"`
}

// Source fetches topology snapshots from a directory service.
type Source interface {
	GetTopology(ctx context.Context, directoryAddress string) (*Topology, error)
}

// Gateways returns the gateways in directory order.  The caller MUST NOT
// modify the returned descriptors.
func (t *Topology) Gateways() []*GatewayDescriptor {
	if t == nil {
		return nil
	}
	return t.GatewayNodes
}

// FilterByVersion returns a new Topology holding only the nodes whose
// version is compatible with version.  Null entries are dropped.
func (t *Topology) FilterByVersion(version string) *Topology {
	out := new(Topology)
	if t == nil {
		return out
	}
	for _, m := range t.MixNodes {
		if m != nil && Compatible(version, m.Version) {
			out.MixNodes = append(out.MixNodes, m)
		}
	}
	for _, g := range t.GatewayNodes {
		if g != nil && Compatible(version, g.Version) {
			out.GatewayNodes = append(out.GatewayNodes, g)
		}
	}
	return out
}

// Compatible reports whether a node running version theirs can talk to a
// client running ours.  Majors must match, and while the major is zero the
// minors must match as well.  Unparsable versions are never compatible.
func Compatible(ours, theirs string) bool {
	a, b := canonical(ours), canonical(theirs)
	if !semver.IsValid(a) || !semver.IsValid(b) {
		return false
	}
	if semver.Major(a) != semver.Major(b) {
		return false
	}
	if semver.Major(a) == "v0" {
		return semver.MajorMinor(a) == semver.MajorMinor(b)
	}
	return true
}

// dropNull removes the null entries a directory may list.  It returns the
// number of entries removed.
func (t *Topology) dropNull() int {
	n := len(t.MixNodes) + len(t.GatewayNodes)
	t.MixNodes = slices.DeleteFunc(t.MixNodes, func(m *MixDescriptor) bool { return m == nil })
	t.GatewayNodes = slices.DeleteFunc(t.GatewayNodes, func(g *GatewayDescriptor) bool { return g == nil })
	return n - len(t.MixNodes) - len(t.GatewayNodes)
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
