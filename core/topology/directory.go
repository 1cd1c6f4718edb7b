// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package topology

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gopkg.in/op/go-logging.v1"
)

const (
	// TopologyPath is the directory endpoint serving the full snapshot.
	TopologyPath = "/api/presence/topology"

	defaultRequestTimeout = 30 * time.Second
	maxTopologySize       = 16 << 20
)

// DirectoryClient is a Source backed by the directory's HTTP API.
type DirectoryClient struct {
	httpClient *http.Client
	log        *logging.Logger
}

// DirectoryConfig configures a DirectoryClient.
type DirectoryConfig struct {
	// RequestTimeout bounds each directory request, 30s if zero.
	RequestTimeout time.Duration

	// Transport overrides the HTTP round tripper, mostly for tests and
	// upstream proxies.
	Transport http.RoundTripper

	// Logger is required.
	Logger *logging.Logger
}

// NewDirectoryClient returns a new DirectoryClient.
func NewDirectoryClient(cfg *DirectoryConfig) *DirectoryClient {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	return &DirectoryClient{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: cfg.Transport,
		},
		log: cfg.Logger,
	}
}

// GetTopology fetches the current snapshot from directoryAddress.
func (c *DirectoryClient) GetTopology(ctx context.Context, directoryAddress string) (*Topology, error) {
	url := strings.TrimRight(directoryAddress, "/") + TopologyPath
	c.log.Debugf("Fetching topology from %v", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("topology: bad directory address: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("topology: directory returned %v", resp.Status)
	}

	t := new(Topology)
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxTopologySize))
	if err := dec.Decode(t); err != nil {
		return nil, fmt.Errorf("topology: failed to decode snapshot: %w", err)
	}
	if n := t.dropNull(); n != 0 {
		c.log.Warningf("Directory listed %d null nodes, ignoring them", n)
	}
	c.log.Debugf("Topology has %d mix nodes and %d gateways", len(t.MixNodes), len(t.GatewayNodes))
	return t, nil
}
