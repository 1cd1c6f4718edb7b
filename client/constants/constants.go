// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package constants

import (
	"time"
)

const (
	// ClientVersion is the system version the client announces and
	// filters gateways against.
	ClientVersion = "0.8.0"

	// DefaultDirectoryServer is used when no directory is configured.
	DefaultDirectoryServer = "http://127.0.0.1:8080"

	// DefaultSocketPort is the port of the local client socket.
	DefaultSocketPort = 1977

	// GatewayAttemptTimeout bounds a single gateway registration attempt.
	GatewayAttemptTimeout = 1500 * time.Millisecond

	// DirectoryRequestTimeout bounds a directory request.
	DirectoryRequestTimeout = 30 * time.Second
)
