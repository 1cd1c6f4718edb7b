// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

// Gateway bootstrap tool for mixnet clients.
package main

import (
	"github.com/spf13/cobra"

	"github.com/katzenpost/bootstrap/common"
)

// newRootCommand creates the root cobra command
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Provision a mixnet client with a gateway",
		Long: `bootstrap prepares a new mixnet client. It generates the client identity,
fetches the network topology from a directory server and registers with the
first compatible gateway that completes the registration handshake. The chosen
gateway, the shared key established with it and the client settings are saved
so that later runs do not need to register again.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newInitCommand())
	return cmd
}

func main() {
	rootCmd := newRootCommand()
	common.ExecuteWithFang(rootCmd)
}
