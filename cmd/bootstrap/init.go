// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/katzenpost/hpqc/rand"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/katzenpost/bootstrap/client/config"
	"github.com/katzenpost/bootstrap/client/constants"
	"github.com/katzenpost/bootstrap/client/gateway"
	"github.com/katzenpost/bootstrap/client/keystore"
	"github.com/katzenpost/bootstrap/client/registration"
	"github.com/katzenpost/bootstrap/common"
	"github.com/katzenpost/bootstrap/core/identity"
	"github.com/katzenpost/bootstrap/core/log"
	"github.com/katzenpost/bootstrap/core/topology"
	"github.com/katzenpost/bootstrap/internal/instrument"
)

// Exit codes of the init command.
const (
	exitNoGateway    = 3
	exitNotFound     = 4
	exitDirectory    = 5
	exitKeyIsPresent = 6
)

// initOptions holds the init command line.
type initOptions struct {
	ID              string
	Gateway         string
	Directory       string
	DisableSocket   bool
	Port            uint16
	FastMode        bool
	Root            string
	LogLevel        string
	LogFile         string
	ProxyType       string
	ProxyAddress    string
	MetricsTextfile string
	Force           bool
}

func newInitCommand() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialise a client. Do this first!",
		Long: `init generates the client identity keypair and binds the client to a gateway.

Without --gateway the gateways announced by the directory server are tried in
order and the first one that completes registration is chosen. With --gateway
the named gateway is used and its listener address is looked up in the
directory.`,
		Example: `
  # Register with any compatible gateway
  bootstrap init --id alice --directory http://directory.example:8080

  # Pin a gateway by its identity key
  bootstrap init --id alice --gateway 5nQ2...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancelFn := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancelFn()
			return runInit(ctx, cmd.OutOrStdout(), &opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ID, "id", "", "id of the client we want to create config for")
	flags.StringVar(&opts.Gateway, "gateway", "", "identity of the gateway to connect to, chosen from the directory if empty")
	flags.StringVar(&opts.Directory, "directory", "", "address of the directory server the client gets the topology from")
	flags.BoolVar(&opts.DisableSocket, "disable-socket", false, "do not start the client socket")
	flags.Uint16VarP(&opts.Port, "port", "p", 0, "port for the client socket to listen on in all subsequent runs")
	flags.BoolVar(&opts.FastMode, "fastmode", false, "raise the default traffic rates")
	flags.StringVar(&opts.Root, "root", "", "directory clients are stored under (default ~/.katzenpost)")
	flags.StringVar(&opts.LogLevel, "log-level", "NOTICE", "log level: ERROR, WARNING, NOTICE, INFO or DEBUG")
	flags.StringVar(&opts.LogFile, "log-file", "", "log file, stdout if empty")
	flags.StringVar(&opts.ProxyType, "proxy-type", "", "upstream proxy type: none, socks5 or tor+socks5")
	flags.StringVar(&opts.ProxyAddress, "proxy-address", "", "upstream proxy address, ip:port or a unix socket path")
	flags.StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write selection metrics to this node exporter textfile")
	flags.BoolVar(&opts.Force, "force", false, "replace an existing identity keypair")

	cmd.MarkFlagRequired("id")
	flags.MarkHidden("fastmode")

	return cmd
}

func runInit(ctx context.Context, w io.Writer, opts *initOptions) (err error) {
	fmt.Fprintln(w, "Initialising client...")

	cfg := config.New(opts.ID).WithSocket(opts.DisableSocket, opts.Port)
	if opts.Directory != "" {
		cfg.WithDirectoryServer(opts.Directory)
	}
	if opts.Gateway != "" {
		cfg.WithGatewayID(opts.Gateway)
	}
	if opts.FastMode {
		cfg.SetHighDefaultTrafficVolume()
	}
	if opts.ProxyType != "" {
		cfg.WithUpstreamProxy(opts.ProxyType, opts.ProxyAddress)
	}
	cfg.Logging.Level = opts.LogLevel
	cfg.Logging.File = opts.LogFile
	if err := cfg.FixupAndValidate(); err != nil {
		return err
	}

	logBackend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %v", err)
	}
	defer func() {
		err = multierr.Append(err, logBackend.Close())
	}()
	logger := logBackend.GetLogger("bootstrap")

	paths, err := config.NewPathfinder(opts.Root, cfg.Client.ID)
	if err != nil {
		return err
	}
	store := keystore.New(paths.DataDir(), opts.Force)
	if found, err := store.Exists(); err != nil {
		return err
	} else if found && !opts.Force {
		return &common.ExitError{
			Code: exitKeyIsPresent,
			Err:  fmt.Errorf("client %v is already initialised at %v, use --force to replace it", cfg.Client.ID, paths.ClientDir()),
		}
	}

	keypair, err := identity.NewKeyPair(rand.Reader)
	if err != nil {
		return err
	}
	defer keypair.Reset()
	logger.Infof("Generated client identity %v", keypair.Identity())

	metrics := instrument.New()
	if opts.MetricsTextfile != "" {
		defer func() {
			if werr := metrics.WriteTextfile(opts.MetricsTextfile); werr != nil {
				logger.Warningf("Failed to write metrics: %v", werr)
			}
		}()
	}

	upstream := cfg.UpstreamProxyConfig()
	directory := topology.NewDirectoryClient(&topology.DirectoryConfig{
		RequestTimeout: constants.DirectoryRequestTimeout,
		Transport:      upstream.ToHTTPTransport("directory"),
		Logger:         logBackend.GetLogger("topology"),
	})

	// No gateway chosen, register with the first one that accepts us.
	if cfg.Gateway.ID == "" {
		selector := gateway.NewSelector(&gateway.SelectorConfig{
			Source: directory,
			Transport: registration.NewTransport(&registration.TransportConfig{
				DialContextFn: upstream.ToDialContext("registration"),
				Logger:        logBackend.GetLogger("registration"),
			}),
			AttemptTimeout: cfg.Debug.AttemptTimeout(),
			Observer:       metrics,
			Logger:         logBackend.GetLogger("gateway/selector"),
		})
		result, err := selector.Select(ctx, cfg.Client.DirectoryServer, keypair, cfg.Client.Version)
		metrics.Selection(err)
		if err != nil {
			return exitError(err, cfg.Client.DirectoryServer)
		}
		cfg.WithRegistration(result)
		result.SharedKey.Reset()
	}

	// The gateway was chosen but its listener is unknown.
	if cfg.Gateway.Listener == "" {
		listener, err := gateway.Resolve(ctx, directory, cfg.Client.DirectoryServer, cfg.Gateway.ID)
		metrics.Selection(err)
		if err != nil {
			return exitError(err, cfg.Client.DirectoryServer)
		}
		cfg.WithGatewayListener(listener)
	}

	// The keys mark a client as initialised, so they go last.
	if err := cfg.SaveToFile(paths.ConfigFile()); err != nil {
		return fmt.Errorf("failed to save the config file: %v", err)
	}
	fmt.Fprintf(w, "Saved configuration file to %v\n", paths.ConfigFile())

	if err := store.WriteIdentityKeyPair(keypair); err != nil {
		if rerr := os.Remove(paths.ConfigFile()); rerr != nil {
			logger.Warningf("Failed to remove config file: %v", rerr)
		}
		return fmt.Errorf("failed to save identity keys: %v", err)
	}
	fmt.Fprintln(w, "Saved mixnet identity keypair")

	fmt.Fprintf(w, "Unless overridden we will be talking to the following gateway: %v\n", cfg.Gateway.ID)
	if cfg.Gateway.SharedKey != "" {
		fmt.Fprintln(w, "A shared key with the gateway is stored in the configuration")
	}
	fmt.Fprintln(w, "Client configuration completed.")
	return nil
}

// exitError turns a terminal selection failure into a user facing error.
func exitError(err error, directory string) error {
	var fetchErr *gateway.FetchError
	switch {
	case errors.As(err, &fetchErr):
		return &common.ExitError{
			Code: exitDirectory,
			Err:  fmt.Errorf("could not get the topology from directory server %v: %v", directory, fetchErr.Err),
		}
	case errors.Is(err, gateway.ErrNoGatewayAvailable):
		return &common.ExitError{
			Code: exitNoGateway,
			Err: fmt.Errorf("currently there are no valid gateways available on the network (%v), "+
				"please run init again later or change your directory server", directory),
		}
	case errors.Is(err, gateway.ErrGatewayNotFound):
		return &common.ExitError{
			Code: exitNotFound,
			Err:  errors.New("no gateway with provided id exists"),
		}
	default:
		return err
	}
}
