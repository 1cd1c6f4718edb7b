// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

// Package config implements the configuration for the bootstrapped client.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/katzenpost/bootstrap/client/constants"
	"github.com/katzenpost/bootstrap/client/gateway"
	"github.com/katzenpost/bootstrap/core/identity"
	"github.com/katzenpost/bootstrap/internal/proxy"
)

const (
	defaultLogLevel = "NOTICE"

	defaultLoopCoverTrafficAverageDelayMs = 1000
	defaultMessageSendingAverageDelayMs   = 100
	defaultAverageAckDelayMs              = 100

	fastLoopCoverTrafficAverageDelayMs = 10
	fastMessageSendingAverageDelayMs   = 5
	fastAverageAckDelayMs              = 5
)

var errNoID = errors.New("config: Client: ID is not set")

// Client is the client identity and directory configuration.
type Client struct {
	// ID is the local name of this client.  It selects the directory the
	// configuration and keys are stored under.
	ID string

	// DirectoryServer is the base URL of the directory service.
	DirectoryServer string

	// Version is the system version used to filter gateways.
	Version string
}

func (cCfg *Client) validate() error {
	if cCfg.ID == "" {
		return errNoID
	}
	if strings.ContainsAny(cCfg.ID, `/\`) || cCfg.ID == "." || cCfg.ID == ".." {
		return fmt.Errorf("config: Client: ID '%v' is not a valid directory name", cCfg.ID)
	}
	if cCfg.DirectoryServer == "" {
		cCfg.DirectoryServer = constants.DefaultDirectoryServer
	}
	if cCfg.Version == "" {
		cCfg.Version = constants.ClientVersion
	}
	return nil
}

// Gateway is the gateway the client is bound to.
type Gateway struct {
	// ID is the base58 identity key of the gateway.
	ID string

	// Listener is the gateway's client listener address.
	Listener string

	// SharedKey is the base58 encoded key established during
	// registration, if any.
	SharedKey string
}

func (gCfg *Gateway) validate() error {
	if gCfg.ID != "" {
		if _, err := identity.Decode(gCfg.ID); err != nil {
			return fmt.Errorf("config: Gateway: %v", err)
		}
	}
	if gCfg.SharedKey != "" {
		k, err := gateway.SharedKeyFromBase58(gCfg.SharedKey)
		if err != nil {
			return fmt.Errorf("config: Gateway: %v", err)
		}
		k.Reset()
	}
	return nil
}

// Socket is the local client socket configuration.
type Socket struct {
	// Disable prevents the client from opening its socket.
	Disable bool

	// Port is the port the socket listens on.
	Port uint16
}

func (sCfg *Socket) fixup() {
	if sCfg.Port == 0 {
		sCfg.Port = constants.DefaultSocketPort
	}
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	lvl := strings.ToUpper(lCfg.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
	lCfg.Level = lvl // Force uppercase.
	return nil
}

// Debug is the debug configuration.
type Debug struct {
	// AttemptTimeoutMs bounds a single gateway registration attempt.
	AttemptTimeoutMs int

	// LoopCoverTrafficAverageDelayMs is the average delay between loop
	// cover packets.
	LoopCoverTrafficAverageDelayMs int

	// MessageSendingAverageDelayMs is the average delay between sent
	// packets.
	MessageSendingAverageDelayMs int

	// AverageAckDelayMs is the average delay of acknowledgements.
	AverageAckDelayMs int
}

func (d *Debug) fixup() {
	if d.AttemptTimeoutMs == 0 {
		d.AttemptTimeoutMs = int(constants.GatewayAttemptTimeout / time.Millisecond)
	}
	if d.LoopCoverTrafficAverageDelayMs == 0 {
		d.LoopCoverTrafficAverageDelayMs = defaultLoopCoverTrafficAverageDelayMs
	}
	if d.MessageSendingAverageDelayMs == 0 {
		d.MessageSendingAverageDelayMs = defaultMessageSendingAverageDelayMs
	}
	if d.AverageAckDelayMs == 0 {
		d.AverageAckDelayMs = defaultAverageAckDelayMs
	}
}

func (d *Debug) validate() error {
	for name, v := range map[string]int{
		"AttemptTimeoutMs":               d.AttemptTimeoutMs,
		"LoopCoverTrafficAverageDelayMs": d.LoopCoverTrafficAverageDelayMs,
		"MessageSendingAverageDelayMs":   d.MessageSendingAverageDelayMs,
		"AverageAckDelayMs":              d.AverageAckDelayMs,
	} {
		if v < 0 {
			return fmt.Errorf("config: Debug: %v is negative", name)
		}
	}
	return nil
}

// AttemptTimeout returns the registration attempt timeout.
func (d *Debug) AttemptTimeout() time.Duration {
	return time.Duration(d.AttemptTimeoutMs) * time.Millisecond
}

// UpstreamProxy is the outgoing connection proxy configuration.
type UpstreamProxy struct {
	// Type is the proxy type (Eg: "none"," socks5", "tor+socks5").
	Type string

	// Network is the proxy address' network (`unix`, `tcp`).
	Network string

	// Address is the proxy's address.
	Address string

	// User is the optional proxy username.
	User string

	// Password is the optional proxy password.
	Password string
}

func (uCfg *UpstreamProxy) toProxyConfig() (*proxy.Config, error) {
	cfg := new(proxy.Config)
	if uCfg != nil {
		cfg.Type = uCfg.Type
		cfg.Network = uCfg.Network
		cfg.Address = uCfg.Address
		cfg.User = uCfg.User
		cfg.Password = uCfg.Password
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Config is the top level client configuration.
type Config struct {
	Client        *Client
	Gateway       *Gateway
	Socket        *Socket
	UpstreamProxy *UpstreamProxy
	Logging       *Logging
	Debug         *Debug

	upstreamProxy *proxy.Config
}

// UpstreamProxyConfig returns the validated upstream proxy.  It is only
// set once FixupAndValidate succeeded.
func (c *Config) UpstreamProxyConfig() *proxy.Config {
	return c.upstreamProxy
}

// New returns a configuration for the client id with every default
// applied.  The result still needs FixupAndValidate once overrides are
// in place.
func New(id string) *Config {
	cfg := &Config{
		Client: &Client{
			ID:              id,
			DirectoryServer: constants.DefaultDirectoryServer,
			Version:         constants.ClientVersion,
		},
		Gateway: new(Gateway),
		Socket:  &Socket{Port: constants.DefaultSocketPort},
		Logging: &Logging{Level: defaultLogLevel},
		Debug:   new(Debug),
	}
	cfg.Debug.fixup()
	return cfg
}

// WithGatewayID binds the client to the gateway identified by id.
func (c *Config) WithGatewayID(id string) *Config {
	c.Gateway.ID = id
	return c
}

// WithGatewayListener sets the gateway's client listener.
func (c *Config) WithGatewayListener(listener string) *Config {
	c.Gateway.Listener = listener
	return c
}

// WithGatewaySharedKey stores the base58 export of key.
func (c *Config) WithGatewaySharedKey(key *gateway.SharedKey) *Config {
	c.Gateway.SharedKey = key.ToBase58()
	return c
}

// WithRegistration binds the client to the gateway of a successful
// registration.
func (c *Config) WithRegistration(r *gateway.RegistrationResult) *Config {
	return c.WithGatewayID(r.GatewayIdentity).
		WithGatewayListener(r.GatewayListener).
		WithGatewaySharedKey(r.SharedKey)
}

// WithDirectoryServer overrides the directory server.
func (c *Config) WithDirectoryServer(address string) *Config {
	c.Client.DirectoryServer = address
	return c
}

// WithSocket overrides the local socket settings.
func (c *Config) WithSocket(disable bool, port uint16) *Config {
	c.Socket.Disable = disable
	if port != 0 {
		c.Socket.Port = port
	}
	return c
}

// WithUpstreamProxy routes outgoing connections through a proxy.
func (c *Config) WithUpstreamProxy(proxyType, address string) *Config {
	network := "tcp"
	if strings.HasPrefix(address, "/") {
		network = "unix"
	}
	c.UpstreamProxy = &UpstreamProxy{
		Type:    proxyType,
		Network: network,
		Address: address,
	}
	return c
}

// SetHighDefaultTrafficVolume raises the default traffic rates so that a
// test network does not need hand edited configuration.
func (c *Config) SetHighDefaultTrafficVolume() *Config {
	c.Debug.LoopCoverTrafficAverageDelayMs = fastLoopCoverTrafficAverageDelayMs
	c.Debug.MessageSendingAverageDelayMs = fastMessageSendingAverageDelayMs
	c.Debug.AverageAckDelayMs = fastAverageAckDelayMs
	return c
}

// GatewaySharedKey decodes the stored shared key, nil if there is none.
func (c *Config) GatewaySharedKey() (*gateway.SharedKey, error) {
	if c.Gateway.SharedKey == "" {
		return nil, nil
	}
	return gateway.SharedKeyFromBase58(c.Gateway.SharedKey)
}

// FixupAndValidate applies defaults to config entries and validates the
// configuration sections.
func (c *Config) FixupAndValidate() error {
	// Handle missing sections if possible.
	if c.Client == nil {
		return errNoID
	}
	if c.Gateway == nil {
		c.Gateway = new(Gateway)
	}
	if c.Socket == nil {
		c.Socket = new(Socket)
	}
	if c.Logging == nil {
		c.Logging = &Logging{Level: defaultLogLevel}
	}
	if c.Debug == nil {
		c.Debug = new(Debug)
	}
	c.Socket.fixup()
	c.Debug.fixup()

	// Validate/fixup the various sections.
	if err := c.Client.validate(); err != nil {
		return err
	}
	if err := c.Gateway.validate(); err != nil {
		return err
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	uCfg, err := c.UpstreamProxy.toProxyConfig()
	if err != nil {
		return err
	}
	c.upstreamProxy = uCfg
	return c.Debug.validate()
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses, and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

// Marshal serializes the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveToFile writes the configuration to f, creating parent directories.
// The file holds the gateway shared key and is only readable by the owner.
func (c *Config) SaveToFile(f string) error {
	b, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f), 0700); err != nil {
		return err
	}
	return os.WriteFile(f, b, 0600)
}
