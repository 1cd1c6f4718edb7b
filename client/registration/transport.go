// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

// Package registration implements the gateway registration exchange over
// websockets.
//
// The client sends a signed ephemeral X25519 key, the gateway answers with
// its own ephemeral key and a signature over the transcript made with its
// identity key.  Both sides derive the shared key with HKDF-SHA256.  The
// connection is closed right after; it never carries traffic.
package registration

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/katzenpost/hpqc/rand"
	"github.com/katzenpost/hpqc/sign/ed25519"
	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/bootstrap/client/gateway"
	"github.com/katzenpost/bootstrap/core/identity"
)

const closeTimeout = 250 * time.Millisecond

// TransportConfig is the configuration of a Transport.
type TransportConfig struct {
	// DialContextFn is the optional alternative Dialer.DialContext
	// function used for outgoing connections.
	DialContextFn func(ctx context.Context, network, address string) (net.Conn, error)

	// Logger is required.
	Logger *logging.Logger
}

// Transport dials gateway client listeners.  It implements
// gateway.Transport.
type Transport struct {
	dialer *websocket.Dialer
	log    *logging.Logger
}

// NewTransport returns a new Transport.
func NewTransport(cfg *TransportConfig) *Transport {
	return &Transport{
		dialer: &websocket.Dialer{
			NetDialContext:  cfg.DialContextFn,
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
		},
		log: cfg.Logger,
	}
}

// Connect dials listener, which must be a ws:// or wss:// URL.
func (t *Transport) Connect(ctx context.Context, listener string, gatewayKey *ed25519.PublicKey) (gateway.Conn, error) {
	u, err := url.Parse(listener)
	if err != nil {
		return nil, fmt.Errorf("registration: invalid listener %q: %v", listener, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("registration: unsupported listener scheme %q", u.Scheme)
	}

	ws, resp, err := t.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	t.log.Debugf("Connected to %v", ws.RemoteAddr())
	ws.SetReadLimit(maxMessageSize)

	return &conn{
		ws:         ws,
		gatewayKey: gatewayKey,
		log:        t.log,
	}, nil
}

type conn struct {
	ws         *websocket.Conn
	gatewayKey *ed25519.PublicKey
	log        *logging.Logger
}

func (c *conn) Register(ctx context.Context, keypair *identity.KeyPair) (*gateway.SharedKey, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.ws.SetWriteDeadline(deadline)
		c.ws.SetReadDeadline(deadline)
	}
	// Unblock pending reads and writes on cancellation.
	stop := context.AfterFunc(ctx, func() {
		c.ws.SetReadDeadline(time.Now())
		c.ws.SetWriteDeadline(time.Now())
	})
	defer stop()

	eph, err := newEphemeral(rand.Reader)
	if err != nil {
		return nil, err
	}
	defer eph.reset()

	clientID := keypair.PublicKey()
	req := &RegisterRequest{
		Version:        ProtocolVersion,
		ClientIdentity: clientID.Bytes(),
		Ephemeral:      eph.public,
		Signature:      keypair.Sign(requestSigningMessage(eph.public)),
	}
	b, err := encode(req)
	if err != nil {
		return nil, err
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return nil, err
	}

	mt, b, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mt != websocket.BinaryMessage {
		return nil, errMessageType
	}
	resp := new(RegisterResponse)
	if err := decode(b, resp); err != nil {
		return nil, fmt.Errorf("registration: malformed response: %v", err)
	}
	if resp.Status != StatusOK {
		return nil, fmt.Errorf("registration: gateway answered %v: %v", resp.Status, resp.Error)
	}
	if len(resp.Ephemeral) != EphemeralKeySize {
		return nil, errBadEphemeral
	}
	if !c.gatewayKey.Verify(resp.Signature, transcript(eph.public, resp.Ephemeral, req.ClientIdentity)) {
		return nil, errBadSignature
	}

	key, err := deriveSharedKey(eph, resp.Ephemeral, eph.public, resp.Ephemeral, clientID, c.gatewayKey)
	if err != nil {
		return nil, err
	}
	c.log.Debugf("Registered with %v", c.ws.RemoteAddr())
	return key, nil
}

// Close sends a close frame and tears the socket down.
func (c *conn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
	if cerr := c.ws.Close(); err == nil {
		err = cerr
	}
	return err
}
