// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package registration

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/katzenpost/hpqc/rand"
	"github.com/katzenpost/hpqc/sign/ed25519"
	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/bootstrap/client/gateway"
	"github.com/katzenpost/bootstrap/core/identity"
)

const responderTimeout = 10 * time.Second

// ResponderConfig is the configuration of a Responder.
type ResponderConfig struct {
	// Identity is the gateway identity keypair.
	Identity *identity.KeyPair

	// OnRegister is called with each client identity and its freshly
	// derived key.  Returning an error rejects the client and the key
	// is scrubbed.  The callback owns the key otherwise.
	OnRegister func(clientIdentity string, key *gateway.SharedKey) error

	// Logger is required.
	Logger *logging.Logger
}

// Responder is the gateway side of the registration exchange, served as
// an http.Handler on the gateway client listener.
type Responder struct {
	cfg      *ResponderConfig
	upgrader websocket.Upgrader
	log      *logging.Logger
}

// NewResponder returns a new Responder.
func NewResponder(cfg *ResponderConfig) *Responder {
	return &Responder{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
		},
		log: cfg.Logger,
	}
}

// ServeHTTP implements http.Handler.
func (r *Responder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Debugf("Upgrade failed for %v: %v", req.RemoteAddr, err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(responderTimeout))
	ws.SetWriteDeadline(time.Now().Add(responderTimeout))

	resp := r.handle(ws)
	b, err := encode(resp)
	if err != nil {
		r.log.Errorf("Failed to encode response: %v", err)
		return
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		r.log.Debugf("Failed to send response to %v: %v", req.RemoteAddr, err)
		return
	}

	// Drain until the client closes, the close handler answers it.
	for {
		if _, _, err := ws.NextReader(); err != nil {
			return
		}
	}
}

func (r *Responder) handle(ws *websocket.Conn) *RegisterResponse {
	mt, b, err := ws.ReadMessage()
	if err != nil {
		return reject(StatusBadRequest, err)
	}
	if mt != websocket.BinaryMessage {
		return reject(StatusBadRequest, errMessageType)
	}
	req := new(RegisterRequest)
	if err := decode(b, req); err != nil {
		return reject(StatusBadRequest, err)
	}
	if req.Version != ProtocolVersion {
		return reject(StatusBadRequest, errBadVersion)
	}

	clientID := new(ed25519.PublicKey)
	if err := clientID.FromBytes(req.ClientIdentity); err != nil {
		return reject(StatusBadRequest, errBadClientID)
	}
	if len(req.Ephemeral) != EphemeralKeySize {
		return reject(StatusBadRequest, errBadEphemeral)
	}
	if !clientID.Verify(req.Signature, requestSigningMessage(req.Ephemeral)) {
		return reject(StatusBadRequest, errBadSignature)
	}

	eph, err := newEphemeral(rand.Reader)
	if err != nil {
		return reject(StatusRejected, err)
	}
	defer eph.reset()

	gatewayID := r.cfg.Identity.PublicKey()
	key, err := deriveSharedKey(eph, req.Ephemeral, req.Ephemeral, eph.public, clientID, gatewayID)
	if err != nil {
		return reject(StatusBadRequest, err)
	}

	client := identity.Encode(clientID)
	if r.cfg.OnRegister != nil {
		if err := r.cfg.OnRegister(client, key); err != nil {
			key.Reset()
			return reject(StatusRejected, err)
		}
	} else {
		key.Reset()
	}
	r.log.Noticef("Registered client %v", client)

	return &RegisterResponse{
		Status:    StatusOK,
		Ephemeral: eph.public,
		Signature: r.cfg.Identity.Sign(transcript(req.Ephemeral, eph.public, req.ClientIdentity)),
	}
}

func reject(status Status, err error) *RegisterResponse {
	return &RegisterResponse{
		Status: status,
		Error:  err.Error(),
	}
}
