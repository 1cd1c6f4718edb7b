// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

// Package keystore persists the client identity keypair as PEM files.
package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/katzenpost/hpqc/sign/ed25519"
	signpem "github.com/katzenpost/hpqc/sign/pem"

	"github.com/katzenpost/bootstrap/core/identity"
)

const (
	privateIdentityFile = "private_identity.pem"
	publicIdentityFile  = "public_identity.pem"
)

// Replaced in tests.
var (
	privateKeyToFile = signpem.PrivateKeyToFile
	publicKeyToFile  = signpem.PublicKeyToFile
)

var (
	// ErrKeyExists is returned when a keypair is already stored and
	// overwriting was not requested.
	ErrKeyExists = errors.New("keystore: identity keypair already exists")

	errPartialKey = errors.New("keystore: only one half of the identity keypair exists")
)

// PEMStore reads and writes the identity keypair in a directory.
type PEMStore struct {
	dir       string
	overwrite bool
}

// New returns a PEMStore rooted at dir.  If overwrite is set an existing
// keypair is replaced.
func New(dir string, overwrite bool) *PEMStore {
	return &PEMStore{
		dir:       dir,
		overwrite: overwrite,
	}
}

// PrivateKeyPath is the path of the private key file.
func (s *PEMStore) PrivateKeyPath() string {
	return filepath.Join(s.dir, privateIdentityFile)
}

// PublicKeyPath is the path of the public key file.
func (s *PEMStore) PublicKeyPath() string {
	return filepath.Join(s.dir, publicIdentityFile)
}

// Exists reports whether either half of a keypair is stored.
func (s *PEMStore) Exists() (bool, error) {
	for _, f := range []string{s.PrivateKeyPath(), s.PublicKeyPath()} {
		ok, err := exists(f)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// WriteIdentityKeyPair persists keypair.
func (s *PEMStore) WriteIdentityKeyPair(keypair *identity.KeyPair) error {
	privOut, pubOut := s.PrivateKeyPath(), s.PublicKeyPath()

	found, err := s.Exists()
	if err != nil {
		return err
	}
	if found && !s.overwrite {
		return ErrKeyExists
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("keystore: %v", err)
	}
	// The PEM writers do not truncate.
	for _, f := range []string{privOut, pubOut} {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("keystore: %v", err)
		}
	}
	if err := privateKeyToFile(privOut, keypair.PrivateKey()); err != nil {
		os.Remove(privOut)
		return fmt.Errorf("keystore: failed to write private key: %v", err)
	}
	if err := publicKeyToFile(pubOut, keypair.PublicKey()); err != nil {
		os.Remove(privOut)
		os.Remove(pubOut)
		return fmt.Errorf("keystore: failed to write public key: %v", err)
	}
	return nil
}

// ReadIdentityKeyPair loads the stored keypair and checks that both halves
// belong together.
func (s *PEMStore) ReadIdentityKeyPair() (*identity.KeyPair, error) {
	privIn, pubIn := s.PrivateKeyPath(), s.PublicKeyPath()

	privExists, err := exists(privIn)
	if err != nil {
		return nil, err
	}
	pubExists, err := exists(pubIn)
	if err != nil {
		return nil, err
	}
	switch {
	case !privExists && !pubExists:
		return nil, os.ErrNotExist
	case privExists != pubExists:
		return nil, errPartialKey
	}

	priv, err := signpem.FromPrivatePEMFile(privIn, ed25519.Scheme())
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to read private key: %v", err)
	}
	pub, err := signpem.FromPublicPEMFile(pubIn, ed25519.Scheme())
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to read public key: %v", err)
	}

	edPriv, ok := priv.(*ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("keystore: unexpected private key type %T", priv)
	}
	keypair := identity.FromPrivateKey(edPriv)
	if !keypair.PublicKey().Equal(pub) {
		return nil, errors.New("keystore: public key does not match private key")
	}
	return keypair, nil
}

func exists(f string) (bool, error) {
	_, err := os.Stat(f)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
