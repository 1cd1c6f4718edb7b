// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package keystore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/katzenpost/hpqc/rand"
	"github.com/katzenpost/hpqc/sign"
	signpem "github.com/katzenpost/hpqc/sign/pem"
	"github.com/stretchr/testify/require"

	"github.com/katzenpost/bootstrap/core/identity"
)

func TestPEMStoreRoundTrip(t *testing.T) {
	require := require.New(t)

	dir := filepath.Join(t.TempDir(), "data")
	store := New(dir, false)

	_, err := store.ReadIdentityKeyPair()
	require.ErrorIs(err, os.ErrNotExist)

	kp, err := identity.NewKeyPair(rand.Reader)
	require.NoError(err)
	require.NoError(store.WriteIdentityKeyPair(kp))

	fi, err := os.Stat(store.PrivateKeyPath())
	require.NoError(err)
	require.Equal(os.FileMode(0600), fi.Mode().Perm())

	loaded, err := store.ReadIdentityKeyPair()
	require.NoError(err)
	require.Equal(kp.Identity(), loaded.Identity())

	msg := []byte("hello gateway")
	require.True(kp.PublicKey().Verify(loaded.Sign(msg), msg))
}

func TestPEMStoreRefusesOverwrite(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	first, err := identity.NewKeyPair(rand.Reader)
	require.NoError(err)
	second, err := identity.NewKeyPair(rand.Reader)
	require.NoError(err)

	require.NoError(New(dir, false).WriteIdentityKeyPair(first))
	require.ErrorIs(New(dir, false).WriteIdentityKeyPair(second), ErrKeyExists)

	require.NoError(New(dir, true).WriteIdentityKeyPair(second))
	loaded, err := New(dir, false).ReadIdentityKeyPair()
	require.NoError(err)
	require.Equal(second.Identity(), loaded.Identity())
}

func TestPEMStorePartialKeypair(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	store := New(dir, false)
	kp, err := identity.NewKeyPair(rand.Reader)
	require.NoError(err)
	require.NoError(store.WriteIdentityKeyPair(kp))
	require.NoError(os.Remove(store.PublicKeyPath()))

	_, err = store.ReadIdentityKeyPair()
	require.Error(err)
}

func TestPEMStoreExists(t *testing.T) {
	require := require.New(t)

	store := New(t.TempDir(), false)
	found, err := store.Exists()
	require.NoError(err)
	require.False(found)

	kp, err := identity.NewKeyPair(rand.Reader)
	require.NoError(err)
	require.NoError(store.WriteIdentityKeyPair(kp))
	require.NoError(os.Remove(store.PrivateKeyPath()))

	found, err = store.Exists()
	require.NoError(err)
	require.True(found)
}

func TestPEMStoreFailedWriteLeavesNothing(t *testing.T) {
	require := require.New(t)

	writeErr := errors.New("disk full")
	publicKeyToFile = func(string, sign.PublicKey) error { return writeErr }
	t.Cleanup(func() { publicKeyToFile = signpem.PublicKeyToFile })

	store := New(t.TempDir(), false)
	kp, err := identity.NewKeyPair(rand.Reader)
	require.NoError(err)
	err = store.WriteIdentityKeyPair(kp)
	require.Error(err)
	require.Contains(err.Error(), writeErr.Error())

	found, err := store.Exists()
	require.NoError(err)
	require.False(found)
}
