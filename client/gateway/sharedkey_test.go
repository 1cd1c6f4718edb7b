// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package gateway

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedKey(t *testing.T) {
	require := require.New(t)

	raw := bytes.Repeat([]byte{0x42}, SharedKeySize)
	k, err := NewSharedKey(raw)
	require.NoError(err)
	require.Equal(raw, k.Bytes())

	// Callers cannot reach the key through Bytes.
	b := k.Bytes()
	b[0] = 0
	require.Equal(raw, k.Bytes())

	k2, err := SharedKeyFromBase58(k.ToBase58())
	require.NoError(err)
	require.True(k.Equal(k2))
	require.False(k.Equal(nil))

	require.NotContains(fmt.Sprintf("%v %s %#v", k, k, k), k.ToBase58())

	k.Reset()
	require.Equal(make([]byte, SharedKeySize), k.Bytes())
	require.False(k.Equal(k2))

	_, err = NewSharedKey([]byte{1, 2, 3})
	require.Error(err)
	_, err = SharedKeyFromBase58("not-base58")
	require.Error(err)
}
