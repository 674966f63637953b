// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DCL2019/cash2/cnutil"
)

func pubKey(n byte) cnutil.PublicKey {
	var k cnutil.PublicKey
	k[0] = n
	return k
}

func secKey(n byte) cnutil.SecretKey {
	var k cnutil.SecretKey
	k[0] = n
	return k
}

func TestAddRemove(t *testing.T) {
	ks := New(cnutil.KeyPair{Public: pubKey(0xaa)})
	require.Equal(t, ModeNoAddresses, ks.Mode())

	rec, err := ks.Add(pubKey(1), secKey(1), 100, nil)
	require.NoError(t, err)
	require.Equal(t, ModeSpending, ks.Mode())
	require.NotZero(t, rec.ContainerID)

	rec2, err := ks.Add(pubKey(2), secKey(2), 200, nil)
	require.NoError(t, err)
	require.NotEqual(t, rec.ContainerID, rec2.ContainerID)
	require.Equal(t, 2, ks.Count())

	// Creation order is preserved.
	first, err := ks.At(0)
	require.NoError(t, err)
	require.Equal(t, pubKey(1), first.SpendPublicKey)

	byContainer, ok := ks.ByContainer(rec2.ContainerID)
	require.True(t, ok)
	require.Equal(t, rec2, byContainer)

	removed, err := ks.Remove(pubKey(1))
	require.NoError(t, err)
	require.Equal(t, rec, removed)
	require.Equal(t, 1, ks.Count())
	require.False(t, ks.Contains(pubKey(1)))

	_, err = ks.Remove(pubKey(1))
	require.True(t, IsError(err, ErrNotFound))
}

func TestDuplicateKeyRejected(t *testing.T) {
	ks := New(cnutil.KeyPair{})

	_, err := ks.Add(pubKey(1), secKey(1), 0, nil)
	require.NoError(t, err)

	_, err = ks.Add(pubKey(1), secKey(9), 0, nil)
	require.True(t, IsError(err, ErrDuplicateKey))
}

func TestModeMixingForbidden(t *testing.T) {
	ks := New(cnutil.KeyPair{})

	// First record makes it a tracking store.
	_, err := ks.Add(pubKey(1), cnutil.SecretKey{}, 0, nil)
	require.NoError(t, err)
	require.Equal(t, ModeTracking, ks.Mode())

	// A spending record may not join.
	_, err = ks.Add(pubKey(2), secKey(2), 0, nil)
	require.True(t, IsError(err, ErrModeMismatch))

	// And the other way around.
	ks = New(cnutil.KeyPair{})
	_, err = ks.Add(pubKey(1), secKey(1), 0, nil)
	require.NoError(t, err)
	_, err = ks.Add(pubKey(2), cnutil.SecretKey{}, 0, nil)
	require.True(t, IsError(err, ErrModeMismatch))
}

func TestClearWipesSecrets(t *testing.T) {
	ks := New(cnutil.KeyPair{})

	rec, err := ks.Add(pubKey(1), secKey(1), 0, nil)
	require.NoError(t, err)

	ks.Clear()
	require.Equal(t, 0, ks.Count())
	require.True(t, rec.SpendSecretKey.IsNull())
}
