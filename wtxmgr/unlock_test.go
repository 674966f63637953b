// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnlockSchedulerPopThrough(t *testing.T) {
	u := NewUnlockScheduler()

	u.Insert(UnlockJob{Height: 30, ContainerID: 1, Hash: hashN(3)})
	u.Insert(UnlockJob{Height: 10, ContainerID: 1, Hash: hashN(1)})
	u.Insert(UnlockJob{Height: 20, ContainerID: 2, Hash: hashN(2)})

	// Nothing matures below the lowest height.
	require.Nil(t, u.PopThrough(9))

	popped := u.PopThrough(20)
	require.Len(t, popped, 2)
	require.Equal(t, uint32(10), popped[0].Height)
	require.Equal(t, uint32(20), popped[1].Height)

	// Popped jobs are gone.
	require.Nil(t, u.PopThrough(20))

	popped = u.PopThrough(100)
	require.Len(t, popped, 1)
	require.Equal(t, uint32(30), popped[0].Height)
}

func TestUnlockSchedulerRemove(t *testing.T) {
	u := NewUnlockScheduler()

	u.Insert(UnlockJob{Height: 10, ContainerID: 1, Hash: hashN(1)})
	u.Insert(UnlockJob{Height: 15, ContainerID: 2, Hash: hashN(1)})
	u.Insert(UnlockJob{Height: 20, ContainerID: 2, Hash: hashN(2)})

	h := hashN(1)
	u.RemoveByHash(&h)
	require.Len(t, u.Jobs(), 1)

	u.RemoveByContainer(2)
	require.Empty(t, u.Jobs())
}

func TestUnlockSchedulerLoadSorts(t *testing.T) {
	u := NewUnlockScheduler()
	u.Load([]UnlockJob{
		{Height: 30}, {Height: 10}, {Height: 20},
	})

	popped := u.PopThrough(25)
	require.Len(t, popped, 2)
	require.Equal(t, uint32(10), popped[0].Height)
	require.Equal(t, uint32(20), popped[1].Height)
}
