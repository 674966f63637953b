// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// UnlockJob marks a container whose balance must be recomputed once the
// chain reaches the job's height.
type UnlockJob struct {
	// Height is the block height at which the transaction's outputs
	// become spendable.
	Height uint32

	// ContainerID is the opaque handle of the owning container.
	ContainerID uint64

	// Hash is the transaction whose outputs unlock.
	Hash chainhash.Hash
}

// UnlockScheduler keeps pending-to-spendable transitions ordered by block
// height.  Like Store, it relies on the wallet's dispatcher for
// serialization.
type UnlockScheduler struct {
	jobs []UnlockJob
}

// NewUnlockScheduler creates an empty scheduler.
func NewUnlockScheduler() *UnlockScheduler {
	return &UnlockScheduler{}
}

// Insert adds a job, keeping jobs ordered by height.
func (u *UnlockScheduler) Insert(job UnlockJob) {
	pos := sort.Search(len(u.jobs), func(i int) bool {
		return u.jobs[i].Height > job.Height
	})
	u.jobs = append(u.jobs, UnlockJob{})
	copy(u.jobs[pos+1:], u.jobs[pos:])
	u.jobs[pos] = job
}

// RemoveByHash drops every job of the given transaction.
func (u *UnlockScheduler) RemoveByHash(hash *chainhash.Hash) {
	filtered := u.jobs[:0]
	for _, job := range u.jobs {
		if job.Hash != *hash {
			filtered = append(filtered, job)
		}
	}
	u.jobs = filtered
}

// RemoveByContainer drops every job referencing the given container.
func (u *UnlockScheduler) RemoveByContainer(containerID uint64) {
	filtered := u.jobs[:0]
	for _, job := range u.jobs {
		if job.ContainerID != containerID {
			filtered = append(filtered, job)
		}
	}
	u.jobs = filtered
}

// PopThrough removes and returns every job with height at or below the
// passed height, ascending.
func (u *UnlockScheduler) PopThrough(height uint32) []UnlockJob {
	end := sort.Search(len(u.jobs), func(i int) bool {
		return u.jobs[i].Height > height
	})
	if end == 0 {
		return nil
	}

	popped := append([]UnlockJob(nil), u.jobs[:end]...)
	u.jobs = append(u.jobs[:0], u.jobs[end:]...)
	return popped
}

// Jobs returns a copy of every scheduled job, for persistence.
func (u *UnlockScheduler) Jobs() []UnlockJob {
	return append([]UnlockJob(nil), u.jobs...)
}

// Load replaces the scheduled jobs with a persisted snapshot.
func (u *UnlockScheduler) Load(jobs []UnlockJob) {
	u.jobs = jobs
	sort.SliceStable(u.jobs, func(i, j int) bool {
		return u.jobs[i].Height < u.jobs[j].Height
	})
}
