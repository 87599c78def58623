package pager

import (
	"testing"
	"time"
)

func TestLockManagerSharedLocksCoexist(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0, Kind: KindHeap}
	lm.Acquire(1, pid, ReadOnly)
	lm.Acquire(2, pid, ReadOnly)
	if !lm.Holds(1, pid) || !lm.Holds(2, pid) {
		t.Error("two transactions should both be able to hold a shared lock on the same page")
	}
}

func TestLockManagerExclusiveBlocksOthers(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0, Kind: KindHeap}
	lm.Acquire(1, pid, ReadWrite)

	done := make(chan struct{})
	go func() {
		lm.Acquire(2, pid, ReadOnly)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("transaction 2 should block while transaction 1 holds the exclusive lock")
	case <-time.After(100 * time.Millisecond):
	}

	lm.Release(1, pid)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("transaction 2 should acquire the lock once transaction 1 releases it")
	}
}

func TestLockManagerSelfUpgrade(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0, Kind: KindHeap}
	lm.Acquire(1, pid, ReadOnly)

	done := make(chan struct{})
	go func() {
		lm.Acquire(1, pid, ReadWrite)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("a transaction that is the sole reader must be able to upgrade to exclusive without deadlocking on itself")
	}
	if !lm.Holds(1, pid) {
		t.Error("transaction 1 should hold the lock after upgrading")
	}
}

func TestLockManagerReleaseAll(t *testing.T) {
	lm := NewLockManager()
	p1 := PageID{TableID: 1, PageNo: 0, Kind: KindHeap}
	p2 := PageID{TableID: 1, PageNo: 1, Kind: KindHeap}
	lm.Acquire(1, p1, ReadOnly)
	lm.Acquire(1, p2, ReadWrite)
	lm.ReleaseAll(1)
	if lm.Holds(1, p1) || lm.Holds(1, p2) {
		t.Error("ReleaseAll should drop every lock the transaction held")
	}
}

func TestLockManagerHoldsFalseForUnrelatedTransaction(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0, Kind: KindHeap}
	lm.Acquire(1, pid, ReadOnly)
	if lm.Holds(2, pid) {
		t.Error("Holds should be false for a transaction that never acquired the lock")
	}
}

func TestLockManagerExclusiveExcludesAnotherExclusive(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0, Kind: KindHeap}
	lm.Acquire(1, pid, ReadWrite)

	done := make(chan struct{})
	go func() {
		lm.Acquire(2, pid, ReadWrite)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("a second exclusive acquisition should block while the first is held")
	case <-time.After(100 * time.Millisecond):
	}
	lm.Release(1, pid)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("transaction 2 should acquire the exclusive lock once transaction 1 releases it")
	}
}
