package ledger

import (
	"testing"
	"time"
)

func TestTrackIsIdempotent(t *testing.T) {
	l := New()
	l.Track(1)
	l.IncWorkload(1)
	l.Track(1)
	if got := l.TotalWorkload(); got != 1 {
		t.Fatalf("got total workload %d, want 1 — Track must not reset an in-flight count", got)
	}
}

func TestIncDecWorkload(t *testing.T) {
	l := New()
	l.Track(1)
	l.IncWorkload(1)
	l.IncWorkload(1)
	l.DecWorkload(1)
	snap := l.Snapshot([]int{1}, 0)
	if len(snap) != 1 || snap[0].Workload != 1 {
		t.Fatalf("got %+v, want workload 1", snap)
	}
}

func TestBlacklistExpiresLazily(t *testing.T) {
	l := New()
	l.Track(1)
	l.Blacklist(1, -time.Second) // already expired
	snap := l.Snapshot([]int{1}, 0)
	if snap[0].Blacklisted {
		t.Error("expired blacklist entry should not report as blacklisted")
	}
}

func TestBlacklistStillActive(t *testing.T) {
	l := New()
	l.Track(1)
	l.Blacklist(1, time.Minute)
	snap := l.Snapshot([]int{1}, 0)
	if !snap[0].Blacklisted {
		t.Error("active blacklist entry should report as blacklisted")
	}
}

func TestMarkBlindIsPerMessage(t *testing.T) {
	l := New()
	l.Track(1)
	l.MarkBlind(100, 1, time.Minute)

	snapOtherMessage := l.Snapshot([]int{1}, 200)
	if snapOtherMessage[0].Blind {
		t.Error("blindness recorded for message 100 leaked into message 200")
	}

	snapSameMessage := l.Snapshot([]int{1}, 100)
	if !snapSameMessage[0].Blind {
		t.Error("expected session 1 to be blind for message 100")
	}
}

func TestSnapshotSweepsExpiredBlind(t *testing.T) {
	l := New()
	l.Track(1)
	l.MarkBlind(100, 1, -time.Second)
	snap := l.Snapshot([]int{1}, 100)
	if snap[0].Blind {
		t.Error("expired blind entry should not report as blind")
	}
	l.blindMu.Lock()
	_, stillThere := l.blind[100]
	l.blindMu.Unlock()
	if stillThere {
		t.Error("expired blind table for message 100 should have been swept")
	}
}

func TestUntrackRemovesFromWorkloadSnapshot(t *testing.T) {
	l := New()
	l.Track(1)
	l.Untrack(1)
	if _, ok := l.WorkloadSnapshot()[1]; ok {
		t.Error("untracked session should not appear in workload snapshot")
	}
}
