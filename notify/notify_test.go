package notify

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestShowAndAutoDismiss(t *testing.T) {
	n := New(30*time.Millisecond, nil)
	n.Show(Saved)
	if got := n.Current(); got != Saved {
		t.Fatalf("Current() = %q, want %q", got, Saved)
	}
	waitFor(t, func() bool { return n.Current() == "" })
}

func TestShowReplacesAndRestartsTimer(t *testing.T) {
	n := New(80*time.Millisecond, nil)
	n.Show(Saved)
	time.Sleep(50 * time.Millisecond)
	n.Show(ShareFailed)
	time.Sleep(50 * time.Millisecond)
	// the first timer would have fired by now; the second message must survive it
	if got := n.Current(); got != ShareFailed {
		t.Fatalf("Current() = %q, want %q", got, ShareFailed)
	}
	waitFor(t, func() bool { return n.Current() == "" })
}

func TestStaleExpireIgnored(t *testing.T) {
	n := New(time.Hour, nil)
	n.Show(Saved)
	stale := n.seq
	n.Show(Shared)
	n.expire(stale)
	if got := n.Current(); got != Shared {
		t.Fatalf("stale timer cleared newer message, got %q", got)
	}
}

func TestDismiss(t *testing.T) {
	n := New(time.Hour, nil)
	n.Show(SaveFailed)
	n.Dismiss()
	if got := n.Current(); got != "" {
		t.Fatalf("Dismiss left %q", got)
	}
}

func TestDefaultDelay(t *testing.T) {
	if n := New(0, nil); n.delay != DefaultDelay {
		t.Fatalf("delay = %v, want %v", n.delay, DefaultDelay)
	}
}
