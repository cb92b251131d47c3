package actions

import (
	"testing"
	"time"
)

func TestCaptchaVerifyConsumes(t *testing.T) {
	tr := NewCaptchaTracker()
	tr.Track("g1", "u1", "AB12CD")

	if tr.Verify("g1", "u1", "WRONG") {
		t.Fatal("wrong answer accepted")
	}
	if !tr.Verify("g1", "u1", "AB12CD") {
		t.Fatal("correct answer rejected")
	}
	// Consumed: a replay fails
	if tr.Verify("g1", "u1", "AB12CD") {
		t.Fatal("challenge replayable")
	}
}

func TestCaptchaUnknownUser(t *testing.T) {
	tr := NewCaptchaTracker()
	if tr.Verify("g1", "nobody", "anything") {
		t.Fatal("verification without a challenge")
	}
}

func TestCaptchaChallengesAreScoped(t *testing.T) {
	tr := NewCaptchaTracker()
	tr.Track("g1", "u1", "CODE1")
	tr.Track("g2", "u1", "CODE2")

	if tr.Verify("g2", "u1", "CODE1") {
		t.Fatal("challenge leaked across guilds")
	}
	if !tr.Verify("g1", "u1", "CODE1") || !tr.Verify("g2", "u1", "CODE2") {
		t.Fatal("scoped challenges rejected")
	}
}

func TestCaptchaExpiry(t *testing.T) {
	tr := NewCaptchaTracker()
	tr.Track("g1", "u1", "OLD123")

	// Backdate the entry past the TTL
	tr.mu.Lock()
	entry := tr.pending["g1:u1"]
	entry.issued = time.Now().Add(-captchaTTL - time.Minute)
	tr.pending["g1:u1"] = entry
	tr.mu.Unlock()

	if tr.Verify("g1", "u1", "OLD123") {
		t.Fatal("expired challenge accepted")
	}
}

func TestCaptchaPrune(t *testing.T) {
	tr := NewCaptchaTracker()
	tr.Track("g1", "old", "A")
	tr.Track("g1", "new", "B")

	tr.mu.Lock()
	entry := tr.pending["g1:old"]
	entry.issued = time.Now().Add(-captchaTTL - time.Minute)
	tr.pending["g1:old"] = entry
	tr.mu.Unlock()

	tr.Prune()

	tr.mu.Lock()
	_, oldLeft := tr.pending["g1:old"]
	_, newLeft := tr.pending["g1:new"]
	tr.mu.Unlock()

	if oldLeft || !newLeft {
		t.Fatalf("prune kept old=%v new=%v", oldLeft, newLeft)
	}
}
