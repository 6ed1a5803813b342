package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"staylist/internal/app"
	"staylist/internal/domain"
)

func fastGate() app.GateConfig {
	return app.GateConfig{
		InitialDelay: 40 * time.Millisecond,
		GraceWindow:  120 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}
}

func TestGateAcceptsOwner(t *testing.T) {
	g := app.NewGate(loggedIn("u1", "property_owner"), fastGate())
	s, err := g.Resolve(context.Background())
	if err != nil || s.UserID != "u1" {
		t.Fatalf("resolve: %+v err=%v", s, err)
	}
}

func TestGateRejectsOtherRoles(t *testing.T) {
	g := app.NewGate(loggedIn("u1", "customer"), fastGate())
	if _, err := g.Resolve(context.Background()); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("want access denied, got %v", err)
	}
	if !g.Accepts("ADMIN") || g.Accepts("agent") {
		t.Fatalf("role matching")
	}
}

func TestGateAbsentFailsImmediately(t *testing.T) {
	sp := &fakeSessions{states: []domain.SessionState{domain.SessionAbsent}, artifact: true}
	start := time.Now()
	_, err := app.NewGate(sp, fastGate()).Resolve(context.Background())
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("want session expired, got %v", err)
	}
	if time.Since(start) >= fastGate().InitialDelay {
		t.Fatalf("definitive absence should not wait")
	}
}

// No live session but a stored artifact: the gate keeps waiting through the
// grace window before giving up.
func TestGateWaitsForGraceWindowWithArtifact(t *testing.T) {
	cfg := fastGate()
	sp := &fakeSessions{states: []domain.SessionState{domain.SessionUnknown}, artifact: true}

	start := time.Now()
	_, err := app.NewGate(sp, cfg).Resolve(context.Background())
	elapsed := time.Since(start)

	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("want session expired, got %v", err)
	}
	if elapsed < cfg.InitialDelay+cfg.GraceWindow {
		t.Fatalf("gave up after %v, before the grace window ended", elapsed)
	}
}

func TestGateWithoutArtifactStopsAfterInitialDelay(t *testing.T) {
	cfg := fastGate()
	sp := &fakeSessions{states: []domain.SessionState{domain.SessionUnknown}}

	start := time.Now()
	_, err := app.NewGate(sp, cfg).Resolve(context.Background())
	elapsed := time.Since(start)

	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("want session expired, got %v", err)
	}
	if elapsed < cfg.InitialDelay || elapsed >= cfg.InitialDelay+cfg.GraceWindow {
		t.Fatalf("unexpected wait %v", elapsed)
	}
}

func TestGateSessionArrivesDuringGrace(t *testing.T) {
	cfg := fastGate()
	// loading for longer than the initial delay, then loaded
	states := make([]domain.SessionState, 0, 20)
	for i := 0; i < 15; i++ {
		states = append(states, domain.SessionLoading)
	}
	states = append(states, domain.SessionLoaded)
	sp := &fakeSessions{session: domain.Session{UserID: "u1", Role: "owner"}, states: states}

	s, err := app.NewGate(sp, cfg).Resolve(context.Background())
	if err != nil || s.UserID != "u1" {
		t.Fatalf("resolve: %+v err=%v", s, err)
	}
}

func TestGateCancelledContext(t *testing.T) {
	sp := &fakeSessions{states: []domain.SessionState{domain.SessionLoading}, artifact: true}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := app.NewGate(sp, fastGate()).Resolve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want context error, got %v", err)
	}
}
