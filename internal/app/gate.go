package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"staylist/internal/domain"
)

type GateConfig struct {
	// InitialDelay is how long an undecided session may take before the gate
	// gives up, unless the grace window applies.
	InitialDelay time.Duration
	// GraceWindow is the extra wait granted when a session artifact exists
	// locally or the provider reports that the session is still loading.
	GraceWindow  time.Duration
	PollInterval time.Duration
	Roles        []string
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		InitialDelay: time.Second,
		GraceWindow:  3 * time.Second,
		PollInterval: 100 * time.Millisecond,
		Roles:        []string{"property_owner", "owner", "admin"},
	}
}

// Gate resolves the session a wizard runs under.
type Gate struct {
	provider domain.SessionProvider
	cfg      GateConfig
	roles    map[string]struct{}
}

func NewGate(p domain.SessionProvider, cfg GateConfig) *Gate {
	def := DefaultGateConfig()
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.GraceWindow < 0 {
		cfg.GraceWindow = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if len(cfg.Roles) == 0 {
		cfg.Roles = def.Roles
	}
	roles := make(map[string]struct{}, len(cfg.Roles))
	for _, r := range cfg.Roles {
		roles[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	return &Gate{provider: p, cfg: cfg, roles: roles}
}

type gatePhase int

const (
	phaseInitial gatePhase = iota
	phaseGrace
	phaseExpired
)

// Resolve blocks until the provider reports a definitive session state or
// the staged deadlines run out. It returns ErrSessionExpired when no session
// shows up, ErrAccessDenied for a role outside the accepted set, and
// ctx.Err() when the caller goes away first. Both timers are stopped on return.
func (g *Gate) Resolve(ctx context.Context) (domain.Session, error) {
	deadline := time.NewTimer(g.cfg.InitialDelay)
	defer deadline.Stop()
	tick := time.NewTicker(g.cfg.PollInterval)
	defer tick.Stop()

	phase := phaseInitial
	for {
		sess, state := g.provider.CurrentSession(ctx)
		switch state {
		case domain.SessionLoaded:
			return g.authorize(sess)
		case domain.SessionAbsent:
			log.Debug().Msg("gate: provider reports no session")
			return domain.Session{}, fmt.Errorf("no session: %w", domain.ErrSessionExpired)
		}
		if phase == phaseExpired {
			log.Info().Str("state", state.String()).Msg("gate: session did not arrive in time")
			return domain.Session{}, fmt.Errorf("session %s after grace: %w", state, domain.ErrSessionExpired)
		}

		select {
		case <-ctx.Done():
			return domain.Session{}, ctx.Err()
		case <-tick.C:
		case <-deadline.C:
			if phase == phaseInitial && g.cfg.GraceWindow > 0 &&
				(state == domain.SessionLoading || g.provider.HasSessionArtifact()) {
				log.Debug().Dur("grace", g.cfg.GraceWindow).Msg("gate: extending wait for session rehydration")
				phase = phaseGrace
				deadline.Reset(g.cfg.GraceWindow)
				continue
			}
			// one more look at the provider before giving up
			phase = phaseExpired
		}
	}
}

func (g *Gate) authorize(s domain.Session) (domain.Session, error) {
	if strings.TrimSpace(s.UserID) == "" {
		return domain.Session{}, fmt.Errorf("session without user: %w", domain.ErrSessionExpired)
	}
	if !g.Accepts(s.Role) {
		return domain.Session{}, fmt.Errorf("role %q: %w", s.Role, domain.ErrAccessDenied)
	}
	return s, nil
}

func (g *Gate) Accepts(role string) bool {
	_, ok := g.roles[strings.ToLower(strings.TrimSpace(role))]
	return ok
}
