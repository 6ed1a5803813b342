// Package auth turns bearer tokens into wizard sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"staylist/internal/domain"
)

// CookieName is checked when no Authorization header is present.
const CookieName = "staylist_session"

// Claims carry the user id in the standard subject claim.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs an HS256 token for userID. Used by tooling and tests; the
// production issuer is the identity service.
func (v *Verifier) Issue(userID, role string, ttl time.Duration) (string, error) {
	now := v.now().UTC()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (domain.Session, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return domain.Session{}, fmt.Errorf("verify token: %w", err)
	}
	if claims.Subject == "" {
		return domain.Session{}, errors.New("verify token: missing subject")
	}
	return domain.Session{UserID: claims.Subject, Role: claims.Role}, nil
}

// FromRequest builds the session provider for one request.
func (v *Verifier) FromRequest(r *http.Request) *RequestSession {
	return &RequestSession{v: v, raw: tokenFrom(r)}
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// RequestSession is a domain.SessionProvider over a single request's
// credentials. The answer never changes during the request, so it is
// computed once.
type RequestSession struct {
	v   *Verifier
	raw string

	done  bool
	sess  domain.Session
	state domain.SessionState
}

var _ domain.SessionProvider = (*RequestSession)(nil)

func (s *RequestSession) CurrentSession(_ context.Context) (domain.Session, domain.SessionState) {
	if !s.done {
		s.done = true
		s.state = domain.SessionAbsent
		if s.raw != "" {
			if sess, err := s.v.Verify(s.raw); err == nil {
				s.sess, s.state = sess, domain.SessionLoaded
			}
		}
	}
	return s.sess, s.state
}

func (s *RequestSession) HasSessionArtifact() bool { return s.raw != "" }

// Session returns the verified session, or false when the request carries
// no valid token.
func (s *RequestSession) Session() (domain.Session, bool) {
	sess, st := s.CurrentSession(context.Background())
	return sess, st == domain.SessionLoaded
}
