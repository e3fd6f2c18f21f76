// Package pairing issues pairing codes, signed device credentials, and
// the one-time sessions that authorize realtime connections.
package pairing

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mediamote/bridge/internal/observability"
	"github.com/rs/zerolog/log"
)

var (
	ErrCodeMismatch      = errors.New("pairing: code mismatch")
	ErrCredentialExpired = errors.New("pairing: credential expired")
	ErrCredentialInvalid = errors.New("pairing: credential invalid")
	// ErrSessionNotFound covers unknown, expired, already-used and
	// address-mismatched sessions alike; the distinction is not leaked.
	ErrSessionNotFound = errors.New("pairing: session not found")
)

// Notifier delivers a pairing code out-of-band to the human at the host.
type Notifier interface {
	Notify(code string) error
}

// Session is a one-time, address-bound authorization ticket for a
// single realtime connection.
type Session struct {
	ID        string
	Device    string
	Addr      string
	CreatedAt time.Time
}

type issuedCode struct {
	code     string
	issuedAt time.Time
}

// RegistryConfig carries key material, timing and collaborators.
type RegistryConfig struct {
	SignKey       *rsa.PrivateKey
	VerifyKey     *rsa.PublicKey
	Notifier      Notifier
	CodeLength    int
	CodeTTL       time.Duration
	SessionTTL    time.Duration
	CredentialTTL time.Duration
	Now           func() time.Time
}

// Registry owns all pairing state. Everything is in-memory; a restart
// forgets outstanding codes and sessions, never issued credentials
// (those verify against the key alone).
type Registry struct {
	mu       sync.Mutex
	codes    map[string]issuedCode
	sessions map[string]Session

	signKey   *rsa.PrivateKey
	verifyKey *rsa.PublicKey
	notifier  Notifier

	codeLength    int
	codeTTL       time.Duration
	sessionTTL    time.Duration
	credentialTTL time.Duration
	now           func() time.Time
}

func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.SignKey == nil || cfg.VerifyKey == nil {
		return nil, errors.New("pairing: registry requires signing and verification keys")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("pairing: registry requires a notifier")
	}
	r := &Registry{
		codes:         make(map[string]issuedCode),
		sessions:      make(map[string]Session),
		signKey:       cfg.SignKey,
		verifyKey:     cfg.VerifyKey,
		notifier:      cfg.Notifier,
		codeLength:    cfg.CodeLength,
		codeTTL:       cfg.CodeTTL,
		sessionTTL:    cfg.SessionTTL,
		credentialTTL: cfg.CredentialTTL,
		now:           cfg.Now,
	}
	if r.codeLength <= 0 {
		r.codeLength = 5
	}
	if r.codeTTL <= 0 {
		r.codeTTL = 5 * time.Minute
	}
	if r.sessionTTL <= 0 {
		r.sessionTTL = 60 * time.Second
	}
	if r.credentialTTL <= 0 {
		r.credentialTTL = 7 * 24 * time.Hour
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// IssueCode generates a numeric code for the device and delivers it via
// the notifier. A newer request for the same device supersedes the old
// code.
func (r *Registry) IssueCode(device string) error {
	code, err := randomNumericCode(r.codeLength)
	if err != nil {
		return fmt.Errorf("pairing: generate code: %w", err)
	}
	if err := r.notifier.Notify(code); err != nil {
		observability.RecordPairing("issue_code", "notify_failed")
		return fmt.Errorf("pairing: deliver code: %w", err)
	}

	r.mu.Lock()
	r.codes[device] = issuedCode{code: code, issuedAt: r.now()}
	r.mu.Unlock()

	observability.RecordPairing("issue_code", "ok")
	log.Info().Str("device", device).Msg("pairing code issued")
	return nil
}

// Pair burns the device's outstanding code and, on a match, returns a
// signed credential plus a fresh one-time session. A wrong code leaves
// the stored code in place so the user can retype it.
func (r *Registry) Pair(device, code, addr string) (token, sessionID string, err error) {
	r.mu.Lock()
	issued, ok := r.codes[device]
	if ok && r.now().Sub(issued.issuedAt) > r.codeTTL {
		delete(r.codes, device)
		ok = false
	}
	r.mu.Unlock()

	if !ok || subtle.ConstantTimeCompare([]byte(issued.code), []byte(code)) != 1 {
		observability.RecordPairing("pair", "code_mismatch")
		return "", "", ErrCodeMismatch
	}

	token, err = r.mintCredential(device)
	if err != nil {
		return "", "", err
	}

	r.mu.Lock()
	delete(r.codes, device)
	r.mu.Unlock()

	sessionID = r.createSession(device, addr)
	observability.RecordPairing("pair", "ok")
	log.Info().Str("device", device).Msg("device paired")
	return token, sessionID, nil
}

// Refresh verifies a previously issued credential and returns a fresh
// one-time session. An expired credential is reported distinctly so the
// client knows to re-pair instead of retrying.
func (r *Registry) Refresh(token, addr string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return r.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			observability.RecordPairing("refresh", "expired")
			return "", ErrCredentialExpired
		}
		observability.RecordPairing("refresh", "invalid")
		return "", fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}

	device := ""
	if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
		device, _ = claims["device"].(string)
	}

	sessionID := r.createSession(device, addr)
	observability.RecordPairing("refresh", "ok")
	return sessionID, nil
}

// Authorize consumes a session. It succeeds at most once per session:
// the record is deleted before the caller sees it. A session presented
// from a different address, or outside its validity window, fails
// exactly like an unknown one.
func (r *Registry) Authorize(sessionID, addr string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		observability.RecordPairing("authorize", "not_found")
		return Session{}, ErrSessionNotFound
	}
	delete(r.sessions, sessionID)

	if sess.Addr != addr || r.now().After(sess.CreatedAt.Add(r.sessionTTL)) {
		observability.RecordPairing("authorize", "not_found")
		return Session{}, ErrSessionNotFound
	}
	observability.RecordPairing("authorize", "ok")
	return sess, nil
}

func (r *Registry) createSession(device, addr string) string {
	sess := Session{
		ID:        uuid.NewString(),
		Device:    device,
		Addr:      addr,
		CreatedAt: r.now(),
	}
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
	return sess.ID
}

func (r *Registry) mintCredential(device string) (string, error) {
	now := r.now()
	claims := jwt.MapClaims{
		"device": device,
		"iat":    now.Unix(),
		"exp":    now.Add(r.credentialTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(r.signKey)
	if err != nil {
		return "", fmt.Errorf("pairing: sign credential: %w", err)
	}
	return token, nil
}

func randomNumericCode(length int) (string, error) {
	const digits = "0123456789"
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = digits[int(buf[i])%len(digits)]
	}
	return string(buf), nil
}
