package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	gateway "github.com/mselim/campaign-gateway/internal/gateways"
	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/mselim/campaign-gateway/pkg/logger"
	"github.com/mselim/campaign-gateway/pkg/redis"
)

var (
	ErrInvalidPhone        = errors.New("invalid phone number")
	ErrCodeRequestCooldown = errors.New("a login code was requested recently, wait before retrying")
	ErrNoPendingAuth       = errors.New("no pending code request, request a code first")
	ErrInvalidCode         = errors.New("login code is invalid")
	ErrCodeExpired         = errors.New("login code has expired, request a new one")
	ErrTwoFactorRequired   = errors.New("two-factor password required")
	ErrNetworkUnavailable  = errors.New("telegram bridge unavailable")
	ErrNotAuthenticated    = errors.New("session is not authenticated")
)

type SessionRepository interface {
	Get(ctx context.Context, scope string) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) (*model.Session, error)
	Touch(ctx context.Context, scope string) error
}

type AuthGateway interface {
	SendCode(ctx context.Context, phoneNumber string) (string, error)
	SignIn(ctx context.Context, phoneNumber, phoneCodeHash, code, password string) (string, error)
}

type AuthService struct {
	sessions SessionRepository
	bridge   AuthGateway
	redis    redis.RedisAdapter
	scope    string
	cooldown time.Duration
}

func NewAuthService(sessions SessionRepository, bridge AuthGateway, redisAdapter redis.RedisAdapter, scope string, cooldown time.Duration) *AuthService {
	if scope == "" {
		scope = "default"
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &AuthService{
		sessions: sessions,
		bridge:   bridge,
		redis:    redisAdapter,
		scope:    scope,
		cooldown: cooldown,
	}
}

// RequestCode starts the phone login handshake. The bridge delivers a
// code to the phone and returns a hash that VerifyCode must echo back.
func (s *AuthService) RequestCode(ctx context.Context, phoneRaw string) (*model.Session, error) {
	phone, err := model.NormalizePhone(phoneRaw)
	if err != nil {
		return nil, ErrInvalidPhone
	}

	cooldownKey := "cooldown:auth:" + phone
	acquired, err := s.redis.SetNX(cooldownKey, []byte("1"), s.cooldown)
	if err != nil {
		return nil, fmt.Errorf("cooldown check: %w", err)
	}
	if !acquired {
		return nil, ErrCodeRequestCooldown
	}

	hash, err := s.bridge.SendCode(ctx, phone)
	if err != nil {
		// Release the cooldown so the caller can retry once the bridge is back.
		_ = s.redis.Del(cooldownKey)
		return nil, mapBridgeError(err)
	}

	session, err := s.sessions.Save(ctx, &model.Session{
		Scope:         s.scope,
		PhoneNumber:   phone,
		Status:        model.SessionStatusCodeRequested,
		PhoneCodeHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	logger.Info("Login code requested", "scope", s.scope, "phone", phone)

	return session, nil
}

// VerifyCode completes the handshake. Password is only consulted when
// the account has two-factor auth enabled.
func (s *AuthService) VerifyCode(ctx context.Context, code, password string) (*model.Session, error) {
	session, err := s.sessions.Get(ctx, s.scope)
	if err != nil {
		return nil, ErrNoPendingAuth
	}
	if session.Status != model.SessionStatusCodeRequested || session.PhoneCodeHash == "" {
		return nil, ErrNoPendingAuth
	}

	sessionKey, err := s.bridge.SignIn(ctx, session.PhoneNumber, session.PhoneCodeHash, code, password)
	if err != nil {
		// An invalid code keeps the pending request alive so the user
		// can retry with the same code hash.
		return nil, mapBridgeError(err)
	}

	now := time.Now()
	session.Status = model.SessionStatusAuthenticated
	session.SessionKey = sessionKey
	session.PhoneCodeHash = ""
	session.AuthenticatedAt = &now

	saved, err := s.sessions.Save(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	logger.Info("Session authenticated", "scope", s.scope, "phone", session.PhoneNumber)

	return saved, nil
}

// Status reports the current handshake state without touching the bridge.
func (s *AuthService) Status(ctx context.Context) (*model.Session, error) {
	session, err := s.sessions.Get(ctx, s.scope)
	if err != nil {
		return &model.Session{
			Scope:  s.scope,
			Status: model.SessionStatusUnauthenticated,
		}, nil
	}
	return session, nil
}

// ActiveSession returns the authenticated session or ErrNotAuthenticated.
func (s *AuthService) ActiveSession(ctx context.Context) (*model.Session, error) {
	session, err := s.sessions.Get(ctx, s.scope)
	if err != nil {
		return nil, ErrNotAuthenticated
	}
	if !session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if err := s.sessions.Touch(ctx, s.scope); err != nil {
		logger.Warn("Failed to touch session", "scope", s.scope, "error", err)
	}
	return session, nil
}

func mapBridgeError(err error) error {
	switch {
	case errors.Is(err, gateway.ErrCodeInvalid):
		return ErrInvalidCode
	case errors.Is(err, gateway.ErrCodeExpired):
		return ErrCodeExpired
	case errors.Is(err, gateway.ErrPasswordNeeded):
		return ErrTwoFactorRequired
	case errors.Is(err, gateway.ErrUnavailable):
		return ErrNetworkUnavailable
	default:
		return err
	}
}
