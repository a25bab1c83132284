package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gateway "github.com/mselim/campaign-gateway/internal/gateways"
	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/mselim/campaign-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Get(ctx context.Context, scope string) (*model.Session, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *MockSessionRepository) Save(ctx context.Context, s *model.Session) (*model.Session, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *MockSessionRepository) Touch(ctx context.Context, scope string) error {
	args := m.Called(ctx, scope)
	return args.Error(0)
}

type MockAuthGateway struct {
	mock.Mock
}

func (m *MockAuthGateway) SendCode(ctx context.Context, phoneNumber string) (string, error) {
	args := m.Called(ctx, phoneNumber)
	return args.String(0), args.Error(1)
}

func (m *MockAuthGateway) SignIn(ctx context.Context, phoneNumber, phoneCodeHash, code, password string) (string, error) {
	args := m.Called(ctx, phoneNumber, phoneCodeHash, code, password)
	return args.String(0), args.Error(1)
}

func newTestRedis(t *testing.T) (redis.RedisAdapter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	return redis.NewRedisAdapterWithClient("test", client), mr
}

func TestAuthService_RequestCode(t *testing.T) {
	ctx := context.Background()

	t.Run("requests code and saves pending session", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		bridge := new(MockAuthGateway)
		adapter, _ := newTestRedis(t)
		svc := NewAuthService(sessions, bridge, adapter, "default", time.Minute)

		bridge.On("SendCode", ctx, "15551234567").Return("hash-abc", nil)
		sessions.On("Save", ctx, mock.MatchedBy(func(s *model.Session) bool {
			return s.Scope == "default" &&
				s.PhoneNumber == "15551234567" &&
				s.Status == model.SessionStatusCodeRequested &&
				s.PhoneCodeHash == "hash-abc"
		})).Return(&model.Session{
			ID:            1,
			Scope:         "default",
			PhoneNumber:   "15551234567",
			Status:        model.SessionStatusCodeRequested,
			PhoneCodeHash: "hash-abc",
		}, nil)

		session, err := svc.RequestCode(ctx, "+1 (555) 123-4567")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusCodeRequested, session.Status)

		sessions.AssertExpectations(t)
		bridge.AssertExpectations(t)
	})

	t.Run("phone with too few digits", func(t *testing.T) {
		svc := NewAuthService(new(MockSessionRepository), new(MockAuthGateway), nil, "default", time.Minute)

		_, err := svc.RequestCode(ctx, "12345")
		assert.ErrorIs(t, err, ErrInvalidPhone)
	})

	t.Run("second request within cooldown is rejected", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		bridge := new(MockAuthGateway)
		adapter, _ := newTestRedis(t)
		svc := NewAuthService(sessions, bridge, adapter, "default", time.Minute)

		bridge.On("SendCode", ctx, "15551234567").Return("hash-abc", nil).Once()
		sessions.On("Save", ctx, mock.Anything).Return(&model.Session{}, nil).Once()

		_, err := svc.RequestCode(ctx, "15551234567")
		require.NoError(t, err)

		_, err = svc.RequestCode(ctx, "15551234567")
		assert.ErrorIs(t, err, ErrCodeRequestCooldown)
	})

	t.Run("cooldown expires", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		bridge := new(MockAuthGateway)
		adapter, mr := newTestRedis(t)
		svc := NewAuthService(sessions, bridge, adapter, "default", time.Minute)

		bridge.On("SendCode", ctx, "15551234567").Return("hash-abc", nil)
		sessions.On("Save", ctx, mock.Anything).Return(&model.Session{}, nil)

		_, err := svc.RequestCode(ctx, "15551234567")
		require.NoError(t, err)

		mr.FastForward(61 * time.Second)

		_, err = svc.RequestCode(ctx, "15551234567")
		assert.NoError(t, err)
	})

	t.Run("bridge down releases the cooldown", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		bridge := new(MockAuthGateway)
		adapter, _ := newTestRedis(t)
		svc := NewAuthService(sessions, bridge, adapter, "default", time.Minute)

		bridge.On("SendCode", ctx, "15551234567").Return("", gateway.ErrUnavailable).Once()

		_, err := svc.RequestCode(ctx, "15551234567")
		assert.ErrorIs(t, err, ErrNetworkUnavailable)

		// Retry is not blocked by the cooldown.
		bridge.On("SendCode", ctx, "15551234567").Return("hash-abc", nil).Once()
		sessions.On("Save", ctx, mock.Anything).Return(&model.Session{}, nil)

		_, err = svc.RequestCode(ctx, "15551234567")
		assert.NoError(t, err)
	})
}

func TestAuthService_VerifyCode(t *testing.T) {
	ctx := context.Background()

	pendingSession := func() *model.Session {
		return &model.Session{
			ID:            1,
			Scope:         "default",
			PhoneNumber:   "15551234567",
			Status:        model.SessionStatusCodeRequested,
			PhoneCodeHash: "hash-abc",
		}
	}

	t.Run("successful verification", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		bridge := new(MockAuthGateway)
		svc := NewAuthService(sessions, bridge, nil, "default", time.Minute)

		sessions.On("Get", ctx, "default").Return(pendingSession(), nil)
		bridge.On("SignIn", ctx, "15551234567", "hash-abc", "12345", "").Return("session-key", nil)
		sessions.On("Save", ctx, mock.MatchedBy(func(s *model.Session) bool {
			return s.Status == model.SessionStatusAuthenticated &&
				s.SessionKey == "session-key" &&
				s.PhoneCodeHash == "" &&
				s.AuthenticatedAt != nil
		})).Return(&model.Session{
			Status:     model.SessionStatusAuthenticated,
			SessionKey: "session-key",
		}, nil)

		session, err := svc.VerifyCode(ctx, "12345", "")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusAuthenticated, session.Status)

		sessions.AssertExpectations(t)
	})

	t.Run("no pending request", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		svc := NewAuthService(sessions, new(MockAuthGateway), nil, "default", time.Minute)

		sessions.On("Get", ctx, "default").Return(nil, assert.AnError)

		_, err := svc.VerifyCode(ctx, "12345", "")
		assert.ErrorIs(t, err, ErrNoPendingAuth)
	})

	t.Run("invalid code keeps the pending request", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		bridge := new(MockAuthGateway)
		svc := NewAuthService(sessions, bridge, nil, "default", time.Minute)

		sessions.On("Get", ctx, "default").Return(pendingSession(), nil)
		bridge.On("SignIn", ctx, "15551234567", "hash-abc", "00000", "").Return("", gateway.ErrCodeInvalid)

		_, err := svc.VerifyCode(ctx, "00000", "")
		assert.ErrorIs(t, err, ErrInvalidCode)

		sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("two-factor password required", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		bridge := new(MockAuthGateway)
		svc := NewAuthService(sessions, bridge, nil, "default", time.Minute)

		sessions.On("Get", ctx, "default").Return(pendingSession(), nil)
		bridge.On("SignIn", ctx, "15551234567", "hash-abc", "12345", "").Return("", gateway.ErrPasswordNeeded)

		_, err := svc.VerifyCode(ctx, "12345", "")
		assert.ErrorIs(t, err, ErrTwoFactorRequired)
	})
}

func TestAuthService_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("unauthenticated when no session exists", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		svc := NewAuthService(sessions, new(MockAuthGateway), nil, "default", time.Minute)

		sessions.On("Get", ctx, "default").Return(nil, assert.AnError)

		session, err := svc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusUnauthenticated, session.Status)
	})

	t.Run("returns stored session", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		svc := NewAuthService(sessions, new(MockAuthGateway), nil, "default", time.Minute)

		sessions.On("Get", ctx, "default").Return(&model.Session{
			Status: model.SessionStatusCodeRequested,
		}, nil)

		session, err := svc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusCodeRequested, session.Status)
	})
}

func TestAuthService_ActiveSession(t *testing.T) {
	ctx := context.Background()

	t.Run("authenticated session", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		svc := NewAuthService(sessions, new(MockAuthGateway), nil, "default", time.Minute)

		sessions.On("Get", ctx, "default").Return(&model.Session{
			Status:     model.SessionStatusAuthenticated,
			SessionKey: "session-key",
		}, nil)
		sessions.On("Touch", ctx, "default").Return(nil)

		session, err := svc.ActiveSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, "session-key", session.SessionKey)
	})

	t.Run("pending session is not active", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		svc := NewAuthService(sessions, new(MockAuthGateway), nil, "default", time.Minute)

		sessions.On("Get", ctx, "default").Return(&model.Session{
			Status: model.SessionStatusCodeRequested,
		}, nil)

		_, err := svc.ActiveSession(ctx)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}
