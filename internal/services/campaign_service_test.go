package services

import (
	"context"
	"testing"
	"time"

	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) GetStatus(ctx context.Context, id int64) (model.CampaignStatus, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.CampaignStatus), args.Error(1)
}

func (m *MockCampaignRepository) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Campaign), args.Get(1).(int64), args.Error(2)
}

func (m *MockCampaignRepository) Transition(ctx context.Context, id int64, from []model.CampaignStatus, to model.CampaignStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockCampaignRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCampaignRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type MockContactCounter struct {
	mock.Mock
}

func (m *MockContactCounter) CountPending(ctx context.Context, campaignID int64) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockContactCounter) CountByStatus(ctx context.Context, campaignID int64) (map[model.ContactStatus]int64, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.ContactStatus]int64), args.Error(1)
}

func (m *MockContactCounter) DeleteByCampaign(ctx context.Context, campaignID int64) error {
	args := m.Called(ctx, campaignID)
	return args.Error(0)
}

type MockSessionProvider struct {
	mock.Mock
}

func (m *MockSessionProvider) ActiveSession(ctx context.Context) (*model.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

type MockBatchRunner struct {
	mock.Mock
}

func (m *MockBatchRunner) RunBatch(ctx context.Context, campaign *model.Campaign, session *model.Session, batchSize int) (*model.BatchResult, error) {
	args := m.Called(ctx, campaign, session, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BatchResult), args.Error(1)
}

func newCampaignFixture() (*CampaignService, *MockCampaignRepository, *MockContactCounter, *MockSessionProvider, *MockBatchRunner) {
	campaigns := new(MockCampaignRepository)
	contacts := new(MockContactCounter)
	auth := new(MockSessionProvider)
	runner := new(MockBatchRunner)
	return NewCampaignService(campaigns, contacts, auth, runner, 10), campaigns, contacts, auth, runner
}

func authenticatedSession() *model.Session {
	return &model.Session{
		Scope:      "default",
		Status:     model.SessionStatusAuthenticated,
		SessionKey: "session-key",
	}
}

func TestCampaignService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates draft campaign", func(t *testing.T) {
		svc, campaigns, _, _, _ := newCampaignFixture()

		campaigns.On("Create", ctx, mock.MatchedBy(func(c *model.Campaign) bool {
			return c.Status == model.CampaignStatusDraft && c.Name == "Promo"
		})).Return(&model.Campaign{ID: 1, Name: "Promo", Status: model.CampaignStatusDraft}, nil)

		created, err := svc.Create(ctx, model.CampaignCreateRequest{
			Name:            "Promo",
			MessageTemplate: "Hi {first_name}!",
		})
		require.NoError(t, err)
		assert.Equal(t, model.CampaignStatusDraft, created.Status)
	})

	t.Run("future schedule creates scheduled campaign", func(t *testing.T) {
		svc, campaigns, _, _, _ := newCampaignFixture()

		at := time.Now().Add(time.Hour)
		campaigns.On("Create", ctx, mock.MatchedBy(func(c *model.Campaign) bool {
			return c.Status == model.CampaignStatusScheduled && c.ScheduledAt != nil
		})).Return(&model.Campaign{ID: 1, Status: model.CampaignStatusScheduled}, nil)

		created, err := svc.Create(ctx, model.CampaignCreateRequest{
			Name:            "Promo",
			MessageTemplate: "Hi!",
			ScheduledAt:     &at,
		})
		require.NoError(t, err)
		assert.Equal(t, model.CampaignStatusScheduled, created.Status)
	})

	t.Run("past schedule is rejected", func(t *testing.T) {
		svc, _, _, _, _ := newCampaignFixture()

		at := time.Now().Add(-time.Hour)
		_, err := svc.Create(ctx, model.CampaignCreateRequest{
			Name:            "Promo",
			MessageTemplate: "Hi!",
			ScheduledAt:     &at,
		})
		assert.Error(t, err)
	})

	t.Run("missing template is rejected", func(t *testing.T) {
		svc, _, _, _, _ := newCampaignFixture()

		_, err := svc.Create(ctx, model.CampaignCreateRequest{Name: "Promo"})
		assert.Error(t, err)
	})
}

func TestCampaignService_Start(t *testing.T) {
	ctx := context.Background()
	startable := []model.CampaignStatus{
		model.CampaignStatusDraft, model.CampaignStatusScheduled, model.CampaignStatusPaused,
	}

	t.Run("starts draft campaign and runs a batch", func(t *testing.T) {
		svc, campaigns, contacts, auth, runner := newCampaignFixture()

		session := authenticatedSession()
		campaign := &model.Campaign{ID: 1, Status: model.CampaignStatusDraft, MessageTemplate: "Hi!"}

		auth.On("ActiveSession", ctx).Return(session, nil)
		campaigns.On("Get", ctx, int64(1)).Return(campaign, nil)
		contacts.On("CountPending", ctx, int64(1)).Return(int64(5), nil)
		campaigns.On("Transition", ctx, int64(1), startable, model.CampaignStatusRunning).Return(true, nil)
		runner.On("RunBatch", ctx, campaign, session, 10).
			Return(&model.BatchResult{Sent: 5, Remaining: 0}, nil)

		result, err := svc.Start(ctx, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, 5, result.Sent)

		campaigns.AssertExpectations(t)
		runner.AssertExpectations(t)
	})

	t.Run("unauthenticated session", func(t *testing.T) {
		svc, _, _, auth, _ := newCampaignFixture()

		auth.On("ActiveSession", ctx).Return(nil, ErrNotAuthenticated)

		_, err := svc.Start(ctx, 1, 10)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("no pending contacts", func(t *testing.T) {
		svc, campaigns, contacts, auth, _ := newCampaignFixture()

		auth.On("ActiveSession", ctx).Return(authenticatedSession(), nil)
		campaigns.On("Get", ctx, int64(1)).Return(&model.Campaign{ID: 1}, nil)
		contacts.On("CountPending", ctx, int64(1)).Return(int64(0), nil)

		_, err := svc.Start(ctx, 1, 10)
		assert.ErrorIs(t, err, ErrNoContacts)
	})

	t.Run("completed campaign cannot start", func(t *testing.T) {
		svc, campaigns, contacts, auth, _ := newCampaignFixture()

		auth.On("ActiveSession", ctx).Return(authenticatedSession(), nil)
		campaigns.On("Get", ctx, int64(1)).Return(&model.Campaign{ID: 1, Status: model.CampaignStatusCompleted}, nil)
		contacts.On("CountPending", ctx, int64(1)).Return(int64(2), nil)
		campaigns.On("Transition", ctx, int64(1), startable, model.CampaignStatusRunning).Return(false, nil)
		campaigns.On("GetStatus", ctx, int64(1)).Return(model.CampaignStatusCompleted, nil)

		_, err := svc.Start(ctx, 1, 10)
		assert.ErrorIs(t, err, ErrCampaignNotStartable)
	})

	t.Run("engine fault marks campaign failed", func(t *testing.T) {
		svc, campaigns, contacts, auth, runner := newCampaignFixture()

		session := authenticatedSession()
		campaign := &model.Campaign{ID: 1, Status: model.CampaignStatusDraft}

		auth.On("ActiveSession", ctx).Return(session, nil)
		campaigns.On("Get", ctx, int64(1)).Return(campaign, nil)
		contacts.On("CountPending", ctx, int64(1)).Return(int64(5), nil)
		campaigns.On("Transition", ctx, int64(1), startable, model.CampaignStatusRunning).Return(true, nil)
		runner.On("RunBatch", ctx, campaign, session, 10).Return(nil, assert.AnError)
		campaigns.On("Transition", ctx, int64(1),
			[]model.CampaignStatus{model.CampaignStatusRunning}, model.CampaignStatusFailed).
			Return(true, nil)

		_, err := svc.Start(ctx, 1, 10)
		assert.Error(t, err)

		campaigns.AssertExpectations(t)
	})
}

func TestCampaignService_Pause(t *testing.T) {
	ctx := context.Background()

	t.Run("pauses running campaign", func(t *testing.T) {
		svc, campaigns, _, _, _ := newCampaignFixture()

		campaigns.On("Transition", ctx, int64(1),
			[]model.CampaignStatus{model.CampaignStatusRunning}, model.CampaignStatusPaused).
			Return(true, nil)
		campaigns.On("Get", ctx, int64(1)).Return(&model.Campaign{ID: 1, Status: model.CampaignStatusPaused}, nil)

		campaign, err := svc.Pause(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, model.CampaignStatusPaused, campaign.Status)
	})

	t.Run("draft campaign cannot pause", func(t *testing.T) {
		svc, campaigns, _, _, _ := newCampaignFixture()

		campaigns.On("Transition", ctx, int64(1),
			[]model.CampaignStatus{model.CampaignStatusRunning}, model.CampaignStatusPaused).
			Return(false, nil)
		campaigns.On("Get", ctx, int64(1)).Return(&model.Campaign{ID: 1, Status: model.CampaignStatusDraft}, nil)

		_, err := svc.Pause(ctx, 1)
		assert.ErrorIs(t, err, ErrCampaignNotPausable)
	})
}

func TestCampaignService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes campaign with contacts", func(t *testing.T) {
		svc, campaigns, contacts, _, _ := newCampaignFixture()

		campaigns.On("GetStatus", ctx, int64(1)).Return(model.CampaignStatusDraft, nil)
		campaigns.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
		contacts.On("DeleteByCampaign", ctx, int64(1)).Return(nil)
		campaigns.On("Delete", ctx, int64(1)).Return(nil)

		require.NoError(t, svc.Delete(ctx, 1))

		contacts.AssertExpectations(t)
	})

	t.Run("running campaign cannot be deleted", func(t *testing.T) {
		svc, campaigns, _, _, _ := newCampaignFixture()

		campaigns.On("GetStatus", ctx, int64(1)).Return(model.CampaignStatusRunning, nil)

		err := svc.Delete(ctx, 1)
		assert.ErrorIs(t, err, ErrCampaignRunning)
	})
}
