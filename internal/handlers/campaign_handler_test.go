package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/mselim/campaign-gateway/internal/repository"
	"github.com/mselim/campaign-gateway/internal/services"
	xhttp "github.com/mselim/campaign-gateway/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCampaignService struct {
	mock.Mock
}

func (m *MockCampaignService) Create(ctx context.Context, p model.CampaignCreateRequest) (*model.Campaign, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Campaign), args.Get(1).(int64), args.Error(2)
}

func (m *MockCampaignService) Start(ctx context.Context, id int64, batchSize int) (*model.BatchResult, error) {
	args := m.Called(ctx, id, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BatchResult), args.Error(1)
}

func (m *MockCampaignService) Pause(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCampaignService) Stats(ctx context.Context, id int64) (*model.Campaign, map[model.ContactStatus]int64, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Campaign), args.Get(1).(map[model.ContactStatus]int64), args.Error(2)
}

func withPathID(ctx *xhttp.RequestCtx, id string) *xhttp.RequestCtx {
	ctx.SetUserValue("id", id)
	return ctx
}

func TestCampaignHandler_CreateCampaign(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		bodyBytes, _ := json.Marshal(createCampaignRequest{
			Name:            "Promo",
			MessageTemplate: "Hi {first_name}!",
		})

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.CampaignCreateRequest) bool {
			return p.Name == "Promo" && p.ScheduledAt == nil
		})).Return(&model.Campaign{ID: 1, Name: "Promo", Status: model.CampaignStatusDraft}, nil)

		ctx := setupTestContext("POST", "/api/v1/campaigns", bodyBytes)
		handler.CreateCampaign(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.Campaign
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(1), response.ID)

		svc.AssertExpectations(t)
	})

	t.Run("malformed scheduled_at", func(t *testing.T) {
		handler := NewCampaignHandler(new(MockCampaignService))

		bodyBytes, _ := json.Marshal(createCampaignRequest{
			Name:            "Promo",
			MessageTemplate: "Hi!",
			ScheduledAt:     "tomorrow",
		})

		ctx := setupTestContext("POST", "/api/v1/campaigns", bodyBytes)
		handler.CreateCampaign(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_StartCampaign(t *testing.T) {
	t.Run("successful start", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Start", mock.Anything, int64(1), 0).
			Return(&model.BatchResult{Sent: 8, Failed: 2, Remaining: 5}, nil)

		ctx := withPathID(setupTestContext("POST", "/api/v1/campaigns/1/start", nil), "1")
		handler.StartCampaign(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.BatchResult
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, 8, response.Sent)
		assert.Equal(t, int64(5), response.Remaining)
	})

	t.Run("custom batch size", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		bodyBytes, _ := json.Marshal(startCampaignRequest{BatchSize: 25})
		svc.On("Start", mock.Anything, int64(1), 25).
			Return(&model.BatchResult{Sent: 25}, nil)

		ctx := withPathID(setupTestContext("POST", "/api/v1/campaigns/1/start", bodyBytes), "1")
		handler.StartCampaign(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("unauthenticated maps to 401", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Start", mock.Anything, int64(1), 0).Return(nil, services.ErrNotAuthenticated)

		ctx := withPathID(setupTestContext("POST", "/api/v1/campaigns/1/start", nil), "1")
		handler.StartCampaign(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
	})

	t.Run("no contacts maps to 400", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Start", mock.Anything, int64(1), 0).Return(nil, services.ErrNoContacts)

		ctx := withPathID(setupTestContext("POST", "/api/v1/campaigns/1/start", nil), "1")
		handler.StartCampaign(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("invalid id", func(t *testing.T) {
		handler := NewCampaignHandler(new(MockCampaignService))

		ctx := withPathID(setupTestContext("POST", "/api/v1/campaigns/abc/start", nil), "abc")
		handler.StartCampaign(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_PauseCampaign(t *testing.T) {
	t.Run("successful pause", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Pause", mock.Anything, int64(1)).
			Return(&model.Campaign{ID: 1, Status: model.CampaignStatusPaused}, nil)

		ctx := withPathID(setupTestContext("POST", "/api/v1/campaigns/1/pause", nil), "1")
		handler.PauseCampaign(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("not pausable maps to 409", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Pause", mock.Anything, int64(1)).Return(nil, services.ErrCampaignNotPausable)

		ctx := withPathID(setupTestContext("POST", "/api/v1/campaigns/1/pause", nil), "1")
		handler.PauseCampaign(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_DeleteCampaign(t *testing.T) {
	t.Run("successful delete", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Delete", mock.Anything, int64(1)).Return(nil)

		ctx := withPathID(setupTestContext("DELETE", "/api/v1/campaigns/1", nil), "1")
		handler.DeleteCampaign(ctx)

		assert.Equal(t, 204, ctx.Response.StatusCode())
	})

	t.Run("missing campaign maps to 404", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Delete", mock.Anything, int64(1)).Return(repository.ErrCampaignNotFound)

		ctx := withPathID(setupTestContext("DELETE", "/api/v1/campaigns/1", nil), "1")
		handler.DeleteCampaign(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("running campaign maps to 409", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Delete", mock.Anything, int64(1)).Return(services.ErrCampaignRunning)

		ctx := withPathID(setupTestContext("DELETE", "/api/v1/campaigns/1", nil), "1")
		handler.DeleteCampaign(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_GetCampaign(t *testing.T) {
	svc := new(MockCampaignService)
	handler := NewCampaignHandler(svc)

	svc.On("Stats", mock.Anything, int64(1)).Return(
		&model.Campaign{ID: 1, Name: "Promo", TotalContacts: 10},
		map[model.ContactStatus]int64{
			model.ContactStatusPending: 4,
			model.ContactStatusSent:    6,
		}, nil)

	ctx := withPathID(setupTestContext("GET", "/api/v1/campaigns/1", nil), "1")
	handler.GetCampaign(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response campaignStatsResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, int64(10), response.Campaign.TotalContacts)
	assert.Equal(t, int64(4), response.Contacts[model.ContactStatusPending])
}

func TestCampaignHandler_ListCampaigns(t *testing.T) {
	svc := new(MockCampaignService)
	handler := NewCampaignHandler(svc)

	svc.On("List", mock.Anything, mock.MatchedBy(func(f model.CampaignFilter) bool {
		return len(f.Statuses) == 1 && f.Statuses[0] == model.CampaignStatusRunning && f.Limit == 5
	})).Return([]*model.Campaign{{ID: 1}}, int64(1), nil)

	ctx := setupTestContext("GET", "/api/v1/campaigns?status=running&limit=5", nil)
	handler.ListCampaigns(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response campaignListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, int64(1), response.Total)
}
