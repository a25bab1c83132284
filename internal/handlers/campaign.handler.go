package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/mselim/campaign-gateway/internal/model"
	xhttp "github.com/mselim/campaign-gateway/pkg/http"
)

type CampaignService interface {
	Create(ctx context.Context, p model.CampaignCreateRequest) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)
	Start(ctx context.Context, id int64, batchSize int) (*model.BatchResult, error)
	Pause(ctx context.Context, id int64) (*model.Campaign, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, id int64) (*model.Campaign, map[model.ContactStatus]int64, error)
}

type CampaignHandler struct {
	svc CampaignService
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler) {
	e.POST("/campaigns", h.CreateCampaign)
	e.GET("/campaigns", h.ListCampaigns)
	e.GET("/campaigns/{id}", h.GetCampaign)
	e.POST("/campaigns/{id}/start", h.StartCampaign)
	e.POST("/campaigns/{id}/pause", h.PauseCampaign)
	e.DELETE("/campaigns/{id}", h.DeleteCampaign)
}

func NewCampaignHandler(campaignService CampaignService) *CampaignHandler {
	return &CampaignHandler{
		svc: campaignService,
	}
}

type createCampaignRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	MessageTemplate string `json:"message_template"`
	ScheduledAt     string `json:"scheduled_at"`
}

type startCampaignRequest struct {
	BatchSize int `json:"batch_size"`
}

type campaignListResponse struct {
	Items []*model.Campaign `json:"items"`
	Total int64             `json:"total"`
}

type campaignStatsResponse struct {
	Campaign *model.Campaign               `json:"campaign"`
	Contacts map[model.ContactStatus]int64 `json:"contacts"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	var req createCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	p := model.CampaignCreateRequest{
		Name:            req.Name,
		Description:     req.Description,
		MessageTemplate: req.MessageTemplate,
	}
	if req.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "scheduled_at must be RFC3339")
			return
		}
		p.ScheduledAt = &t
	}

	campaign, err := h.svc.Create(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, campaign)
}

func (h *CampaignHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	campaign, counts, err := h.svc.Stats(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, campaignStatsResponse{Campaign: campaign, Contacts: counts})
}

func (h *CampaignHandler) ListCampaigns(ctx *xhttp.RequestCtx) {
	var f model.CampaignFilter

	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.CampaignStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, campaignListResponse{Items: items, Total: total})
}

func (h *CampaignHandler) StartCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	var req startCampaignRequest
	if body := ctx.PostBody(); len(body) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	result, err := h.svc.Start(ctx, id, req.BatchSize)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, result)
}

func (h *CampaignHandler) PauseCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	campaign, err := h.svc.Pause(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, campaign)
}

func (h *CampaignHandler) DeleteCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	if err := h.svc.Delete(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusNoContent)
}
