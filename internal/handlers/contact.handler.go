package handlers

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/mselim/campaign-gateway/internal/model"
	xhttp "github.com/mselim/campaign-gateway/pkg/http"
)

type ImportService interface {
	ImportManual(ctx context.Context, campaignID int64, text string) (*model.ImportResult, error)
	ImportCSV(ctx context.Context, campaignID int64, r io.Reader) (*model.ImportResult, error)
	ImportCRM(ctx context.Context, campaignID int64) (*model.ImportResult, error)
	ListContacts(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error)
}

type ContactHandler struct {
	svc ImportService
}

func RegisterContactRoutes(e *router.Group, h *ContactHandler) {
	e.POST("/campaigns/{id}/contacts", h.ImportContacts)
	e.GET("/campaigns/{id}/contacts", h.ListContacts)
}

func NewContactHandler(importService ImportService) *ContactHandler {
	return &ContactHandler{
		svc: importService,
	}
}

type importRequest struct {
	Source string `json:"source"`
	Data   string `json:"data"`
}

type contactListResponse struct {
	Items []*model.Contact `json:"items"`
	Total int64            `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *ContactHandler) ImportContacts(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	var req importRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	var result *model.ImportResult
	switch req.Source {
	case "manual", "":
		result, err = h.svc.ImportManual(ctx, id, req.Data)
	case "csv":
		result, err = h.svc.ImportCSV(ctx, id, strings.NewReader(req.Data))
	case "crm":
		result, err = h.svc.ImportCRM(ctx, id)
	default:
		writeError(ctx, xhttp.StatusBadRequest, "source must be manual, csv or crm")
		return
	}
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, result)
}

func (h *ContactHandler) ListContacts(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	f := model.ContactFilter{CampaignID: id}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.ContactStatus(parts[i]))
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

	items, total, err := h.svc.ListContacts(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, contactListResponse{Items: items, Total: total})
}
