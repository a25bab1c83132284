package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/mselim/campaign-gateway/internal/model"
	xhttp "github.com/mselim/campaign-gateway/pkg/http"
)

type AuthService interface {
	RequestCode(ctx context.Context, phoneRaw string) (*model.Session, error)
	VerifyCode(ctx context.Context, code, password string) (*model.Session, error)
	Status(ctx context.Context) (*model.Session, error)
}

type AuthHandler struct {
	svc AuthService
}

func RegisterAuthRoutes(e *router.Group, h *AuthHandler) {
	e.POST("/auth/code", h.RequestCode)
	e.POST("/auth/verify", h.VerifyCode)
	e.GET("/auth/status", h.Status)
}

func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{
		svc: authService,
	}
}

type requestCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type verifyCodeRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Status          model.SessionStatus `json:"status"`
	PhoneNumber     string              `json:"phone_number,omitempty"`
	AuthenticatedAt string              `json:"authenticated_at,omitempty"`
}

func toSessionResponse(s *model.Session) sessionResponse {
	resp := sessionResponse{
		Status:      s.Status,
		PhoneNumber: s.PhoneNumber,
	}
	if s.AuthenticatedAt != nil {
		resp.AuthenticatedAt = s.AuthenticatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

/* --------------------------------- Routes ----------------------------------- */

func (h *AuthHandler) RequestCode(ctx *xhttp.RequestCtx) {
	var req requestCodeRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	session, err := h.svc.RequestCode(ctx, req.PhoneNumber)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusAccepted, toSessionResponse(session))
}

func (h *AuthHandler) VerifyCode(ctx *xhttp.RequestCtx) {
	var req verifyCodeRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Code == "" {
		writeError(ctx, xhttp.StatusBadRequest, "code is required")
		return
	}

	session, err := h.svc.VerifyCode(ctx, req.Code, req.Password)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, toSessionResponse(session))
}

func (h *AuthHandler) Status(ctx *xhttp.RequestCtx) {
	session, err := h.svc.Status(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, toSessionResponse(session))
}
