package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/mselim/campaign-gateway/internal/repository"
	"github.com/mselim/campaign-gateway/internal/services"
	xhttp "github.com/mselim/campaign-gateway/pkg/http"
)

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP status codes.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, repository.ErrCampaignNotFound),
		errors.Is(err, repository.ErrContactNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNotAuthenticated),
		errors.Is(err, services.ErrTwoFactorRequired):
		writeError(ctx, xhttp.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrCodeRequestCooldown):
		writeError(ctx, xhttp.StatusTooManyRequests, err.Error())
	case errors.Is(err, services.ErrCampaignNotStartable),
		errors.Is(err, services.ErrCampaignNotPausable),
		errors.Is(err, services.ErrCampaignRunning),
		errors.Is(err, services.ErrCampaignNotEditable):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNetworkUnavailable):
		writeError(ctx, xhttp.StatusServiceUnavailable, err.Error())
	default:
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	}
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, ok := ctx.UserValue(name).(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
