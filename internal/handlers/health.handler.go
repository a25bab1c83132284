package handlers

import (
	"github.com/fasthttp/router"
	xhttp "github.com/mselim/campaign-gateway/pkg/http"
)

func RegisterHealthRoutes(r *router.Router) {
	r.GET("/health", func(ctx *xhttp.RequestCtx) {
		writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "healthy"})
	})
}
