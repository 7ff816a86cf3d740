package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"quantra/internal/svc"
)

// RegisterHandlers wires the operational API routes.
func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/api/v1/cycle",
				Handler: CycleHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/risk",
				Handler: RiskHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/account",
				Handler: AccountHandler(serverCtx),
			},
		},
	)
}
