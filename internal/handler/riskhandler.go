package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"quantra/internal/svc"
	"quantra/internal/types"
)

// RiskHandler returns the position risk ledger metrics for a trader.
func RiskHandler(serverCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TraderQuery
		if err := httpx.Parse(r, &req); err != nil {
			okError(w, r, err)
			return
		}

		traderID, err := resolveTraderID(serverCtx, req.TraderID)
		if err != nil {
			okError(w, r, err)
			return
		}

		metrics, err := serverCtx.Manager.RiskMetrics(traderID)
		if err != nil {
			okError(w, r, err)
			return
		}
		okData(w, r, metrics)
	}
}
