package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"quantra/internal/svc"
	"quantra/internal/types"
)

// AccountHandler returns the live account snapshot for a trader.
func AccountHandler(serverCtx *svc.ServiceContext) http.HandlerFunc {
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

		snapshot, err := serverCtx.Manager.AccountSnapshot(r.Context(), traderID)
		if err != nil {
			okError(w, r, err)
			return
		}
		okData(w, r, snapshot)
	}
}
