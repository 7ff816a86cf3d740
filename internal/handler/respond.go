package handler

import (
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"quantra/internal/svc"
	"quantra/internal/types"
)

// okData writes a success envelope.
func okData(w http.ResponseWriter, r *http.Request, data any) {
	httpx.OkJsonCtx(r.Context(), w, types.Response{Success: true, Data: data})
}

// okError reports a failure in-band: HTTP 200 with success=false, so callers
// only ever branch on the envelope.
func okError(w http.ResponseWriter, r *http.Request, err error) {
	httpx.OkJsonCtx(r.Context(), w, types.Response{Success: false, Error: err.Error()})
}

// resolveTraderID applies the single-trader default so clients of a
// one-trader deployment never need to name it.
func resolveTraderID(serverCtx *svc.ServiceContext, requested string) (string, error) {
	if serverCtx.Manager == nil || serverCtx.Config.Manager.Value == nil {
		return "", errors.New("no trading manager configured")
	}
	if requested != "" {
		return requested, nil
	}
	ids := serverCtx.Config.Manager.Value.TraderIDs()
	if len(ids) == 0 {
		return "", errors.New("no traders configured")
	}
	return ids[0], nil
}
