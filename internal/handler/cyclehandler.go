package handler

import (
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/rest/httpx"

	"quantra/internal/svc"
	"quantra/internal/types"
)

// CycleHandler runs one decision cycle for a trader and reports the
// per-symbol outcomes.
func CycleHandler(serverCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CycleRequest
		if err := httpx.Parse(r, &req); err != nil {
			okError(w, r, err)
			return
		}

		traderID, err := resolveTraderID(serverCtx, req.TraderID)
		if err != nil {
			okError(w, r, err)
			return
		}

		result, err := serverCtx.Manager.RunCycle(r.Context(), traderID)
		if err != nil {
			okError(w, r, err)
			return
		}

		executions := make([]types.ExecutionEntry, 0, len(result.Executions))
		for _, exec := range result.Executions {
			executions = append(executions, types.ExecutionEntry{
				Symbol:           exec.Symbol,
				Signal:           exec.Signal,
				Success:          exec.Success,
				OrderID:          exec.OrderID,
				ExecutedPrice:    exec.ExecutedPrice,
				ExecutedQuantity: exec.ExecutedQuantity,
				Error:            exec.Error,
				Warnings:         exec.Warnings,
			})
		}

		okData(w, r, types.CycleResponse{
			TraderID:    result.TraderID,
			Timestamp:   result.Timestamp.UTC().Format(time.RFC3339),
			Reasoning:   result.Reasoning,
			Decisions:   result.Decisions,
			Executions:  executions,
			JournalPath: result.JournalPath,
		})
	}
}
