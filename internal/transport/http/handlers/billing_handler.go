package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/auth"
	billingsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/billing"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/participants"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/transport/http/dto"
	httperrors "github.com/MSK-101/Juicy-meets-web-sub002/internal/transport/http/errors"
)

type BillingHandler struct {
	engine    *billingsvc.Engine
	directory *participants.Directory
}

func NewBillingHandler(engine *billingsvc.Engine, directory *participants.Directory) *BillingHandler {
	return &BillingHandler{engine: engine, directory: directory}
}

func (h *BillingHandler) Rules(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.engine == nil {
		writeInternal(w, "BILLING_UNAVAILABLE", "billing engine is unavailable")
		return
	}

	rules := h.engine.Rules()
	resp := dto.BillingRulesResponse{Rules: make([]dto.DeductionRuleResponse, 0, len(rules))}
	for _, rule := range rules {
		resp.Rules = append(resp.Rules, dto.DeductionRuleResponse{
			ThresholdSeconds: rule.ThresholdSeconds,
			Coins:            rule.Coins,
			Name:             rule.Name,
		})
	}

	httperrors.Write(w, http.StatusOK, resp)
}

func (h *BillingHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.engine == nil {
		writeInternal(w, "BILLING_UNAVAILABLE", "billing engine is unavailable")
		return
	}

	if err := h.engine.Reload(r.Context()); err != nil {
		writeInternal(w, "RELOAD_FAILED", "failed to reload deduction rules")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.BillingReloadResponse{OK: true, Count: len(h.engine.Rules())})
}

func (h *BillingHandler) Balance(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.directory == nil {
		writeInternal(w, "BILLING_UNAVAILABLE", "participant directory is unavailable")
		return
	}

	p, err := h.directory.Get(r.Context(), identity.ParticipantID)
	if err != nil {
		if errors.Is(err, participants.ErrNotFound) {
			writeNotFound(w, "PARTICIPANT_NOT_FOUND", "participant not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load balance")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.BalanceResponse{
		ParticipantID: p.ID,
		CoinBalance:   p.CoinBalance,
	})
}
