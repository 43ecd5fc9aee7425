package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/config"
	authsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/auth"
	billingsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/billing"
	matchingsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/matching"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/participants"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/transport/http/handlers"
)

type Dependencies struct {
	MatchingEngine *matchingsvc.Engine
	BillingEngine  *billingsvc.Engine
	Directory      *participants.Directory
	JWT            *authsvc.JWTManager
	Logger         *zap.Logger
	Config         config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	matchHandler := handlers.NewMatchHandler(deps.MatchingEngine, deps.Directory)
	sessionHandler := handlers.NewSessionHandler(deps.MatchingEngine)
	billingHandler := handlers.NewBillingHandler(deps.BillingEngine, deps.Directory)
	authMW := AuthMiddleware(deps.JWT, deps.Logger)

	r.Get("/health", healthHandler.Get)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMW)
		r.Post("/queue/join", matchHandler.Join)
		r.Post("/queue/leave", matchHandler.Leave)
		r.Post("/swipe", matchHandler.Swipe)
		r.Post("/sessions/{session_id}/events", sessionHandler.Events)
		r.Get("/billing/rules", billingHandler.Rules)
		r.Post("/billing/rules/reload", billingHandler.Reload)
		r.Get("/billing/balance", billingHandler.Balance)
	})
}
