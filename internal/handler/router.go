package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	alertshandler "github.com/lumenhealth/checkin/backend/internal/handler/alerts"
	checkinhandler "github.com/lumenhealth/checkin/backend/internal/handler/checkin"
	"github.com/lumenhealth/checkin/backend/internal/middleware"
	"github.com/lumenhealth/checkin/backend/internal/notify"
	checkinservice "github.com/lumenhealth/checkin/backend/internal/service/checkin"
	"github.com/lumenhealth/checkin/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the check-in services.
func NewRouter(orchestrator *checkinservice.Orchestrator, hub *notify.Hub, log *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	checkinHandler := checkinhandler.New(orchestrator)
	alertsHandler := alertshandler.New(orchestrator, hub, log)

	r.Route("/api", func(api chi.Router) {
		checkinHandler.RegisterRoutes(api)
		alertsHandler.RegisterRoutes(api)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
