package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/kelvinchng/storefront-backend/api/responses"
	"github.com/kelvinchng/storefront-backend/pkg/db"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
	pkgredis "github.com/kelvinchng/storefront-backend/pkg/redis"
)

const readinessTimeout = 3 * time.Second

func HealthLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"status": "ok"})
	}
}

// HealthReady probes the database and redis so the process only reports
// ready when its dependencies answer.
func HealthReady(database db.Pinger, cache pkgredis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		healthy := true

		if database == nil {
			checks["database"] = "unconfigured"
			healthy = false
		} else if err := database.Ping(ctx); err != nil {
			checks["database"] = "unreachable"
			healthy = false
		}

		if cache == nil {
			checks["redis"] = "unconfigured"
			healthy = false
		} else if err := cache.Ping(ctx); err != nil {
			checks["redis"] = "unreachable"
			healthy = false
		}

		if !healthy {
			err := pkgerrors.New(pkgerrors.CodeDependency, "service not ready").WithDetails(checks)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
