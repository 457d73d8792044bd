package server

import (
	"net/http"
	"time"

	"anon_messenger/internal/model"
	"anon_messenger/internal/utils/log"

	"go.uber.org/zap"
)

// HandleRegister issues a fresh anonymous identity. Public; guarded only by
// the per-origin registration limiter.
func (s *HttpServer) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := clientIP(r)

		allowed, err := s.regLimiter.Allow(ctx, ip)
		if err != nil {
			log.Error("registration limiter unavailable", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Service Temporarily Unavailable",
				"Unable to reach the session store. Please try again later.")
			return
		}
		if !allowed {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error:             "Rate limit exceeded",
				Message:           "Too many registration attempts. Please try again later.",
				RetryAfterMinutes: int(s.cfg.Limits.RegistrationWindow.Minutes()),
			})
			return
		}

		code, err := s.identityService.Issue(ctx)
		if err != nil {
			log.Error("issue identity failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Service Temporarily Unavailable",
				"Unable to reach the session store. Please try again later.")
			return
		}

		writeJSON(w, http.StatusOK, model.RegisterResponse{
			AnonymousCode:    code,
			ExpiresInMinutes: int(s.cfg.Identity.IdleTTL.Minutes()),
			Message:          "Anonymous identity created successfully",
		})
	}
}

// HandleRevoke deletes the caller's own code.
func (s *HttpServer) HandleRevoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := Principal(r)

		if err := s.identityService.Revoke(r.Context(), code); err != nil {
			log.Error("revoke failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Service Temporarily Unavailable",
				"Unable to reach the session store. Please try again later.")
			return
		}

		writeJSON(w, http.StatusOK, model.RevokeResponse{
			Code:    code,
			Message: "Anonymous identity revoked successfully",
		})
	}
}

// HandleStatus reports session liveness and the delivery metric.
func (s *HttpServer) HandleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		code := Principal(r)

		remaining, err := s.identityService.RemainingSeconds(ctx, code)
		if err != nil {
			log.Error("ttl query failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Service Temporarily Unavailable",
				"Unable to reach the session store. Please try again later.")
			return
		}

		resp := model.StatusResponse{
			AnonymousCode:    code,
			IsActive:         remaining > 0,
			RemainingSeconds: remaining,
			RemainingMinutes: remaining / 60,
			MessagesSent:     s.identityService.DeliveryCount(ctx, code),
		}
		if resp.IsActive {
			resp.Message = "Session is active"
		} else {
			resp.Message = "Session expired or not found"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleHealth reports store reachability.
func (s *HttpServer) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		redisState := "up"
		code := http.StatusOK
		if err := s.store.Ping(r.Context()); err != nil {
			status = "degraded"
			redisState = "down"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, map[string]any{
			"status":    status,
			"redis":     redisState,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
