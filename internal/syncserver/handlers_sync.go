package syncserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)

	var batch domain.SyncBatch
	if status, err := s.decode(w, r, &batch); err != nil {
		s.metrics.batches.WithLabelValues("rejected").Inc()
		writeJSON(w, status, domain.SyncResponse{Error: err.Error()})
		return
	}

	if batch.UserID != userID {
		s.metrics.batches.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusForbidden, domain.SyncResponse{Error: "userId does not match " + headerUserID})
		return
	}

	if len(batch.Sessions) > s.cfg.MaxSessionsPerSync || len(batch.BrowserSessions) > s.cfg.MaxBrowserSessionsPerSync {
		s.metrics.batches.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusRequestEntityTooLarge, domain.SyncResponse{
			Error: fmt.Sprintf("at most %d sessions and %d browser sessions per request",
				s.cfg.MaxSessionsPerSync, s.cfg.MaxBrowserSessionsPerSync),
		})
		return
	}

	if err := s.validate.Struct(batch); err != nil {
		s.metrics.batches.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, domain.SyncResponse{Error: validationMessage(err)})
		return
	}

	res, err := s.stores.Sync.ApplyBatch(r.Context(), batch)
	if err != nil {
		s.metrics.batches.WithLabelValues("failed").Inc()
		s.logger.Error("sync batch failed",
			"user_id", userID,
			"sessions", len(batch.Sessions),
			"browser_sessions", len(batch.BrowserSessions),
			"error", err)
		writeJSON(w, http.StatusInternalServerError, domain.SyncResponse{Error: "failed to store batch"})
		return
	}

	s.metrics.batches.WithLabelValues("applied").Inc()
	s.metrics.records.WithLabelValues("watch_session").Add(float64(res.SessionsUpserted))
	s.metrics.records.WithLabelValues("browser_session").Add(float64(res.BrowserSessionsUpserted))

	writeJSON(w, http.StatusOK, domain.SyncResponse{
		Success:                 true,
		SessionsUpserted:        res.SessionsUpserted,
		BrowserSessionsUpserted: res.BrowserSessionsUpserted,
	})
}

func (s *Server) handleSessionsSince(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)

	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "since must be a non-negative Unix millisecond timestamp")
			return
		}
		since = n
	}

	out, err := s.stores.Sync.Since(r.Context(), userID, since)
	if err != nil {
		s.logger.Error("failed to query sessions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query sessions")
		return
	}
	if out.Sessions == nil {
		out.Sessions = []domain.WatchSession{}
	}
	if out.BrowserSessions == nil {
		out.BrowserSessions = []domain.BrowserSession{}
	}
	writeJSON(w, http.StatusOK, out)
}

// decode reads a size-capped JSON body into v. On failure it returns the
// status to answer with.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) (int, error) {
	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err)
	}
	return 0, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("invalid field %s: failed %q", fe.Namespace(), fe.Tag())
}
