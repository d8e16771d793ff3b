package syncserver

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)

	env, err := s.stores.Settings.Get(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to load settings", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if env == nil {
		env = &domain.SettingsEnvelope{UserID: userID, Settings: json.RawMessage("null")}
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)

	var env domain.SettingsEnvelope
	if status, err := s.decode(w, r, &env); err != nil {
		writeError(w, status, err.Error())
		return
	}
	if env.UserID != userID {
		writeError(w, http.StatusForbidden, "userId does not match "+headerUserID)
		return
	}

	trimmed := bytes.TrimSpace(env.Settings)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		writeError(w, http.StatusBadRequest, "settings is required")
		return
	}
	var settings domain.Settings
	if err := json.Unmarshal(trimmed, &settings); err != nil {
		writeError(w, http.StatusBadRequest, "settings must be a JSON object")
		return
	}
	if err := s.validate.Struct(settings); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	env.Settings = trimmed
	env.UpdatedAt = s.clock.Now().UnixMilli()
	if err := s.stores.Settings.Put(r.Context(), env); err != nil {
		s.logger.Error("failed to store settings", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store settings")
		return
	}
	writeJSON(w, http.StatusOK, env)
}
