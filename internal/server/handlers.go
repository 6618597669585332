package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/lowc1012/bookeasy/internal/booking"
	"github.com/lowc1012/bookeasy/internal/cms"
	"github.com/lowc1012/bookeasy/internal/log"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details string            `json:"details,omitempty"`
	Hint    string            `json:"hint,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type successResponse struct {
	Success     bool                 `json:"success"`
	Message     string               `json:"message"`
	Appointment *booking.Appointment `json:"appointment,omitempty"`
}

type envVars struct {
	RedisURL bool `json:"REDIS_URL"`
	KVURL    bool `json:"KV_URL"`
}

type statusResponse struct {
	KVConfigured bool    `json:"kvConfigured"`
	Backend      string  `json:"backend"`
	Environment  string  `json:"environment"`
	EnvVars      envVars `json:"envVars"`
	Message      string  `json:"message"`
	Instructions string  `json:"instructions"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Logger().Warn("Failed to write response", zap.Error(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must hold a single JSON object")
	}
	return nil
}

func (a *api) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := decodeJSON(w, r, &req); err != nil {
		a.metrics.RecordBooking("invalid")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	appointment, err := a.booking.Book(r.Context(), &req)
	if err != nil {
		var verr *booking.ValidationError
		if errors.As(err, &verr) {
			a.metrics.RecordBooking("invalid")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Fields: verr.Fields})
			return
		}
		a.metrics.RecordBooking("error")
		log.Logger().Error("Error booking appointment", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to book appointment"})
		return
	}

	a.metrics.RecordBooking("booked")
	writeJSON(w, http.StatusOK, successResponse{
		Success:     true,
		Message:     "Appointment booked successfully",
		Appointment: appointment,
	})
}

func (a *api) getContent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.cms.Content(r.Context()))
}

func (a *api) saveContent(w http.ResponseWriter, r *http.Request) {
	var content cms.Content
	if err := decodeJSON(w, r, &content); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	log.Logger().Info("Attempting to save CMS content")
	err := a.cms.Save(r.Context(), &content)
	var invalid *cms.InvalidContentError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Content saved successfully"})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid content", Details: invalid.Err.Error()})
	case errors.Is(err, cms.ErrStorageNotConfigured):
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to save content",
			Message: "Storage might not be configured. Set REDIS_URL or KV_URL.",
			Hint:    "Provision a Redis database and pass its URL with --redis-url.",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to save content",
			Details: err.Error(),
			Hint:    "Check the server logs for more details.",
		})
	}
}

func (a *api) resetContent(w http.ResponseWriter, r *http.Request) {
	err := a.cms.Reset(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Content reset to defaults"})
	case errors.Is(err, cms.ErrStorageNotConfigured):
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to reset content",
			Message: "Storage might not be configured. Set REDIS_URL or KV_URL.",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to reset content", Details: err.Error()})
	}
}

func (a *api) status(w http.ResponseWriter, _ *http.Request) {
	status := a.cms.Status()
	resp := statusResponse{
		KVConfigured: status.Configured,
		Backend:      status.Backend,
		Environment:  a.cfg.Environment,
		EnvVars: envVars{
			RedisURL: a.cfg.RedisURL != "",
			KVURL:    a.cfg.KVURL != "",
		},
		Message:      "Storage is NOT configured. Content changes will not persist.",
		Instructions: "Set REDIS_URL or KV_URL to a Redis database and restart the server.",
	}
	if status.Configured {
		resp.Message = "Storage is configured correctly"
		resp.Instructions = "Your CMS should work correctly."
	}
	writeJSON(w, http.StatusOK, resp)
}
