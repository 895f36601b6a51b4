// Package server exposes pipeline runs over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BartekS5/paysync/internal/etl"
	"github.com/BartekS5/paysync/pkg/logger"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string        `json:"error"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type Server struct {
	runner etl.Runner
}

func New(runner etl.Runner) *Server {
	return &Server{runner: runner}
}

// Routes returns the HTTP handler. POST / and POST /run trigger a run.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/{$}", s.handleRun)
	return mux
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	var req etl.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err), nil)
		return
	}
	if details := validateRequest(req); len(details) > 0 {
		writeError(w, http.StatusBadRequest, "invalid request", details)
		return
	}

	logger.Infof("HTTP run request: %+v", req)
	summary, err := s.runner.Run(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if etl.IsConfigError(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func validateRequest(req etl.Request) []ErrorDetail {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ErrorDetail{{Message: err.Error()}}
	}

	details := make([]ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		var msg string
		switch fe.Tag() {
		case "required_without":
			msg = "one of table or resource is required"
		case "datetime":
			msg = fmt.Sprintf("%s must be a date in %s format", field, fe.Param())
		default:
			msg = fmt.Sprintf("%s is invalid", field)
		}
		details = append(details, ErrorDetail{Field: field, Message: msg})
	}
	return details
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details []ErrorDetail) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}
