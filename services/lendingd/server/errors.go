package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"crosslend/native/common"
)

type problem struct {
	Code     string `json:"code"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

type problemEnvelope struct {
	Error problem `json:"error"`
}

func writeProblem(w http.ResponseWriter, status int, code, category, message string) {
	recordCode(w, code)
	writeJSON(w, status, problemEnvelope{Error: problem{Code: code, Category: category, Message: message}})
}

// statusFor maps ledger error categories onto HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, common.ErrModulePaused) {
		return http.StatusServiceUnavailable
	}
	switch common.CategoryOf(err) {
	case common.CategoryValidation:
		return http.StatusBadRequest
	case common.CategoryState:
		return http.StatusConflict
	case common.CategoryFinancial, common.CategoryRisk, common.CategoryCrossChain:
		return http.StatusUnprocessableEntity
	case common.CategoryAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("lendingd: request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		message = "internal error"
	}
	writeProblem(w, status, common.CodeOf(err), string(common.CategoryOf(err)), message)
}

func badRequest(w http.ResponseWriter, message string) {
	writeProblem(w, http.StatusBadRequest, "InvalidRequest", string(common.CategoryValidation), message)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
