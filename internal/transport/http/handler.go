package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"quiz-results-service/internal/app"
	"quiz-results-service/internal/domain"
	"quiz-results-service/internal/logger"
)

const (
	headerUserID   = "X-User-ID"
	headerUserName = "X-User-Name"
	headerUserRole = "X-User-Role"
	roleAdmin      = "admin"
)

// Handler exposes the result use cases over JSON/HTTP. Authentication happens
// upstream; the authenticated user id arrives in the X-User-ID header and the
// display name, when known, in X-User-Name.
type Handler struct {
	service  *app.ResultService
	validate *validator.Validate
	log      *logger.Logger
}

func NewHandler(service *app.ResultService, log *logger.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

type submitRequest struct {
	QuizID    string `json:"quizId" validate:"required"`
	Answers   []*int `json:"answers" validate:"required"`
	TimeSpent int    `json:"timeSpent" validate:"gte=0"`
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Register mounts the result routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /results/leaderboard/{quizId}", h.leaderboard)

	mux.HandleFunc("POST /results", h.requireUser(h.submit))
	mux.HandleFunc("GET /results", h.requireUser(h.listResults))
	mux.HandleFunc("GET /results/stats", h.requireUser(h.stats))
	mux.HandleFunc("GET /results/quiz/{quizId}", h.requireUser(h.quizResult))
	mux.HandleFunc("DELETE /results/quiz/{quizId}", h.requireUser(h.deleteResult))
	mux.HandleFunc("DELETE /quizzes/{quizId}/results", h.requireAdmin(h.purgeQuiz))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, userID string) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Status: "fail", Message: "invalid JSON body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Status: "fail", Message: validationMessage(err)})
		return
	}

	h.registerUsername(r, userID, r.Header.Get(headerUserName))

	report, err := h.service.SubmitAttempt(r.Context(), userID, req.QuizID, req.Answers, req.TimeSpent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Result saved successfully",
		"result":  report,
	})
}

func (h *Handler) listResults(w http.ResponseWriter, r *http.Request, userID string) {
	results, err := h.service.UserResults(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request, userID string) {
	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (h *Handler) quizResult(w http.ResponseWriter, r *http.Request, userID string) {
	result, err := h.service.QuizResult(r.Context(), userID, r.PathValue("quizId"))
	if errors.Is(err, domain.ErrResultNotFound) {
		h.writeJSON(w, http.StatusOK, map[string]any{
			"result":  nil,
			"message": "No result found for this quiz",
		})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (h *Handler) deleteResult(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.service.DeleteResult(r.Context(), userID, r.PathValue("quizId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "Result deleted successfully"})
}

func (h *Handler) purgeQuiz(w http.ResponseWriter, r *http.Request, _ string) {
	removed, err := h.service.PurgeQuizResults(r.Context(), r.PathValue("quizId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context(), r.PathValue("quizId"), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"leaderboard": lb.Entries})
}

// registerUsername stores the display name for leaderboards. A failure only
// costs the name, so the submission goes ahead.
func (h *Handler) registerUsername(r *http.Request, userID, username string) {
	if err := h.service.RegisterUsername(r.Context(), userID, username); err != nil {
		h.log.Warn("register username failed", "userId", userID, "error", err)
	}
}

// parseLimit returns 0 (the service default) for missing or non-numeric input.
func parseLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return limit
}

type userHandlerFunc func(w http.ResponseWriter, r *http.Request, userID string)

func (h *Handler) requireUser(next userHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(headerUserID))
		if userID == "" {
			h.writeJSON(w, http.StatusUnauthorized, errorBody{Status: "fail", Message: "authentication required"})
			return
		}
		next(w, r, userID)
	}
}

func (h *Handler) requireAdmin(next userHandlerFunc) http.HandlerFunc {
	return h.requireUser(func(w http.ResponseWriter, r *http.Request, userID string) {
		if r.Header.Get(headerUserRole) != roleAdmin {
			h.writeJSON(w, http.StatusForbidden, errorBody{Status: "fail", Message: "admin role required"})
			return
		}
		next(w, r, userID)
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Status: "fail", Message: err.Error()}
	if status >= http.StatusInternalServerError {
		body.Status = "error"
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			body.Message = "Something went wrong"
		}
	}
	h.writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("encode response", "error", err)
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
