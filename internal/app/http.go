package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paradash/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	logger     *zap.Logger
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, logger: service.logger, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "areas":
		s.handleAreas(w, r, parts)
	case "projects":
		s.handleProjects(w, r, parts)
	case "tasks":
		s.handleTasks(w, r, parts)
	case "resources":
		s.handleResources(w, r, parts)
	case "archives":
		s.handleArchives(w, r, parts)
	case "favorites":
		s.handleFavorites(w, r, parts)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	if configured, err := s.service.PingCache(ctx); configured {
		checks["cache"] = map[string]any{"status": "ok"}
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["cache"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// entityID parses the id segment at parts[2], writing the 400 itself.
func entityID(w http.ResponseWriter, parts []string, label string) (int64, bool) {
	id, ok := parseID(parts[2])
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("Invalid %s ID", label), nil)
		return 0, false
	}
	return id, true
}

func forceDelete(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("force")), "true")
}

func (s *HTTPServer) handleAreas(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListAreas(r.Context())
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodPost:
			var body AreaInput
			if !s.decode(w, r, &body) {
				return
			}
			payload, err := s.service.CreateArea(r.Context(), body)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	areaID, ok := entityID(w, parts, "area")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.GetArea(r.Context(), areaID)
		s.respond(w, r, http.StatusOK, payload, err)
	case http.MethodPut:
		var body AreaInput
		if !s.decode(w, r, &body) {
			return
		}
		payload, err := s.service.UpdateArea(r.Context(), areaID, body)
		s.respond(w, r, http.StatusOK, payload, err)
	case http.MethodDelete:
		payload, err := s.service.DeleteArea(r.Context(), areaID, forceDelete(r))
		s.respond(w, r, http.StatusOK, payload, err)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			areaID, err := optionalQueryID(r, "areaId")
			if err != nil {
				s.fail(w, r, err)
				return
			}
			payload, err := s.service.ListProjects(r.Context(), areaID)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodPost:
			var body ProjectInput
			if !s.decode(w, r, &body) {
				return
			}
			payload, err := s.service.CreateProject(r.Context(), body)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	projectID, ok := entityID(w, parts, "project")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.GetProject(r.Context(), projectID)
		s.respond(w, r, http.StatusOK, payload, err)
	case http.MethodPut:
		var body ProjectInput
		if !s.decode(w, r, &body) {
			return
		}
		payload, err := s.service.UpdateProject(r.Context(), projectID, body)
		s.respond(w, r, http.StatusOK, payload, err)
	case http.MethodDelete:
		payload, err := s.service.DeleteProject(r.Context(), projectID, forceDelete(r))
		s.respond(w, r, http.StatusOK, payload, err)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			var (
				filter store.TaskFilter
				err    error
			)
			if filter.ProjectID, err = optionalQueryID(r, "projectId"); err != nil {
				s.fail(w, r, err)
				return
			}
			if filter.AreaID, err = optionalQueryID(r, "areaId"); err != nil {
				s.fail(w, r, err)
				return
			}
			payload, err := s.service.ListTasks(r.Context(), filter)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodPost:
			var body TaskInput
			if !s.decode(w, r, &body) {
				return
			}
			payload, err := s.service.CreateTask(r.Context(), body)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}
	if len(parts) > 4 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	taskID, ok := entityID(w, parts, "task")
	if !ok {
		return
	}

	if len(parts) == 4 {
		switch {
		case parts[3] == "complete" && r.Method == http.MethodPatch:
			var body struct {
				Completed *bool `json:"completed"`
			}
			if !s.decode(w, r, &body) {
				return
			}
			if body.Completed == nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "completed is required", nil)
				return
			}
			payload, err := s.service.CompleteTask(r.Context(), taskID, *body.Completed)
			s.respond(w, r, http.StatusOK, payload, err)
		case parts[3] == "duplicate" && r.Method == http.MethodPost:
			payload, err := s.service.DuplicateTask(r.Context(), taskID)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.GetTask(r.Context(), taskID)
		s.respond(w, r, http.StatusOK, payload, err)
	case http.MethodPut:
		var body TaskInput
		if !s.decode(w, r, &body) {
			return
		}
		payload, err := s.service.UpdateTask(r.Context(), taskID, body)
		s.respond(w, r, http.StatusOK, payload, err)
	case http.MethodDelete:
		payload, err := s.service.DeleteTask(r.Context(), taskID)
		s.respond(w, r, http.StatusOK, payload, err)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleResources(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			var (
				filter store.ResourceFilter
				err    error
			)
			if filter.ProjectID, err = optionalQueryID(r, "projectId"); err != nil {
				s.fail(w, r, err)
				return
			}
			if filter.AreaID, err = optionalQueryID(r, "areaId"); err != nil {
				s.fail(w, r, err)
				return
			}
			payload, err := s.service.ListResources(r.Context(), filter)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodPost:
			var body ResourceInput
			if !s.decode(w, r, &body) {
				return
			}
			payload, err := s.service.CreateResource(r.Context(), body)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	resourceID, ok := entityID(w, parts, "resource")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.GetResource(r.Context(), resourceID)
		s.respond(w, r, http.StatusOK, payload, err)
	case http.MethodPut:
		var body ResourceInput
		if !s.decode(w, r, &body) {
			return
		}
		payload, err := s.service.UpdateResource(r.Context(), resourceID, body)
		s.respond(w, r, http.StatusOK, payload, err)
	case http.MethodDelete:
		payload, err := s.service.DeleteResource(r.Context(), resourceID)
		s.respond(w, r, http.StatusOK, payload, err)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleArchives(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListArchives(r.Context(), r.URL.Query().Get("type"))
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodDelete:
			var body struct {
				IDs []flexID `json:"ids"`
			}
			if err := decodeBody(r, &body); err != nil {
				s.fail(w, r, invalidArchiveIDs())
				return
			}
			payload, err := s.service.DeleteArchives(r.Context(), body.IDs)
			s.respond(w, r, http.StatusOK, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 4 && parts[3] == "restore" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		archiveID, ok := entityID(w, parts, "archive")
		if !ok {
			return
		}
		payload, err := s.service.RestoreArchive(r.Context(), archiveID)
		s.respond(w, r, http.StatusOK, payload, err)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleFavorites(w http.ResponseWriter, r *http.Request, parts []string) {
	query := r.URL.Query()

	if len(parts) == 3 && parts[2] == "check" && r.Method == http.MethodGet {
		payload, err := s.service.CheckFavorite(r.Context(), query.Get("userId"), query.Get("itemId"), query.Get("itemType"))
		s.respond(w, r, http.StatusOK, payload, err)
		return
	}
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.ListFavorites(r.Context(), query.Get("userId"))
		s.respond(w, r, http.StatusOK, payload, err)
	case http.MethodPost:
		var body FavoriteInput
		if !s.decode(w, r, &body) {
			return
		}
		payload, err := s.service.AddFavorite(r.Context(), body)
		s.respond(w, r, http.StatusCreated, payload, err)
	case http.MethodDelete:
		payload, err := s.service.RemoveFavorite(r.Context(), query.Get("userId"), query.Get("itemId"), query.Get("itemType"))
		s.respond(w, r, http.StatusOK, payload, err)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, status int, payload any, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, payload)
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrDuplicate) {
		return http.StatusConflict, "CONFLICT", "Already exists", nil
	}
	if errors.Is(err, store.ErrMissingReference) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Referenced area or project does not exist", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
