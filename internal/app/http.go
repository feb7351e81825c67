package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"folio/api/internal/auth"
	"folio/api/internal/cors"
	"folio/api/internal/draft"
	"folio/api/internal/search"
	"folio/api/internal/store"
	"folio/api/internal/uploads"
)

const serviceName = "folio-api"

// maxUploadBytes caps admin image uploads.
const maxUploadBytes = 10 << 20

type uploader interface {
	Get(ctx context.Context, filename string) (io.ReadCloser, string, error)
	Put(ctx context.Context, filename string, r io.Reader, size int64) error
}

// HTTPServer is the gateway: every request passes through the origin
// policy first, then (for protected routes) cookie validation, then
// exactly one target operation.
type HTTPServer struct {
	service *Service
	policy  *cors.Policy
	uploads uploader // nil when object storage is not configured
}

func NewHTTPServer(service *Service, policy *cors.Policy) *HTTPServer {
	return &HTTPServer{service: service, policy: policy}
}

// WithUploads attaches the image storage backend.
func (s *HTTPServer) WithUploads(u *uploads.Service) *HTTPServer {
	if u != nil {
		s.uploads = u
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	// Preflight: the middleware already applied the decision's headers;
	// an unknown origin gets 204 with no CORS headers and the browser
	// blocks the follow-up request.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		s.handleHealth(w, r)
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		// Revocation sets both Max-Age=0 and the epoch Expires; logout
		// succeeds even without a valid session.
		http.SetCookie(w, auth.ClearCookie(s.service.cfg.IsProduction()))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"message":   "Logged out",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/contact" {
		s.handleContactSubmit(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	parts := splitPath(r.URL.Path)

	// Public content reads
	if r.Method == http.MethodGet && len(parts) >= 2 && parts[0] == "api" {
		if handled := s.handlePublicContent(w, r, parts); handled {
			return
		}
	}

	// View counter: POST /api/{posts|projects}/{id}/view
	if r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[3] == "view" {
		if err := s.service.IncrementViews(r.Context(), parts[1], parts[2]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "api" && parts[1] == "uploads" {
		s.handleServeUpload(w, r, parts[2])
		return
	}

	// Everything below requires an authenticated admin session, which in
	// turn requires the caller's origin (when present) to be allow-listed.
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/me" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "email": session.Subject})
		return
	}

	if r.URL.Path == "/api/contact" && r.Method == http.MethodGet {
		s.handleContactList(w, r)
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "contact" {
		s.handleContactItem(w, r, session, parts)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/uploads" {
		s.handleUpload(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := s.service.Ping(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": now,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": now,
		"service":   serviceName,
	})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	token, err := s.service.Login(body.Email, body.Password)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	http.SetCookie(w, auth.SessionCookie(token, s.service.cfg.SessionTTL, s.service.cfg.IsProduction()))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Logged in",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *HTTPServer) handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	var input ContactInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	input.IPAddress = clientIP(r)
	input.UserAgent = r.UserAgent()

	m, err := s.service.SubmitContact(r.Context(), input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": m.ID})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		offset = parsed
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), search.Query{Text: q, Limit: limit, Offset: offset}))
}

func (s *HTTPServer) handlePublicContent(w http.ResponseWriter, r *http.Request, parts []string) bool {
	resource := parts[1]

	if len(parts) == 2 {
		var payload any
		var err error
		switch resource {
		case "posts":
			payload, err = s.service.ListPosts(r.Context())
			payload = map[string]any{"posts": payload}
		case "projects":
			payload, err = s.service.ListProjects(r.Context())
			payload = map[string]any{"projects": payload}
		case "certifications":
			payload, err = s.service.ListCertifications(r.Context())
			payload = map[string]any{"certifications": payload}
		case "testimonials":
			payload, err = s.service.ListTestimonials(r.Context())
			payload = map[string]any{"testimonials": payload}
		case "experience":
			payload, err = s.service.ListExperience(r.Context())
			payload = map[string]any{"experience": payload}
		default:
			return false
		}
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return true
		}
		writeJSON(w, http.StatusOK, payload)
		return true
	}

	if len(parts) == 3 {
		switch resource {
		case "posts":
			post, err := s.service.GetPost(r.Context(), parts[2])
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"post": post})
			return true
		case "projects":
			project, err := s.service.GetProject(r.Context(), parts[2])
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"project": project})
			return true
		}
	}

	return false
}

func (s *HTTPServer) handleContactList(w http.ResponseWriter, r *http.Request) {
	filter := store.ContactFilter{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Offset = parsed
		}
	}

	messages, err := s.service.ListContact(r.Context(), filter)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": renderMessages(messages)})
}

func (s *HTTPServer) handleContactItem(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	messageID := parts[2]

	if len(parts) == 3 && r.Method == http.MethodGet {
		m, err := s.service.GetContact(r.Context(), messageID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": renderMessage(m)})
		return
	}

	if len(parts) == 4 && parts[3] == "status" && r.Method == http.MethodPatch {
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		m, err := s.service.TransitionContact(r.Context(), messageID, body.Status)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": renderMessage(m)})
		return
	}

	if len(parts) == 4 && parts[3] == "reply" && r.Method == http.MethodPost {
		var body struct {
			Message string `json:"message"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		m, err := s.service.ReplyContact(r.Context(), messageID, body.Message, session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": renderMessage(m)})
		return
	}

	if len(parts) == 4 && parts[3] == "draft" && r.Method == http.MethodPost {
		text, err := s.service.DraftContactReply(r.Context(), messageID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"draft": text})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleServeUpload(w http.ResponseWriter, r *http.Request, filename string) {
	if s.uploads == nil {
		writeError(w, http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "Uploads are not configured", nil)
		return
	}
	obj, contentType, err := s.uploads.Get(r.Context(), filename)
	if err != nil {
		switch {
		case errors.Is(err, uploads.ErrDisallowedExtension), errors.Is(err, uploads.ErrInvalidFilename):
			writeError(w, http.StatusBadRequest, "INVALID_FILENAME", "Disallowed file name", nil)
		case errors.Is(err, uploads.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		default:
			writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage is unavailable", nil)
		}
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, obj); err != nil {
		log.Printf("serve upload %s: %v", filename, err)
	}
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		writeError(w, http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "Uploads are not configured", nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "file field is required", nil)
		return
	}
	defer file.Close()

	if err := s.uploads.Put(r.Context(), header.Filename, file, header.Size); err != nil {
		switch {
		case errors.Is(err, uploads.ErrDisallowedExtension), errors.Is(err, uploads.ErrInvalidFilename):
			writeError(w, http.StatusBadRequest, "INVALID_FILENAME", "Disallowed file name", nil)
		default:
			writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage is unavailable", nil)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "filename": header.Filename})
}

// requireSession enforces the protected-route gate: origin check first,
// then cookie validation. The 401 is uniform: a missing cookie, a bad
// signature, and an expired token are indistinguishable to the caller.
func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	if origin := r.Header.Get("Origin"); origin != "" && !s.policy.Allowed(origin) {
		writeError(w, http.StatusForbidden, "ORIGIN_REJECTED", "Origin not allowed", nil)
		return Session{}, false
	}

	cookie, err := r.Cookie(auth.CookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromCookie(cookie.Value)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		cors.Apply(writer.Header(), s.policy.Decide(r.Header.Get("Origin")))
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func renderMessage(m store.ContactMessage) map[string]any {
	payload := map[string]any{
		"id":        m.ID,
		"name":      m.Name,
		"email":     m.Email,
		"message":   m.Message,
		"status":    m.Status,
		"ipAddress": m.IPAddress,
		"userAgent": m.UserAgent,
		"createdAt": m.CreatedAt,
		"updatedAt": m.UpdatedAt,
	}
	if m.Reply != nil {
		payload["reply"] = map[string]any{
			"message": m.Reply.Message,
			"sentAt":  m.Reply.SentAt,
			"admin":   m.Reply.Admin,
		}
	}
	return payload
}

func renderMessages(messages []store.ContactMessage) []map[string]any {
	rendered := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		rendered = append(rendered, renderMessage(m))
	}
	return rendered
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
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
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
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
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, draft.ErrUnavailable) {
		return http.StatusBadGateway, "DRAFT_UNAVAILABLE", "Reply drafting is unavailable", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
