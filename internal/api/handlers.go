package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"concha-api/internal/observability/logging"
	"concha-api/internal/problem"
	"concha-api/internal/service"
)

// maxMultipartMemory bounds the in-memory buffer used when parsing
// multipart uploads.
const maxMultipartMemory = 32 << 20

type Handler struct {
	Users  *service.UserService
	Audios *service.AudioService
}

func NewHandler(users *service.UserService, audios *service.AudioService) *Handler {
	return &Handler{Users: users, Audios: audios}
}

// Ping reports liveness.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("running"))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDomainError renders tagged domain errors as problem details and
// everything else as the opaque 500 shape. Untagged errors are logged with
// the request-scoped logger; their detail never reaches the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if status, prob, ok := problem.StatusFor(err); ok {
		writeJSON(w, status, prob)
		return
	}
	if logger := logging.LoggerFromContext(r.Context()); logger != nil {
		logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, http.StatusInternalServerError, problem.NewGeneric(http.StatusInternalServerError,
		"The server encountered an internal error and was unable to complete your request."))
}

func writeValidation(w http.ResponseWriter, r *http.Request, title string) {
	writeDomainError(w, r, problem.NewValidation(title))
}

// decodeJSONBody reads the request body as a generic JSON object. Numbers
// are preserved as json.Number so the field checks can tell ints and floats
// apart. A mimetype other than application/json is rejected up front.
func decodeJSONBody(r *http.Request) (map[string]any, error) {
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || contentType != "application/json" {
		return nil, problem.NewValidation("The request mimetype did not indicate JSON (application/json).")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	var data map[string]any
	if err := decoder.Decode(&data); err != nil {
		return nil, problem.NewValidation(fmt.Sprintf("Request body is not a JSON object: %v.", err))
	}
	return data, nil
}

// absoluteURL joins a resource path onto the scheme and host the request
// arrived on, for use in Location headers.
func absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if isSecureRequest(r) {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: path}
	return u.String()
}

func isSecureRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		for _, p := range strings.Split(proto, ",") {
			if strings.EqualFold(strings.TrimSpace(p), "https") {
				return true
			}
		}
	}
	return false
}
