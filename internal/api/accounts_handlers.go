package api

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"concha-api/internal/problem"
	"concha-api/internal/storage"
	"concha-api/internal/validate"
)

var (
	allowedImageExtensions = map[string]struct{}{"jpg": {}, "jpeg": {}, "png": {}}
	allowedImageMimetypes  = map[string]struct{}{"image/jpeg": {}, "image/png": {}}
)

// accountID reads the id path parameter. A value that is not an integer can
// never address a stored record, so it reports the same not-found shape as a
// lookup miss.
func accountID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, problem.NewNotFound(fmt.Sprintf("No user info exists with id '%s'.", raw))
	}
	return id, nil
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	data, err := decodeJSONBody(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	info, err := validate.UserInfo(data)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	created, err := h.Users.Create(r.Context(), info)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", absoluteURL(r, fmt.Sprintf("/accounts/%d", created.ID)))
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	info, err := h.Users.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter storage.UserFilter
	if query.Has("name") {
		name := query.Get("name")
		filter.Name = &name
	}
	if query.Has("email") {
		email := query.Get("email")
		filter.Email = &email
	}
	if query.Has("address") {
		address := query.Get("address")
		filter.Address = &address
	}
	matches, err := h.Users.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	data, err := decodeJSONBody(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	info, err := validate.UserInfo(data)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	updated, err := h.Users.Update(r.Context(), id, info)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.Users.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *Handler) UploadAccountImage(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeValidation(w, r, "Request must contain a form-data file 'image'.")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeValidation(w, r, "Request must contain a form-data file 'image'.")
		return
	}
	defer file.Close()

	filename := strings.TrimSpace(header.Filename)
	if filename == "" {
		writeValidation(w, r, "Request must contain a form-data file 'image'.")
		return
	}
	extension := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if _, ok := allowedImageExtensions[extension]; !ok {
		writeValidation(w, r, fmt.Sprintf("'%s' is not an allowed file extension for field 'image' (jpeg, png).", filename))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if _, ok := allowedImageMimetypes[contentType]; !ok {
		writeValidation(w, r, fmt.Sprintf("'%s' is not an allowed mimetype for field 'image' (image/jpeg, image/png).", contentType))
		return
	}

	body, err := io.ReadAll(file)
	if err != nil {
		writeDomainError(w, r, fmt.Errorf("read image upload: %w", err))
		return
	}
	refreshed, err := h.Users.UploadImage(r.Context(), id, contentType, body)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshed)
}
