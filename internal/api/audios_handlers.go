package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"concha-api/internal/models"
	"concha-api/internal/problem"
	"concha-api/internal/validate"
)

func audioSessionID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "session_id")
	sessionID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, problem.NewNotFound(fmt.Sprintf("No audio file exists with session_id '%s'.", raw))
	}
	return sessionID, nil
}

// audioPayload extracts and validates the audio record from the request.
// The record arrives either as a multipart form-data file under the field
// 'audio' (a .json file) or as a plain JSON request body.
func (h *Handler) audioPayload(r *http.Request) (models.Audio, error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		data, err := decodeJSONBody(r)
		if err != nil {
			return models.Audio{}, problem.NewValidation(
				"Request did not contain a form-data file 'audio', and request body is not JSON.")
		}
		return validate.Audio(data)
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return models.Audio{}, problem.NewValidation("Request must contain a form-data file 'audio'.")
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		return models.Audio{}, problem.NewValidation("Request must contain a form-data file 'audio'.")
	}
	defer file.Close()

	filename := strings.TrimSpace(header.Filename)
	extension := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if filename == "" || extension != "json" {
		return models.Audio{}, problem.NewValidation(
			fmt.Sprintf("'%s' is not an allowed file extension for field 'audio' (json).", filename))
	}

	decoder := json.NewDecoder(file)
	decoder.UseNumber()
	var data map[string]any
	if err := decoder.Decode(&data); err != nil {
		return models.Audio{}, problem.NewValidation(fmt.Sprintf("Malformed JSON file: %v.", err))
	}
	return validate.Audio(data)
}

func (h *Handler) CreateAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := h.audioPayload(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	created, err := h.Audios.Create(r.Context(), audio)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", absoluteURL(r, fmt.Sprintf("/audios/%d", created.SessionID)))
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetAudio(w http.ResponseWriter, r *http.Request) {
	sessionID, err := audioSessionID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audio, err := h.Audios.Get(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audio)
}

func (h *Handler) ListAudios(w http.ResponseWriter, r *http.Request) {
	audios, err := h.Audios.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audios)
}

func (h *Handler) UpdateAudio(w http.ResponseWriter, r *http.Request) {
	sessionID, err := audioSessionID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audio, err := h.audioPayload(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if audio.SessionID != sessionID {
		writeValidation(w, r, "Cannot modify an existing audio file's session_id.")
		return
	}
	// The record must already exist; update never creates.
	if _, err := h.Audios.Get(r.Context(), sessionID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	updated, err := h.Audios.Update(r.Context(), audio)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteAudio(w http.ResponseWriter, r *http.Request) {
	sessionID, err := audioSessionID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.Audios.Delete(r.Context(), sessionID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
