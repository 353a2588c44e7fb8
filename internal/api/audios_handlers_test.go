package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func audioJSON(sessionID int64) string {
	ticks := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		ticks = append(ticks, fmt.Sprintf("%.1f", -90.5+float64(i)))
	}
	return fmt.Sprintf(`{"session_id":%d,"ticks":[%s],"selected_tick":3,"step_count":7}`,
		sessionID, strings.Join(ticks, ","))
}

func TestCreateAudioFromJSONBody(t *testing.T) {
	f := newTestFixture()
	rec := f.doJSON(t, http.MethodPost, "/audios", audioJSON(1))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "http://example.com/audios/1" {
		t.Fatalf("unexpected Location header %q", got)
	}

	rec = f.do(t, http.MethodGet, "/audios/1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["session_id"] != float64(1) || body["selected_tick"] != float64(3) {
		t.Fatalf("unexpected record %v", body)
	}
	if len(body["ticks"].([]any)) != 15 {
		t.Fatalf("expected 15 ticks, got %v", body["ticks"])
	}
}

func TestCreateAudioFromMultipartFile(t *testing.T) {
	f := newTestFixture()
	buf, contentType := multipartFile(t, "audio", "session.json", "application/json", []byte(audioJSON(2)))
	rec := f.do(t, http.MethodPost, "/audios", buf, map[string]string{"Content-Type": contentType})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/audios/2", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected stored record, got %d", rec.Code)
	}
}

func TestCreateAudioRejectsNonJSONFile(t *testing.T) {
	f := newTestFixture()
	buf, contentType := multipartFile(t, "audio", "session.txt", "text/plain", []byte(audioJSON(2)))
	rec := f.do(t, http.MethodPost, "/audios", buf, map[string]string{"Content-Type": contentType})
	body := requireProblem(t, rec, http.StatusBadRequest, "validation-error")
	if body["title"] != "'session.txt' is not an allowed file extension for field 'audio' (json)." {
		t.Fatalf("unexpected title %v", body["title"])
	}
}

func TestCreateAudioRejectsMalformedFile(t *testing.T) {
	f := newTestFixture()
	buf, contentType := multipartFile(t, "audio", "session.json", "application/json", []byte("{not json"))
	rec := f.do(t, http.MethodPost, "/audios", buf, map[string]string{"Content-Type": contentType})
	body := requireProblem(t, rec, http.StatusBadRequest, "validation-error")
	if title, _ := body["title"].(string); !strings.HasPrefix(title, "Malformed JSON file:") {
		t.Fatalf("unexpected title %q", title)
	}
}

func TestCreateAudioRejectsNonJSONBody(t *testing.T) {
	f := newTestFixture()
	rec := f.do(t, http.MethodPost, "/audios", strings.NewReader("session_id=1"), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	body := requireProblem(t, rec, http.StatusBadRequest, "validation-error")
	if body["title"] != "Request did not contain a form-data file 'audio', and request body is not JSON." {
		t.Fatalf("unexpected title %v", body["title"])
	}
}

func TestCreateAudioBusinessRules(t *testing.T) {
	f := newTestFixture()
	payload := `{"session_id":1,"ticks":[-50,-50,-50],"selected_tick":20,"step_count":1}`
	rec := f.doJSON(t, http.MethodPost, "/audios", payload)
	body := requireProblem(t, rec, http.StatusBadRequest, "validation-error")
	subErrors, ok := body["errors"].([]any)
	if !ok || len(subErrors) != 2 {
		t.Fatalf("expected 2 sub-errors, got %v", body["errors"])
	}
}

func TestCreateAudioDuplicateSession(t *testing.T) {
	f := newTestFixture()
	if rec := f.doJSON(t, http.MethodPost, "/audios", audioJSON(5)); rec.Code != http.StatusCreated {
		t.Fatalf("seed create failed: %d", rec.Code)
	}
	rec := f.doJSON(t, http.MethodPost, "/audios", audioJSON(5))
	body := requireProblem(t, rec, http.StatusBadRequest, "validation-error")
	if body["title"] != "Audio file with session_id 5 already exists." {
		t.Fatalf("unexpected title %v", body["title"])
	}
	if f.audios.Len() != 1 {
		t.Fatalf("expected store unchanged, got %d blobs", f.audios.Len())
	}
}

func TestGetAudioNotFound(t *testing.T) {
	f := newTestFixture()

	rec := f.do(t, http.MethodGet, "/audios/9", nil, nil)
	body := requireProblem(t, rec, http.StatusNotFound, "no-such-instance-error")
	if body["title"] != "No audio file exists with session_id '9'." {
		t.Fatalf("unexpected title %v", body["title"])
	}

	rec = f.do(t, http.MethodGet, "/audios/not-a-number", nil, nil)
	requireProblem(t, rec, http.StatusNotFound, "no-such-instance-error")
}

func TestListAudios(t *testing.T) {
	f := newTestFixture()
	for _, id := range []int64{3, 1} {
		if rec := f.doJSON(t, http.MethodPost, "/audios", audioJSON(id)); rec.Code != http.StatusCreated {
			t.Fatalf("seed create failed: %d", rec.Code)
		}
	}
	rec := f.do(t, http.MethodGet, "/audios", nil, nil)
	var records []map[string]any
	mustDecodeList(t, rec, &records)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %v", records)
	}
}

func TestUpdateAudio(t *testing.T) {
	f := newTestFixture()
	if rec := f.doJSON(t, http.MethodPost, "/audios", audioJSON(4)); rec.Code != http.StatusCreated {
		t.Fatalf("seed create failed: %d", rec.Code)
	}

	updated := strings.Replace(audioJSON(4), `"selected_tick":3`, `"selected_tick":14`, 1)
	rec := f.doJSON(t, http.MethodPut, "/audios/4", updated)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["selected_tick"] != float64(14) {
		t.Fatalf("expected updated selected_tick, got %v", body["selected_tick"])
	}
}

func TestUpdateAudioSessionIDMismatch(t *testing.T) {
	f := newTestFixture()
	if rec := f.doJSON(t, http.MethodPost, "/audios", audioJSON(4)); rec.Code != http.StatusCreated {
		t.Fatalf("seed create failed: %d", rec.Code)
	}

	rec := f.doJSON(t, http.MethodPut, "/audios/4", audioJSON(5))
	body := requireProblem(t, rec, http.StatusBadRequest, "validation-error")
	if body["title"] != "Cannot modify an existing audio file's session_id." {
		t.Fatalf("unexpected title %v", body["title"])
	}

	// The stored record is untouched.
	rec = f.do(t, http.MethodGet, "/audios/4", nil, nil)
	if got := decodeBody(t, rec); got["selected_tick"] != float64(3) {
		t.Fatalf("expected blob unchanged, got %v", got)
	}
}

func TestUpdateAudioMissingRecord(t *testing.T) {
	f := newTestFixture()
	rec := f.doJSON(t, http.MethodPut, "/audios/8", audioJSON(8))
	requireProblem(t, rec, http.StatusNotFound, "no-such-instance-error")
}

func TestDeleteAudio(t *testing.T) {
	f := newTestFixture()
	if rec := f.doJSON(t, http.MethodPost, "/audios", audioJSON(6)); rec.Code != http.StatusCreated {
		t.Fatalf("seed create failed: %d", rec.Code)
	}

	rec := f.do(t, http.MethodDelete, "/audios/6", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("expected 200 empty, got %d %q", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/audios/6", nil, nil)
	requireProblem(t, rec, http.StatusNotFound, "no-such-instance-error")

	rec = f.do(t, http.MethodDelete, "/audios/6", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat delete, got %d", rec.Code)
	}
}
