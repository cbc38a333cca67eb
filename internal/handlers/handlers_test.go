package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"licznik.app/server/internal/cache"
	"licznik.app/server/internal/journal"
	"licznik.app/server/internal/models"
	"licznik.app/server/internal/storage"
	"licznik.app/server/internal/tally"
)

const (
	testUserCode  = "kod"
	testAdminCode = "admin-kod"
)

var testCategories = []models.Category{"lysy", "pawel"}

// recordingMedia counts uploads and records deletes so tests can assert
// that rejected requests never touch the image host.
type recordingMedia struct {
	mu      sync.Mutex
	uploads int
	deleted []string
}

func (m *recordingMedia) Upload(ctx context.Context, data []byte, contentType string) (models.ImageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	id := fmt.Sprintf("obj-%d", m.uploads)
	return models.ImageRef{URL: "https://img.test/" + id, ID: id}, nil
}

func (m *recordingMedia) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *recordingMedia) uploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}

func newTestServer(t *testing.T) (*gin.Engine, storage.Store, *recordingMedia) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewFileStore("", testCategories)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	logger := zap.NewNop().Sugar()
	engine := tally.NewEngine(store, testCategories, logger)
	mediaStore := &recordingMedia{}
	j := journal.New(store, engine, mediaStore, logger, journal.Options{
		HistoryLimit:     50,
		DestructiveReset: true,
	})
	h := New(j, engine, mediaStore, cache.Disabled{}, logger)
	return NewRouter(h, testUserCode, testAdminCode, logger), store, mediaStore
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

// entryForm builds a multipart submission body.
func entryForm(t *testing.T, fields map[string]string, image []byte, gallery [][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if image != nil {
		fw, err := w.CreateFormFile("image", "photo.png")
		if err != nil {
			t.Fatalf("create image part: %v", err)
		}
		fw.Write(image)
	}
	for i, img := range gallery {
		fw, err := w.CreateFormFile("gallery", fmt.Sprintf("gallery-%d.png", i))
		if err != nil {
			t.Fatalf("create gallery part: %v", err)
		}
		fw.Write(img)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func perform(router *gin.Engine, method, path, code string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if code != "" {
		req.Header.Set("X-Access-Code", code)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createEntry(t *testing.T, router *gin.Engine, code, category string) models.Entry {
	t.Helper()
	body, ct := entryForm(t, map[string]string{"category": category}, nil, nil)
	w := perform(router, http.MethodPost, "/api/entries", code, body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", w.Code, w.Body.String())
	}
	var resp models.CreateEntryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return resp.Entry
}

func getData(t *testing.T, router *gin.Engine, code string) models.DataResponse {
	t.Helper()
	w := perform(router, http.MethodGet, "/api/data", code, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("data returned %d: %s", w.Code, w.Body.String())
	}
	var resp models.DataResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode data response: %v", err)
	}
	return resp
}

func TestGateRejectsMissingOrWrongCode(t *testing.T) {
	router, store, mediaStore := newTestServer(t)

	body, ct := entryForm(t, map[string]string{"category": "lysy"}, pngBytes(t, 10, 10), nil)
	for _, code := range []string{"", "zgadnij"} {
		w := perform(router, http.MethodPost, "/api/entries", code, body, ct)
		if w.Code != http.StatusForbidden {
			t.Errorf("create with code %q returned %d, want 403", code, w.Code)
		}
		var resp models.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
			t.Errorf("403 body %q is not the error envelope", w.Body.String())
		}

		w = perform(router, http.MethodGet, "/api/data", code, nil, "")
		if w.Code != http.StatusForbidden {
			t.Errorf("data with code %q returned %d, want 403", code, w.Code)
		}
	}

	// Zero observable side effects: no upload, no counter, no entry.
	if n := mediaStore.uploadCount(); n != 0 {
		t.Errorf("media uploads = %d for rejected requests, want 0", n)
	}
	set, _ := store.CounterSet(context.Background())
	for cat, count := range set {
		if count != 0 {
			t.Errorf("counter %s = %d, want 0", cat, count)
		}
	}
	entries, _ := store.ListEntries(context.Background(), 10)
	if len(entries) != 0 {
		t.Errorf("journal has %d entries, want 0", len(entries))
	}
}

func TestCreateAndReadBack(t *testing.T) {
	router, _, _ := newTestServer(t)

	entry := createEntry(t, router, testUserCode, "lysy")
	if entry.Category != "lysy" {
		t.Errorf("entry category = %s, want lysy", entry.Category)
	}

	data := getData(t, router, testUserCode)
	if data.Counters["lysy"] != 1 || data.Counters["pawel"] != 0 {
		t.Errorf("counters = %v, want lysy=1 pawel=0", data.Counters)
	}
	if len(data.Entries) != 1 || data.Entries[0].ID != entry.ID {
		t.Errorf("entries = %v, want the created entry", data.Entries)
	}
	if data.IsAdmin {
		t.Error("user code reported as admin")
	}

	if !getData(t, router, testAdminCode).IsAdmin {
		t.Error("admin code not reported as admin")
	}
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	router, store, mediaStore := newTestServer(t)

	body, ct := entryForm(t, map[string]string{"category": "unknown-category"}, pngBytes(t, 10, 10), nil)
	w := perform(router, http.MethodPost, "/api/entries", testUserCode, body, ct)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("create returned %d, want 400", w.Code)
	}

	// Validation failed before any upload was attempted.
	if n := mediaStore.uploadCount(); n != 0 {
		t.Errorf("media uploads = %d, want 0", n)
	}
	set, _ := store.CounterSet(context.Background())
	for cat, count := range set {
		if count != 0 {
			t.Errorf("counter %s = %d, want 0", cat, count)
		}
	}
}

func TestCreateRejectsPartialLocation(t *testing.T) {
	router, store, _ := newTestServer(t)

	body, ct := entryForm(t, map[string]string{"category": "lysy", "lat": "52.23"}, nil, nil)
	w := perform(router, http.MethodPost, "/api/entries", testUserCode, body, ct)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("create returned %d, want 400", w.Code)
	}

	entries, _ := store.ListEntries(context.Background(), 10)
	if len(entries) != 0 {
		t.Errorf("journal has %d entries after rejected create", len(entries))
	}
}

func TestCreateWithImages(t *testing.T) {
	router, _, mediaStore := newTestServer(t)

	fields := map[string]string{
		"category": "pawel",
		"title":    "dowód",
		"text":     "zdjęcia w załączeniu",
		"lat":      "52.2297",
		"lng":      "21.0122",
	}
	body, ct := entryForm(t, fields, pngBytes(t, 20, 20), [][]byte{pngBytes(t, 10, 10), pngBytes(t, 10, 10)})
	w := perform(router, http.MethodPost, "/api/entries", testUserCode, body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", w.Code, w.Body.String())
	}

	var resp models.CreateEntryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if resp.Entry.Image == nil {
		t.Error("entry has no primary image")
	}
	if len(resp.Entry.Gallery) != 2 {
		t.Errorf("gallery has %d images, want 2", len(resp.Entry.Gallery))
	}
	if resp.Entry.Location == nil {
		t.Error("entry has no location")
	}
	if n := mediaStore.uploadCount(); n != 3 {
		t.Errorf("media uploads = %d, want 3", n)
	}
}

func TestDeleteRequiresAdmin(t *testing.T) {
	router, _, _ := newTestServer(t)

	entry := createEntry(t, router, testUserCode, "lysy")

	w := perform(router, http.MethodDelete, "/api/entries/"+entry.ID, testUserCode, nil, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("delete with user code returned %d, want 403", w.Code)
	}

	data := getData(t, router, testUserCode)
	if len(data.Entries) != 1 {
		t.Error("entry vanished despite rejected delete")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	router, store, _ := newTestServer(t)

	createEntry(t, router, testUserCode, "lysy")
	entry := createEntry(t, router, testUserCode, "lysy")

	for i := 0; i < 2; i++ {
		w := perform(router, http.MethodDelete, "/api/entries/"+entry.ID, testAdminCode, nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("delete #%d returned %d: %s", i+1, w.Code, w.Body.String())
		}
		var resp models.DeleteEntryResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || !resp.OK {
			t.Errorf("delete #%d body %q is not the ok envelope", i+1, w.Body.String())
		}
	}

	set, _ := store.CounterSet(context.Background())
	if set["lysy"] != 1 {
		t.Errorf("counter = %d after double delete, want 1 (no double decrement)", set["lysy"])
	}
}

func TestResetClearsCountersAndHistory(t *testing.T) {
	router, _, _ := newTestServer(t)

	createEntry(t, router, testUserCode, "lysy")
	createEntry(t, router, testUserCode, "pawel")

	w := perform(router, http.MethodPost, "/api/reset", testUserCode, nil, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("reset with user code returned %d, want 403", w.Code)
	}

	w = perform(router, http.MethodPost, "/api/reset", testAdminCode, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("reset returned %d: %s", w.Code, w.Body.String())
	}

	data := getData(t, router, testAdminCode)
	for cat, count := range data.Counters {
		if count != 0 {
			t.Errorf("counter %s = %d after reset, want 0", cat, count)
		}
	}
	if len(data.Entries) != 0 {
		t.Errorf("journal has %d entries after destructive reset, want 0", len(data.Entries))
	}
}

func TestHealthIsUngated(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := perform(router, http.MethodGet, "/health", "", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("health returned %d, want 200", w.Code)
	}
}
