package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func seedBlob(t *testing.T, store BlobStore, patientID, fileName, contentType, content string) *BlobMetadata {
	t.Helper()
	meta := BlobMetadata{
		FileName:    fileName,
		ContentType: contentType,
		PatientID:   patientID,
		ReportID:    "report-1",
		CreatedBy:   "test-user",
	}
	result, err := store.Upload(context.Background(), meta, strings.NewReader(content))
	if err != nil {
		t.Fatalf("seedBlob: %v", err)
	}
	return result
}

// ---------------------------------------------------------------------------
// Store tests
// ---------------------------------------------------------------------------

func TestInMemoryBlobStore_Upload(t *testing.T) {
	store := NewInMemoryBlobStore()
	content := "<h1>Informe</h1>"

	result, err := store.Upload(context.Background(), BlobMetadata{
		FileName:    "informe.html",
		ContentType: "text/html",
		PatientID:   "patient-1",
		CreatedBy:   "user-1",
	}, strings.NewReader(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if result.FileName != "informe.html" {
		t.Errorf("expected FileName=informe.html, got %s", result.FileName)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("expected Size=%d, got %d", len(content), result.Size)
	}
	if result.CreatedAt.IsZero() {
		t.Fatal("expected non-zero CreatedAt")
	}
}

func TestInMemoryBlobStore_DefaultContentType(t *testing.T) {
	store := NewInMemoryBlobStore()
	result, err := store.Upload(context.Background(), BlobMetadata{FileName: "raw.bin"}, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ContentType != "application/octet-stream" {
		t.Errorf("expected octet-stream, got %s", result.ContentType)
	}
}

func TestInMemoryBlobStore_Download(t *testing.T) {
	store := NewInMemoryBlobStore()
	seeded := seedBlob(t, store, "p1", "a.html", "text/html", "hello")

	rc, meta, err := store.Download(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "hello" {
		t.Errorf("expected hello, got %s", data)
	}
	if meta.ID != seeded.ID {
		t.Errorf("expected ID %s, got %s", seeded.ID, meta.ID)
	}
}

func TestInMemoryBlobStore_DownloadNotFound(t *testing.T) {
	store := NewInMemoryBlobStore()
	_, _, err := store.Download(context.Background(), "missing")
	if !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestInMemoryBlobStore_Delete(t *testing.T) {
	store := NewInMemoryBlobStore()
	seeded := seedBlob(t, store, "p1", "a.html", "text/html", "hello")

	if err := store.Delete(context.Background(), seeded.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.GetMetadata(context.Background(), seeded.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound after delete, got %v", err)
	}
	if err := store.Delete(context.Background(), seeded.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound on second delete, got %v", err)
	}
}

func TestInMemoryBlobStore_MetadataIsCopy(t *testing.T) {
	store := NewInMemoryBlobStore()
	seeded := seedBlob(t, store, "p1", "a.html", "text/html", "hello")

	meta, _ := store.GetMetadata(context.Background(), seeded.ID)
	meta.FileName = "changed"

	again, _ := store.GetMetadata(context.Background(), seeded.ID)
	if again.FileName != "a.html" {
		t.Errorf("metadata mutation leaked into store: %s", again.FileName)
	}
}

func TestInMemoryBlobStore_Upload_FileTooLarge(t *testing.T) {
	store := NewInMemoryBlobStore()
	big := bytes.Repeat([]byte("x"), MaxFileSize+1)
	_, err := store.Upload(context.Background(), BlobMetadata{FileName: "big.bin"}, bytes.NewReader(big))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestInMemoryBlobStore_Upload_MissingFileName(t *testing.T) {
	store := NewInMemoryBlobStore()
	_, err := store.Upload(context.Background(), BlobMetadata{}, strings.NewReader("x"))
	if !errors.Is(err, ErrMissingFileName) {
		t.Fatalf("expected ErrMissingFileName, got %v", err)
	}
}

func TestInMemoryBlobStore_SHA256Hash(t *testing.T) {
	store := NewInMemoryBlobStore()
	content := "hash me"
	result := seedBlob(t, store, "p1", "h.txt", "text/plain", content)

	want := fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
	if result.Hash != want {
		t.Errorf("expected hash %s, got %s", want, result.Hash)
	}
}

func TestInMemoryBlobStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryBlobStore()
	var wg sync.WaitGroup
	ids := make(chan string, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			meta, err := store.Upload(context.Background(), BlobMetadata{
				FileName: fmt.Sprintf("f%d.txt", n),
			}, strings.NewReader("data"))
			if err != nil {
				t.Errorf("upload %d: %v", n, err)
				return
			}
			ids <- meta.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != 20 {
		t.Errorf("expected 20 blobs, got %d", len(seen))
	}
}

// ---------------------------------------------------------------------------
// Handler tests
// ---------------------------------------------------------------------------

func newTestHandler() (*BlobHandler, *InMemoryBlobStore, *echo.Echo) {
	store := NewInMemoryBlobStore()
	return NewBlobHandler(store), store, echo.New()
}

func requestAs(method, target string, roles []string, patientIDs ...string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := auth.WithClaims(req.Context(), &auth.Claims{Roles: roles, PatientIDs: patientIDs})
	return req.WithContext(ctx)
}

func TestBlobHandler_Download(t *testing.T) {
	h, store, e := newTestHandler()
	seeded := seedBlob(t, store, "p1", "informe.html", "text/html", "<p>ok</p>")

	rec := httptest.NewRecorder()
	c := e.NewContext(requestAs(http.MethodGet, "/", []string{auth.RoleProfessional}), rec)
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID)

	if err := h.handleDownload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "<p>ok</p>" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "informe.html") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
}

func TestBlobHandler_DownloadFamilyRestricted(t *testing.T) {
	h, store, e := newTestHandler()
	seeded := seedBlob(t, store, "p1", "informe.html", "text/html", "x")

	c := e.NewContext(requestAs(http.MethodGet, "/", []string{auth.RoleFamily}, "p2"), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID)

	err := h.handleDownload(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(requestAs(http.MethodGet, "/", []string{auth.RoleFamily}, "p1"), rec)
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID)
	if err := h.handleDownload(c); err != nil {
		t.Fatalf("expected own patient to be allowed, got %v", err)
	}
}

func TestBlobHandler_GetMetadata(t *testing.T) {
	h, store, e := newTestHandler()
	seeded := seedBlob(t, store, "p1", "informe.html", "text/html", "x")

	rec := httptest.NewRecorder()
	c := e.NewContext(requestAs(http.MethodGet, "/", []string{auth.RoleSecretary}), rec)
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID)

	if err := h.handleGetMetadata(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var meta BlobMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta.ReportID != "report-1" {
		t.Errorf("expected report-1, got %s", meta.ReportID)
	}
}

func TestBlobHandler_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(requestAs(http.MethodGet, "/", []string{auth.RoleAdmin}), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := h.handleGetMetadata(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestBlobHandler_Delete(t *testing.T) {
	h, store, e := newTestHandler()
	seeded := seedBlob(t, store, "p1", "informe.html", "text/html", "x")

	rec := httptest.NewRecorder()
	c := e.NewContext(requestAs(http.MethodDelete, "/", []string{auth.RoleAdmin}), rec)
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID)

	if err := h.handleDelete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
