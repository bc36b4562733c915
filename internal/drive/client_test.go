package drive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeDrive struct {
	srv        *httptest.Server
	listCalls  atomic.Int32
	failFirst  bool
	uploadMeta map[string]any
	uploadBody string
}

func newFakeDrive(t *testing.T) *fakeDrive {
	t.Helper()
	fd := &fakeDrive{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "drive-token", "token_type": "Bearer", "expires_in": 3600})
	})

	mux.HandleFunc("GET /drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		n := fd.listCalls.Add(1)
		if fd.failFirst && n == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") != "Bearer drive-token" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 401, "message": "Invalid Credentials"}})
			return
		}
		if q := r.URL.Query().Get("q"); q != "'folder-1' in parents and trashed = false" {
			http.Error(w, "unexpected query "+q, http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"files":[
			{"id":"f1","name":"Lecture 1.pdf","mimeType":"application/pdf","size":"2048","modifiedTime":"2026-03-01T10:00:00Z","webViewLink":"https://drive.google.com/file/d/f1"},
			{"id":"f2","name":"Syllabus","mimeType":"application/vnd.google-apps.document","modifiedTime":"2026-02-01T10:00:00Z"}
		]}`)
	})

	mux.HandleFunc("POST /upload/drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("uploadType") != "multipart" {
			http.Error(w, "bad upload type", http.StatusBadRequest)
			return
		}
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/related" {
			http.Error(w, "bad content type", http.StatusBadRequest)
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])

		part, err := mr.NextPart()
		if err != nil {
			http.Error(w, "missing metadata", http.StatusBadRequest)
			return
		}
		json.NewDecoder(part).Decode(&fd.uploadMeta)

		part, err = mr.NextPart()
		if err != nil {
			http.Error(w, "missing media", http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(part)
		fd.uploadBody = string(b)

		io.WriteString(w, `{"id":"new-id","name":"notes.txt","mimeType":"text/plain","size":"5"}`)
	})

	fd.srv = httptest.NewServer(mux)
	t.Cleanup(fd.srv.Close)
	return fd
}

func (fd *fakeDrive) client(refresh string) *Client {
	return New(context.Background(), Options{
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: refresh,
		FolderID:     "folder-1",
		TokenURL:     fd.srv.URL + "/token",
		APIBase:      fd.srv.URL + "/drive/v3",
		UploadBase:   fd.srv.URL + "/upload/drive/v3",
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
}

func TestListFiles(t *testing.T) {
	fd := newFakeDrive(t)

	files, err := fd.client("refresh").ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].ID != "f1" || files[0].Size != 2048 || files[0].ModifiedTime.Year() != 2026 {
		t.Errorf("unexpected first file: %+v", files[0])
	}
	if files[1].Size != 0 {
		t.Errorf("docs have no size, got %d", files[1].Size)
	}
}

func TestListFilesRetries(t *testing.T) {
	fd := newFakeDrive(t)
	fd.failFirst = true

	files, err := fd.client("refresh").ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 files, got %d", len(files))
	}
	if n := fd.listCalls.Load(); n != 2 {
		t.Errorf("expected 2 list calls, got %d", n)
	}
}

func TestListFilesBadRefreshToken(t *testing.T) {
	fd := newFakeDrive(t)

	_, err := fd.client("revoked").ListFiles(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected refresh token")
	}
	if fd.listCalls.Load() != 0 {
		t.Error("API should not be called without a token")
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":{"code":403,"message":"The user does not have sufficient permissions"}}`)
	}))
	defer srv.Close()

	c := New(context.Background(), Options{RefreshToken: "r", TokenURL: srv.URL + "/token", APIBase: srv.URL})
	// Bypass the token source to hit the API directly
	c.http = srv.Client()

	_, err := c.ListFiles(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || !strings.Contains(apiErr.Message, "sufficient permissions") {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
}

func TestUpload(t *testing.T) {
	fd := newFakeDrive(t)

	file, err := fd.client("refresh").Upload(context.Background(), "notes.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if file.ID != "new-id" || file.Size != 5 {
		t.Errorf("unexpected file: %+v", file)
	}
	if fd.uploadMeta["name"] != "notes.txt" {
		t.Errorf("metadata name = %v", fd.uploadMeta["name"])
	}
	parents, _ := fd.uploadMeta["parents"].([]any)
	if len(parents) != 1 || parents[0] != "folder-1" {
		t.Errorf("metadata parents = %v", fd.uploadMeta["parents"])
	}
	if fd.uploadBody != "hello" {
		t.Errorf("media body = %q", fd.uploadBody)
	}
}
