package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestUploadEndpoint(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:5000":     "http://127.0.0.1:5000/upload",
		"https://docs.example.com/": "https://docs.example.com/upload",
		"ws://localhost:5000":       "http://localhost:5000/upload",
		"wss://host/app?x=1#frag":   "https://host/app/upload",
	}
	for origin, want := range cases {
		got, err := uploadEndpoint(origin)
		require.NoError(t, err, origin)
		require.Equal(t, want, got)
	}

	_, err := uploadEndpoint("   ")
	require.Error(t, err)
	_, err = uploadEndpoint("ftp://host")
	require.Error(t, err)
}

func TestUploadSendsMultipartFile(t *testing.T) {
	var gotName, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upload", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, err := io.ReadAll(f)
		require.NoError(t, err)
		gotName, gotBody = hdr.Filename, string(b)
		_ = json.NewEncoder(w).Encode(map[string]string{"filename": "stored_" + hdr.Filename})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	require.NoError(t, err)

	name, err := c.Upload(context.Background(), writeFile(t, "Report.PDF", "%PDF-1.7 body"))
	require.NoError(t, err)
	require.Equal(t, "stored_Report.PDF", name)
	require.Equal(t, "Report.PDF", gotName)
	require.Equal(t, "%PDF-1.7 body", gotBody)
}

func TestUploadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "File type not allowed"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	require.NoError(t, err)
	_, err = c.Upload(context.Background(), writeFile(t, "a.pdf", "x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "File type not allowed")
}

func TestUploadNonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	require.NoError(t, err)
	_, err = c.Upload(context.Background(), writeFile(t, "a.pdf", "x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "504")
}

func TestUploadRejectsNonPDF(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", 0)
	require.NoError(t, err)
	_, err = c.Upload(context.Background(), writeFile(t, "notes.txt", "x"))
	require.True(t, errors.Is(err, ErrNotPDF))
}
