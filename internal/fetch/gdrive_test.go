package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseDriveURL(t *testing.T) {
	tests := []struct {
		url        string
		wantID     string
		wantDirect bool
	}{
		{"https://drive.google.com/file/d/1AbC-xyz/view", "1AbC-xyz", false},
		{"https://drive.google.com/file/u/0/d/1AbC/edit", "1AbC", false},
		{"https://drive.google.com/uc?id=1AbC&export=download", "1AbC", true},
		{"https://drive.google.com/open?id=XYZ", "XYZ", false},
		{"https://docs.google.com/document/d/DOC/htmlview", "DOC", false},
		{"https://example.org/uc?id=1AbC", "", true},
		{"https://example.org/model.bin", "", false},
		{"https://drive.google.com/drive/folders/abc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			id, direct := ParseDriveURL(tt.url)
			require.Equal(t, tt.wantID, id)
			require.Equal(t, tt.wantDirect, direct)
		})
	}
}

func TestConfirmationURL(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			"href",
			`<a id="uc-download-link" href="/uc?export=download&amp;confirm=t&amp;id=F">Download</a>`,
			"https://docs.google.com/uc?export=download&confirm=t&id=F",
		},
		{
			"form",
			`<form id="download-form" action="https://drive.usercontent.google.com/download?id=F&amp;confirm=t" method="get">`,
			"https://drive.usercontent.google.com/download?id=F&confirm=t",
		},
		{
			"json",
			`{"downloadUrl":"https://doc-0.googleusercontent.com/x?e=download&id=F"}`,
			"https://doc-0.googleusercontent.com/x?e=download&id=F",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfirmationURL(tt.page)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := ConfirmationURL(`<p class="uc-error-subcaption">Too many users have viewed this file</p>`)
	require.ErrorContains(t, err, "Too many users")

	_, err = ConfirmationURL("<html></html>")
	require.Error(t, err)
}

// driveTransport sends every request to the test server, keeping the
// original host in the path so the handler can tell them apart.
type driveTransport struct {
	target *url.URL
}

func (d driveTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Path = "/" + r.URL.Host + r.URL.Path
	r.URL.Scheme = d.target.Scheme
	r.URL.Host = d.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

func TestDownloadUnwrapsDriveConfirmation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/drive.google.com/uc":
			if r.URL.Query().Get("id") != "FILE" {
				http.Error(w, "wrong id", http.StatusBadRequest)
				return
			}
			w.Write([]byte(`<form id="download-form" action="https://files.example.org/real?id=FILE&amp;confirm=t">`))
		case "/files.example.org/real":
			w.Header().Set("Content-Disposition", `attachment; filename="model.bin"`)
			w.Write([]byte("payload"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	target, _ := url.Parse(srv.URL)

	base := t.TempDir()
	f := New(WithHTTPClient(&http.Client{Transport: driveTransport{target: target}}))
	got, err := f.Download(context.Background(), Request{
		Tool: "ocrd-x", URL: "https://drive.google.com/file/d/FILE/view", BaseDir: base, Name: "model.bin",
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "ocrd-x", "model.bin"), got)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestDownloadDriveFallsBackWhenUnconfirmed(t *testing.T) {
	pages := map[string]string{
		"no link":     `<html><body>Nothing to confirm here</body></html>`,
		"quota error": `<p class="uc-error-subcaption">Too many users have viewed or downloaded this file recently.</p>`,
	}
	for name, page := range pages {
		t.Run(name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/drive.google.com/uc" || r.URL.Query().Get("id") != "FILE" {
					http.NotFound(w, r)
					return
				}
				hits.Add(1)
				w.Write([]byte(page))
			}))
			defer srv.Close()
			target, _ := url.Parse(srv.URL)

			core, logs := observer.New(zap.WarnLevel)
			base := t.TempDir()
			f := New(
				WithHTTPClient(&http.Client{Transport: driveTransport{target: target}}),
				WithLogger(zap.New(core)),
			)
			got, err := f.Download(context.Background(), Request{
				Tool: "ocrd-x", URL: "https://drive.google.com/file/d/FILE/view", BaseDir: base, Name: "model.bin",
			})
			require.NoError(t, err)

			// The direct link is fetched as is after the failed unwrap.
			require.EqualValues(t, 2, hits.Load())
			data, err := os.ReadFile(got)
			require.NoError(t, err)
			require.Equal(t, page, string(data))
			require.Equal(t, 1, logs.FilterMessage("cannot unwrap drive url").Len())
		})
	}
}
