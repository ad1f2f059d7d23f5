package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func serveBytes(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadHTTPFile(t *testing.T) {
	body := bytes.Repeat([]byte("x"), 10000)
	srv := serveBytes(t, body)
	base := t.TempDir()

	var progressed int64
	var calls int
	f := New(WithHTTPClient(srv.Client()))
	got, err := f.Download(context.Background(), Request{
		Tool:    "ocrd-x",
		URL:     srv.URL + "/models/model%201.bin",
		BaseDir: base,
		Progress: func(n int64) {
			progressed += n
			calls++
		},
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "ocrd-x", "model 1.bin"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	require.Equal(t, body, data)
	require.EqualValues(t, len(body), progressed)
	require.GreaterOrEqual(t, calls, len(body)/DefaultChunkSize)
}

func TestDownloadExistingIsNoop(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("new content"))
	}))
	defer srv.Close()

	base := t.TempDir()
	dest := filepath.Join(base, "model.bin")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	f := New(WithHTTPClient(srv.Client()))
	req := Request{Tool: "ocrd-x", URL: srv.URL + "/model.bin", BaseDir: base, NoSubdir: true}

	got, err := f.Download(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, dest, got)
	require.Zero(t, hits.Load())
	data, _ := os.ReadFile(dest)
	require.Equal(t, "old", string(data))

	req.Overwrite = true
	_, err = f.Download(context.Background(), req)
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())
	data, _ = os.ReadFile(dest)
	require.Equal(t, "new content", string(data))
}

func TestDownloadOverwriteReplacesDirectory(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "fresh"), []byte("1"), 0644))

	base := t.TempDir()
	dest := filepath.Join(base, "ocrd-x", "model")
	require.NoError(t, os.MkdirAll(dest, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "stale"), []byte("0"), 0644))

	f := New()
	_, err := f.Download(context.Background(), Request{
		Tool: "ocrd-x", URL: src, BaseDir: base, Name: "model", Type: "directory", Overwrite: true,
	})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dest, "fresh"))
	require.NoFileExists(t, filepath.Join(dest, "stale"))
}

func TestDownloadFailureLeavesNoArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		w.Write(bytes.Repeat([]byte("y"), 5000))
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()

	base := t.TempDir()
	f := New(WithHTTPClient(srv.Client()))
	_, err := f.Download(context.Background(), Request{Tool: "ocrd-x", URL: srv.URL + "/big.bin", BaseDir: base})

	var te *TransferError
	require.True(t, errors.As(err, &te), "got %v", err)
	require.Equal(t, filepath.Join(base, "ocrd-x", "big.bin"), te.Dest)
	require.NoFileExists(t, te.Dest)
}

func TestDownloadHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	base := t.TempDir()
	_, err := New(WithHTTPClient(srv.Client())).Download(context.Background(),
		Request{Tool: "ocrd-x", URL: srv.URL + "/missing.bin", BaseDir: base})
	var te *TransferError
	require.ErrorAs(t, err, &te)
	require.NoFileExists(t, filepath.Join(base, "ocrd-x", "missing.bin"))
}

func TestDownloadLocalFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "dict.txt")
	require.NoError(t, os.WriteFile(src, []byte("words"), 0644))
	base := t.TempDir()

	var progressed int64
	got, err := New(WithChunkSize(2)).Download(context.Background(), Request{
		Tool: "ocrd-y", URL: src, BaseDir: base,
		Progress: func(n int64) { progressed += n },
	})
	require.NoError(t, err)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	require.Equal(t, "words", string(data))
	require.EqualValues(t, 5, progressed)
}

func TestDownloadLocalMissingSource(t *testing.T) {
	base := t.TempDir()
	_, err := New().Download(context.Background(), Request{
		Tool: "ocrd-y", URL: filepath.Join(t.TempDir(), "nope"), BaseDir: base,
	})
	var te *TransferError
	require.ErrorAs(t, err, &te)
	require.NoFileExists(t, te.Dest)
}

func TestDownloadLocalDirectoryKeepsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "weights"), []byte("w"), 0644))
	require.NoError(t, os.Symlink("sub/weights", filepath.Join(src, "link")))

	base := t.TempDir()
	got, err := New().Download(context.Background(), Request{
		Tool: "ocrd-x", URL: "file://" + filepath.ToSlash(src), BaseDir: base, Name: "tree", Type: "directory",
	})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(got, "sub", "weights"))
	target, err := os.Readlink(filepath.Join(got, "link"))
	require.NoError(t, err)
	require.Equal(t, "sub/weights", target)
}

func TestDownloadUnknownType(t *testing.T) {
	_, err := New().Download(context.Background(), Request{Tool: "ocrd-x", URL: "/x", BaseDir: t.TempDir(), Type: "blob"})
	require.Error(t, err)
}

func TestRequestDestination(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"subdir", Request{Tool: "ocrd-x", URL: "https://h/a/b.bin?x=1", BaseDir: "/r"}, filepath.Join("/r", "ocrd-x", "b.bin")},
		{"no subdir", Request{Tool: "ocrd-x", URL: "https://h/a/b.bin", BaseDir: "/r", NoSubdir: true}, filepath.Join("/r", "b.bin")},
		{"explicit name", Request{Tool: "ocrd-x", URL: "https://h/a/b.bin", BaseDir: "/r", Name: "c"}, filepath.Join("/r", "ocrd-x", "c")},
		{"decoded", Request{Tool: "ocrd-x", URL: "https://h/a%20b.zip", BaseDir: "/r"}, filepath.Join("/r", "ocrd-x", "a b.zip")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.req.Destination())
		})
	}
}

func TestDownloadAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	base := t.TempDir()
	f := New(WithHTTPClient(srv.Client()))
	reqs := []Request{
		{Tool: "ocrd-x", URL: srv.URL + "/a", BaseDir: base},
		{Tool: "ocrd-x", URL: srv.URL + "/b", BaseDir: base},
		{Tool: "ocrd-y", URL: srv.URL + "/a", BaseDir: base},
	}
	paths, err := f.DownloadAll(context.Background(), reqs, 2)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(base, "ocrd-x", "a"),
		filepath.Join(base, "ocrd-x", "b"),
		filepath.Join(base, "ocrd-y", "a"),
	}, paths)
	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	require.Equal(t, "/b", string(data))
}

func TestDownloadAllRejectsSharedDestination(t *testing.T) {
	reqs := []Request{
		{Tool: "ocrd-x", URL: "https://h/a", BaseDir: "/r"},
		{Tool: "ocrd-x", URL: "https://other/a", BaseDir: "/r"},
	}
	_, err := New().DownloadAll(context.Background(), reqs, 4)
	require.ErrorContains(t, err, "both target")
}

// Archive fixtures.

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func tarBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write(data)
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDownloadZipArchivePathInArchive(t *testing.T) {
	archive := zipBytes(t, map[string]string{
		"data/weights":    "W",
		"data/README":     "r",
		"other/unrelated": "u",
	})
	srv := serveBytes(t, archive)
	base := t.TempDir()
	scratch := t.TempDir()

	got, err := New(WithHTTPClient(srv.Client()), WithTempDir(scratch)).Download(context.Background(), Request{
		Tool: "ocrd-x", URL: srv.URL + "/model.zip", BaseDir: base,
		Name: "weights", Type: "archive", PathInArchive: "data/weights",
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "ocrd-x", "weights"), got)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	require.Equal(t, "W", string(data))

	left, err := os.ReadDir(scratch)
	require.NoError(t, err)
	require.Empty(t, left, "scratch directory not cleaned up")
}

func TestDownloadTarArchives(t *testing.T) {
	inner := tarBytes(t, map[string]string{"model/a.bin": "A", "model/sub/b.bin": "B"})
	tests := []struct {
		name string
		data []byte
	}{
		{"gzip", gzipBytes(t, inner)},
		{"xz", xzBytes(t, inner)},
		{"zstd", zstdBytes(t, inner)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := filepath.Join(t.TempDir(), "model.archive")
			require.NoError(t, os.WriteFile(src, tt.data, 0644))
			base := t.TempDir()

			got, err := New().Download(context.Background(), Request{
				Tool: "ocrd-x", URL: src, BaseDir: base, Name: "model", Type: "archive", PathInArchive: "model",
			})
			require.NoError(t, err)
			data, err := os.ReadFile(filepath.Join(got, "sub", "b.bin"))
			require.NoError(t, err)
			require.Equal(t, "B", string(data))
			require.FileExists(t, filepath.Join(got, "a.bin"))
		})
	}
}

func TestDownloadUnsupportedArchive(t *testing.T) {
	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("just some text\n"), 0644))
	base := t.TempDir()

	_, err := New().Download(context.Background(), Request{
		Tool: "ocrd-x", URL: src, BaseDir: base, Name: "notes", Type: "archive",
	})
	require.ErrorIs(t, err, ErrUnsupportedArchive)
	require.NoFileExists(t, filepath.Join(base, "ocrd-x", "notes"))
}

func TestDownloadArchiveMissingPath(t *testing.T) {
	src := filepath.Join(t.TempDir(), "m.zip")
	require.NoError(t, os.WriteFile(src, zipBytes(t, map[string]string{"a": "1"}), 0644))
	base := t.TempDir()

	_, err := New().Download(context.Background(), Request{
		Tool: "ocrd-x", URL: src, BaseDir: base, Name: "b", Type: "archive", PathInArchive: "b",
	})
	var te *TransferError
	require.ErrorAs(t, err, &te)
	require.NoFileExists(t, te.Dest)
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../evil", Mode: 0644, Size: 1, Typeflag: tar.TypeReg}))
	_, err := tw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	dest := t.TempDir()
	err = extractTar(&buf, dest)
	require.ErrorContains(t, err, "invalid archive entry")
	require.NoFileExists(t, filepath.Join(filepath.Dir(dest), "evil"))
}

func TestSniffArchive(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0644))
		return p
	}
	inner := tarBytes(t, map[string]string{"f": "1"})

	media, err := SniffArchive(write("a", zipBytes(t, map[string]string{"f": "1"})))
	require.NoError(t, err)
	require.Equal(t, MediaZip, media)

	media, err = SniffArchive(write("b", gzipBytes(t, inner)))
	require.NoError(t, err)
	require.Equal(t, MediaGzip, media)

	media, err = SniffArchive(write("c", xzBytes(t, inner)))
	require.NoError(t, err)
	require.Equal(t, MediaXz, media)

	_, err = SniffArchive(write("d", []byte("plain text")))
	require.ErrorIs(t, err, ErrUnsupportedArchive)
}
