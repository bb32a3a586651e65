package s3

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/storage"
)

// fakeS3 serves the path-style subset of the S3 REST API the backend uses.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

type listResult struct {
	XMLName     xml.Name       `xml:"ListBucketResult"`
	Name        string         `xml:"Name"`
	Prefix      string         `xml:"Prefix"`
	KeyCount    int            `xml:"KeyCount"`
	IsTruncated bool           `xml:"IsTruncated"`
	Contents    []listContents `xml:"Contents"`
}

type listContents struct {
	Key          string `xml:"Key"`
	Size         int64  `xml:"Size"`
	LastModified string `xml:"LastModified"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/"+f.bucket), "/")
	switch {
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		res := listResult{Name: f.bucket, Prefix: prefix}
		keys := make([]string, 0, len(f.objects))
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			res.Contents = append(res.Contents, listContents{Key: k, Size: int64(len(f.objects[k])), LastModified: "2026-01-01T00:00:00.000Z"})
		}
		res.KeyCount = len(res.Contents)
		w.Header().Set("Content-Type", "application/xml")
		_ = xml.NewEncoder(w).Encode(res)
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorage(t *testing.T) (*Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "datasets", objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewStorage(context.Background(), storage.Config{
		Provider:  storage.ProviderS3,
		Bucket:    "datasets",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s, fake
}

func TestUploadDownload(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStorage(t)

	// io.MultiReader is not seekable, exercising the buffering path.
	if err := s.Upload(ctx, "p1/p1_load/a.csv", io.MultiReader(strings.NewReader("a\n1\n"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(fake.objects["p1/p1_load/a.csv"]); got != "a\n1\n" {
		t.Fatalf("unexpected stored object %q", got)
	}

	rc, err := s.Download(ctx, "p1/p1_load/a.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "a\n1\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestDownloadMissing(t *testing.T) {
	s, _ := newTestStorage(t)
	_, err := s.Download(context.Background(), "missing.csv")
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestExistsDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	_ = s.Upload(ctx, "p/t/f.csv", strings.NewReader("x"))

	if ok, err := s.Exists(ctx, "p/t/f.csv"); err != nil || !ok {
		t.Fatalf("expected object to exist, got %v %v", ok, err)
	}
	if err := s.Delete(ctx, "p/t/f.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, err := s.Exists(ctx, "p/t/f.csv"); err != nil || ok {
		t.Errorf("expected object gone, got %v %v", ok, err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	for _, k := range []string{"p1/b/x.csv", "p1/a/x.csv", "p2/a/x.csv"} {
		_ = s.Upload(ctx, k, strings.NewReader("12"))
	}

	files, err := s.List(ctx, "p1/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 || files[0].Path != "p1/a/x.csv" || files[0].Size != 2 {
		t.Errorf("unexpected listing %+v", files)
	}
}

func TestURL(t *testing.T) {
	s, _ := newTestStorage(t)
	u, _ := s.URL(context.Background(), "p/t/f.csv")
	if !strings.HasSuffix(u, "/datasets/p/t/f.csv") {
		t.Errorf("unexpected url %q", u)
	}
}
