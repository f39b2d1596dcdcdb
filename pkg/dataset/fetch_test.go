package dataset_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/echolab/voicepair/pkg/dataset"
)

func corpusServer(t *testing.T, manifest string, files map[string][]byte, wavHits *atomic.Int64, failFirst *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		if name == "manifest.json" {
			fmt.Fprint(w, manifest)
			return
		}
		if body, ok := files[name]; ok {
			wavHits.Add(1)
			if failFirst != nil && failFirst.CompareAndSwap(true, false) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, "boom")
				return
			}
			w.Write(body)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
}

func TestFetchWritesFilesAndLabels(t *testing.T) {
	var hits atomic.Int64
	srv := corpusServer(t,
		`{"files":[{"name":"utt00.wav","label":0},{"name":"utt01.wav","label":3}]}`,
		map[string][]byte{
			"utt00.wav": []byte("wav-zero"),
			"utt01.wav": []byte("wav-one"),
		}, &hits, nil)
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "train")
	if err := dataset.Fetch(srv.URL, dir); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	for name, want := range map[string]string{
		"utt00.wav": "wav-zero",
		"utt01.wav": "wav-one",
		"utt00.txt": "0",
		"utt01.txt": "3",
	} {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if string(b) != want {
			t.Fatalf("%s = %q, want %q", name, b, want)
		}
	}
}

func TestFetchSkipsExistingFiles(t *testing.T) {
	var hits atomic.Int64
	srv := corpusServer(t,
		`{"files":[{"name":"utt00.wav","label":1}]}`,
		map[string][]byte{"utt00.wav": []byte("wav-zero")}, &hits, nil)
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "train")
	if err := dataset.Fetch(srv.URL, dir); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if err := dataset.Fetch(srv.URL, dir); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("wav downloaded %d times, want 1", got)
	}
}

// A failed download must not leave a file behind that the next Fetch would
// mistake for a completed one.
func TestFetchRetriesAfterServerError(t *testing.T) {
	var hits atomic.Int64
	var failFirst atomic.Bool
	failFirst.Store(true)
	srv := corpusServer(t,
		`{"files":[{"name":"utt00.wav","label":0}]}`,
		map[string][]byte{"utt00.wav": []byte("wav-zero")}, &hits, &failFirst)
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "train")
	if err := dataset.Fetch(srv.URL, dir); err == nil {
		t.Fatal("expected error from failing download")
	}
	if _, err := os.Stat(filepath.Join(dir, "utt00.wav")); !os.IsNotExist(err) {
		t.Fatal("failed download left a wav file behind")
	}

	if err := dataset.Fetch(srv.URL, dir); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "utt00.wav"))
	if err != nil {
		t.Fatalf("missing wav after retry: %v", err)
	}
	if string(b) != "wav-zero" {
		t.Fatalf("wav content = %q, want %q", b, "wav-zero")
	}
}

func TestFetchManifestErrors(t *testing.T) {
	var hits atomic.Int64
	empty := corpusServer(t, `{"files":[]}`, nil, &hits, nil)
	defer empty.Close()
	if err := dataset.Fetch(empty.URL, filepath.Join(t.TempDir(), "train")); err == nil {
		t.Fatal("expected error for empty manifest")
	}

	garbled := corpusServer(t, `{"files":`, nil, &hits, nil)
	defer garbled.Close()
	if err := dataset.Fetch(garbled.URL, filepath.Join(t.TempDir(), "train")); err == nil {
		t.Fatal("expected error for unparseable manifest")
	}

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	if err := dataset.Fetch(missing.URL, filepath.Join(t.TempDir(), "train")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
