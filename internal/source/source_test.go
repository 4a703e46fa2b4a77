package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	rc, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "png" {
		t.Errorf("read %q", data)
	}

	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("empty locator should fail")
	}
}

func TestOpen_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ID3 audio"))
	}))
	defer srv.Close()

	rc, err := Open(context.Background(), srv.URL+"/song.mp3")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "ID3 audio" {
		t.Errorf("read %q", data)
	}

	_, err = Open(context.Background(), srv.URL+"/missing.mp3")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Open(missing) = %v, want a 404 error", err)
	}
}

func TestLocalize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty.wav" {
			return
		}
		w.Write([]byte("RIFF data"))
	}))
	defer srv.Close()

	t.Run("remote keeps extension", func(t *testing.T) {
		path, cleanup, err := Localize(context.Background(), srv.URL+"/song.flac?token=abc")
		if err != nil {
			t.Fatalf("Localize: %v", err)
		}
		if filepath.Ext(path) != ".flac" {
			t.Errorf("temp file %s lost the extension", path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatal(err)
		}
		cleanup()
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("cleanup left the download behind")
		}
	})

	t.Run("remote empty", func(t *testing.T) {
		_, cleanup, err := Localize(context.Background(), srv.URL+"/empty.wav")
		defer cleanup()
		if !errors.Is(err, ErrEmpty) {
			t.Errorf("Localize(empty) = %v, want ErrEmpty", err)
		}
	})

	t.Run("local file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a.wav")
		if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
			t.Fatal(err)
		}
		got, cleanup, err := Localize(context.Background(), path)
		defer cleanup()
		if err != nil || got != path {
			t.Errorf("Localize(local) = %q, %v", got, err)
		}
	})

	t.Run("local empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.wav")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		_, _, err := Localize(context.Background(), path)
		if !errors.Is(err, ErrEmpty) {
			t.Errorf("Localize(empty file) = %v, want ErrEmpty", err)
		}
	})
}
