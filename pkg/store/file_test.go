package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "store.bin")
	secret := []byte("install-secret")

	f, err := OpenFileStore(FileStoreConfig{Path: path, Secret: secret})
	if err != nil {
		t.Fatalf("OpenFileStore() error = %v", err)
	}
	if err := f.Set(ctx, KeyServerAddress, "192.168.1.10"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	SetFirstTimeDone(ctx, f, "cam1", true)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(raw), "192.168.1.10") {
		t.Error("store file contains plaintext value")
	}

	g, err := OpenFileStore(FileStoreConfig{Path: path, Secret: secret})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	v, ok, _ := g.Get(ctx, KeyServerAddress)
	if !ok || v != "192.168.1.10" {
		t.Errorf("Get() after reopen = %q, %v", v, ok)
	}
	done, _ := FirstTimeDone(ctx, g, "cam1")
	if !done {
		t.Error("FirstTimeDone() after reopen = false")
	}
}

func TestFileStore_WrongSecret(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.bin")

	f, _ := OpenFileStore(FileStoreConfig{Path: path, Secret: []byte("a")})
	f.Set(ctx, "k", "v")

	_, err := OpenFileStore(FileStoreConfig{Path: path, Secret: []byte("b")})
	if !errors.Is(err, ErrSealed) {
		t.Errorf("OpenFileStore() with wrong secret error = %v, want ErrSealed", err)
	}
}

func TestFileStore_Config(t *testing.T) {
	if _, err := OpenFileStore(FileStoreConfig{Secret: []byte("x")}); err == nil {
		t.Error("OpenFileStore() without path should fail")
	}
	if _, err := OpenFileStore(FileStoreConfig{Path: "x"}); !errors.Is(err, ErrSecretRequired) {
		t.Errorf("OpenFileStore() without secret error = %v", err)
	}
}

func TestFileStore_UpdateErrorKeepsValue(t *testing.T) {
	ctx := context.Background()
	f, _ := OpenFileStore(FileStoreConfig{Path: filepath.Join(t.TempDir(), "s"), Secret: []byte("x")})
	f.Set(ctx, "k", "v1")

	boom := errors.New("boom")
	err := f.Update(ctx, "k", func(string, bool) (string, bool, error) {
		return "v2", true, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Update() error = %v, want boom", err)
	}
	v, _, _ := f.Get(ctx, "k")
	if v != "v1" {
		t.Errorf("Get() = %q, want v1", v)
	}
}
