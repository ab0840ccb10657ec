package store

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pion/logging"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const fileKeyInfo = "camlink store v1"

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Path is the file holding the sealed document. Required.
	Path string

	// Secret is the install secret the sealing key is derived from. Required.
	Secret []byte

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// FileStore keeps all values in one JSON document sealed with
// XChaCha20-Poly1305 under a key derived from the install secret.
// Every write re-seals the document and atomically replaces the file.
//
// All methods are safe for concurrent use.
type FileStore struct {
	path string
	aead cipher.AEAD
	log  logging.LeveledLogger

	mu     sync.Mutex
	values map[string]string
}

// OpenFileStore opens or creates the sealed store at config.Path.
func OpenFileStore(config FileStoreConfig) (*FileStore, error) {
	if config.Path == "" {
		return nil, ErrInvalidKey
	}
	if len(config.Secret) == 0 {
		return nil, ErrSecretRequired
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, config.Secret, nil, []byte(fileKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("store: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("store: init cipher: %w", err)
	}

	f := &FileStore{
		path:   config.Path,
		aead:   aead,
		values: make(map[string]string),
	}
	if config.LoggerFactory != nil {
		f.log = config.LoggerFactory.NewLogger("store-file")
	}

	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FileStore) load() error {
	sealed, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		if f.log != nil {
			f.log.Debugf("no store at %s, starting empty", f.path)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read %s: %w", f.path, err)
	}

	ns := f.aead.NonceSize()
	if len(sealed) < ns+f.aead.Overhead() {
		return ErrSealed
	}
	plain, err := f.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(fileKeyInfo))
	if err != nil {
		return ErrSealed
	}
	if err := json.Unmarshal(plain, &f.values); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	return nil
}

// flush seals the current document and replaces the file. Caller holds mu.
func (f *FileStore) flush() error {
	plain, err := json.Marshal(f.values)
	if err != nil {
		return err
	}

	nonce := make([]byte, f.aead.NonceSize(), f.aead.NonceSize()+len(plain)+f.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	sealed := f.aead.Seal(nonce, nonce, plain, []byte(fileKeyInfo))

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

// Get returns the value stored under key.
func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.values[key]
	return v, ok, nil
}

// Set stores value under key and persists the document.
func (f *FileStore) Set(ctx context.Context, key, value string) error {
	return f.Update(ctx, key, func(string, bool) (string, bool, error) {
		return value, true, nil
	})
}

// Delete removes key and persists the document.
func (f *FileStore) Delete(ctx context.Context, key string) error {
	return f.Update(ctx, key, func(string, bool) (string, bool, error) {
		return "", false, nil
	})
}

// Update applies fn under the store lock and persists the result.
// The in-memory value is rolled back if the file cannot be written.
func (f *FileStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	if key == "" {
		return ErrInvalidKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	old, ok := f.values[key]
	v, keep, err := fn(old, ok)
	if err != nil {
		return err
	}
	if keep {
		f.values[key] = v
	} else {
		delete(f.values, key)
	}

	if err := f.flush(); err != nil {
		if ok {
			f.values[key] = old
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

// Verify FileStore implements Store.
var _ Store = (*FileStore)(nil)
