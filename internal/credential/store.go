package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// PassphraseEnv is consulted when no passphrase was supplied explicitly.
const PassphraseEnv = "CLOUDMAINT_PASSPHRASE"

var (
	// ErrNotFound means the credential file does not exist yet.
	ErrNotFound = errors.New("credential file not found")
	// ErrNoPassphrase means no passphrase is available in a non-interactive context.
	ErrNoPassphrase = errors.New("no passphrase available (set " + PassphraseEnv + ")")
)

// EncryptError wraps a failure while sealing records.
type EncryptError struct{ Err error }

func (e *EncryptError) Error() string { return "encrypt credentials: " + e.Err.Error() }
func (e *EncryptError) Unwrap() error { return e.Err }

// DecryptError wraps a wrong-passphrase or corrupted-blob failure.
type DecryptError struct{ Err error }

func (e *DecryptError) Error() string { return "decrypt credentials: " + e.Err.Error() }
func (e *DecryptError) Unwrap() error { return e.Err }

// Store keeps named secrets in a single encrypted file. The plaintext form
// of a record never touches non-volatile storage: serialization happens in
// memory and the blob written to disk is already ciphertext.
type Store struct {
	path       string
	passphrase []byte
}

// New creates a store bound to path. If passphrase is empty the
// PassphraseEnv variable is used; operations fail with ErrNoPassphrase
// when neither is available.
func New(path string, passphrase []byte) *Store {
	if len(passphrase) == 0 {
		if v := os.Getenv(PassphraseEnv); v != "" {
			passphrase = []byte(v)
		}
	}
	return &Store{path: path, passphrase: passphrase}
}

func (s *Store) Path() string { return s.path }

func (s *Store) key() ([]byte, error) {
	if len(s.passphrase) == 0 {
		return nil, ErrNoPassphrase
	}
	return s.passphrase, nil
}

// Save serializes all records, encrypts them and writes the blob atomically
// (temp file + rename). A failed save never leaves a partial credential file
// or a dangling temp file behind.
func (s *Store) Save(records map[string]string) error {
	pass, err := s.key()
	if err != nil {
		return &EncryptError{Err: err}
	}
	plaintext, err := json.Marshal(records)
	if err != nil {
		return &EncryptError{Err: err}
	}
	blob, err := seal(plaintext, pass)
	if err != nil {
		return &EncryptError{Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cred-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credential blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credential blob: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Load decrypts and returns the full record map.
func (s *Store) Load() (map[string]string, error) {
	pass, err := s.key()
	if err != nil {
		return nil, &DecryptError{Err: err}
	}
	blob, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	plaintext, err := open(blob, pass)
	if err != nil {
		return nil, &DecryptError{Err: err}
	}
	records := make(map[string]string)
	if err := json.Unmarshal(plaintext, &records); err != nil {
		return nil, &DecryptError{Err: err}
	}
	return records, nil
}

// Validate checks that the blob decrypts with the current passphrase
// without returning any secret material.
func (s *Store) Validate() error {
	_, err := s.Load()
	return err
}

// Backup copies the current encrypted blob to a timestamped sibling and
// returns the backup path. Called before any overwriting Save so a bad
// rotation can be undone.
func (s *Store) Backup() (string, error) {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	backup := fmt.Sprintf("%s.%s.bak", s.path, time.Now().Format("20060102T150405"))
	if err := os.WriteFile(backup, blob, 0o600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return backup, nil
}

// Status describes the on-disk state without decrypting.
type Status struct {
	Path    string    `json:"path"`
	Exists  bool      `json:"exists"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Backups []string  `json:"backups"`
}

// Stat reports file presence, size and known backups.
func (s *Store) Stat() (Status, error) {
	st := Status{Path: s.path}
	fi, err := os.Stat(s.path)
	if err == nil {
		st.Exists = true
		st.Size = fi.Size()
		st.ModTime = fi.ModTime()
	} else if !os.IsNotExist(err) {
		return st, err
	}
	matches, err := filepath.Glob(s.path + ".*.bak")
	if err != nil {
		return st, err
	}
	sort.Strings(matches)
	st.Backups = matches
	return st, nil
}
