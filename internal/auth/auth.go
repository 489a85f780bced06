// Package auth guards the roster with a single shared passphrase, stored
// only as a bcrypt hash.
package auth

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var (
	ErrPassphraseTooShort = errors.New("passphrase must be at least 6 characters")
	ErrPassphraseMismatch = errors.New("passphrase does not match")
	ErrNotTerminal        = errors.New("passphrase prompt needs a terminal")
)

const (
	// DefaultCost is the bcrypt cost for new hashes
	DefaultCost = 12
	// MinPassphraseLength is the minimum passphrase length
	MinPassphraseLength = 6
)

// HashPassphrase returns a bcrypt hash for the config file.
func HashPassphrase(passphrase string) (string, error) {
	if len(passphrase) < MinPassphraseLength {
		return "", ErrPassphraseTooShort
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(passphrase), DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash passphrase: %w", err)
	}
	return string(hashed), nil
}

// Verify checks passphrase against hash.
func Verify(hash, passphrase string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passphrase))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPassphraseMismatch
		}
		return fmt.Errorf("failed to verify passphrase: %w", err)
	}
	return nil
}

// Prompt reads a passphrase from the terminal without echo.
func Prompt(prompt string) (string, error) {
	fd := int(os.Stdin.Fd()) // #nosec G115 - stdin fd fits in int
	if !term.IsTerminal(fd) {
		return "", ErrNotTerminal
	}

	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Unlock checks the passphrase given by env (if set) or prompted on the
// terminal. An empty hash means no passphrase is configured.
func Unlock(hash, env string, prompt func(string) (string, error)) error {
	if hash == "" {
		return nil
	}
	passphrase := os.Getenv(env)
	if passphrase == "" {
		var err error
		if passphrase, err = prompt("Passphrase: "); err != nil {
			return err
		}
	}
	return Verify(hash, passphrase)
}

// HTTPAuthorizer returns a request check accepting the passphrase as a
// bearer token or a "key" query parameter (browsers can't set headers on
// WebSocket upgrades). Verified passphrases are remembered so bcrypt runs
// once per distinct value.
func HTTPAuthorizer(hash string) func(r *http.Request) bool {
	if hash == "" {
		return nil
	}

	var (
		mu       sync.Mutex
		accepted = make(map[string]bool)
	)
	return func(r *http.Request) bool {
		key := r.URL.Query().Get("key")
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			key = strings.TrimPrefix(h, "Bearer ")
		}
		if key == "" {
			return false
		}

		mu.Lock()
		ok := accepted[key]
		mu.Unlock()
		if ok {
			return true
		}

		if Verify(hash, key) != nil {
			return false
		}
		mu.Lock()
		accepted[key] = true
		mu.Unlock()
		return true
	}
}

// ReadPassphrase reads a passphrase from the terminal, or from r when it
// is not a terminal (for piping into `roster auth hash`).
func ReadPassphrase(r io.Reader) (string, error) {
	p, err := Prompt("New passphrase: ")
	if !errors.Is(err, ErrNotTerminal) {
		return p, err
	}

	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
