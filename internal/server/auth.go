package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Editors checks HTTP Basic credentials against bcrypt hashes. A nil
// *Editors lets every request through.
type Editors struct {
	hashes map[string]string // username -> bcrypt hash
}

// NewEditors builds an Editors from username -> bcrypt hash pairs.
func NewEditors(hashes map[string]string) (*Editors, error) {
	if len(hashes) == 0 {
		return nil, errors.New("no editors configured")
	}
	for user, hash := range hashes {
		if strings.TrimSpace(user) == "" {
			return nil, errors.New("empty editor username")
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("editor %q: %w", user, err)
		}
	}
	return &Editors{hashes: hashes}, nil
}

// LoadEditors reads a JSON object of username -> bcrypt hash.
func LoadEditors(path string) (*Editors, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("editors file: %w", err)
	}
	var hashes map[string]string
	if err := json.Unmarshal(b, &hashes); err != nil {
		return nil, fmt.Errorf("editors file %s: %w", path, err)
	}
	return NewEditors(hashes)
}

// HashPassword returns the bcrypt hash stored in the editors file.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Authenticate returns the editor named by valid Basic credentials.
func (e *Editors) Authenticate(r *http.Request) (string, bool) {
	user, password, ok := r.BasicAuth()
	if !ok {
		return "", false
	}
	hash, exists := e.hashes[user]
	if !exists {
		return "", false
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", false
	}
	return user, true
}

type editorKey struct{}

// editorFrom returns the authenticated editor stored on ctx, if any.
func editorFrom(ctx context.Context) string {
	user, _ := ctx.Value(editorKey{}).(string)
	return user
}

// requireEditor guards a mutating handler. Without configured editors the
// handler runs unauthenticated.
func (s *Server) requireEditor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.editors == nil {
			next(w, r)
			return
		}
		user, ok := s.editors.Authenticate(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="gst-sheets-hub"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), editorKey{}, user)))
	}
}
