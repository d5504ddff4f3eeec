package credential

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/pkg/safefile"
)

// maxSessionFileSize bounds the session file; a token plus profile is a few KB
const maxSessionFileSize = 1 << 20

// sessionFile is the on-disk layout written by the login flow
type sessionFile struct {
	Token           string    `json:"token"`
	User            *Identity `json:"user"`
	IsAuthenticated bool      `json:"isAuthenticated"`
}

// FileStore is a Store backed by a JSON session file. The file is read on
// Reload; between reloads the last good identity is served.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	identity Identity
	present  bool
}

// NewFileStore creates a FileStore for path and performs the first load.
// A missing file yields a store with no identity and no error.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileStore{
		path:   path,
		logger: logger.With("component", "credential-store"),
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Identity implements Store
func (s *FileStore) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.present
}

// Path returns the session file location
func (s *FileStore) Path() string {
	return s.path
}

// Reload re-reads the session file and reports whether the principal or its
// presence changed. An unreadable or invalid file signs the identity out.
func (s *FileStore) Reload() (bool, error) {
	id, present, err := readSessionFile(s.path)

	s.mu.Lock()
	prevID, prevPresent := s.identity, s.present
	s.identity, s.present = id, present
	s.mu.Unlock()

	changed := prevPresent != present || (present && !prevID.SamePrincipal(id)) ||
		(present && prevID.Token != id.Token)

	if err != nil {
		s.logger.Warn("Session file unreadable, identity cleared", "path", s.path, "error", err)
		return changed, err
	}
	if changed {
		s.logger.Info("Session identity loaded",
			"path", s.path,
			"present", present,
			"user_id", id.UserID,
			"tenant_id", id.TenantID,
			"role", id.Role)
	}
	return changed, nil
}

func readSessionFile(path string) (Identity, bool, error) {
	data, err := safefile.Read(path, maxSessionFileSize)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return Identity{}, false, nil
		}
		return Identity{}, false, errors.WrapTransient(err, "FileStore", "Reload", "read session file")
	}

	var doc sessionFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return Identity{}, false, errors.WrapInvalid(err, "FileStore", "Reload", "parse session file")
	}

	if !doc.IsAuthenticated || doc.User == nil || doc.Token == "" {
		return Identity{}, false, nil
	}

	id := *doc.User
	id.Token = doc.Token
	return id, true, nil
}
