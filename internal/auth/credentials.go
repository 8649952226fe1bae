package auth

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mcpkit/mcpauth/internal/oauth"
)

// Credential is a persisted credential for one server, keyed by server URL.
type Credential struct {
	AuthType string        `json:"type"`
	Token    string        `json:"token,omitempty"`
	ClientID string        `json:"client_id,omitempty"`
	Scope    string        `json:"scope,omitempty"`
	Tokens   *oauth.Tokens `json:"tokens,omitempty"`
}

// Store persists credentials across runs. Load returns (nil, nil) when no
// credential exists for the server.
type Store interface {
	Load(serverURL string) (*Credential, error)
	Save(serverURL string, cred *Credential) error
	Clear(serverURL string) error
}

// credentialsFile is the on-disk JSON shape of a FileStore.
type credentialsFile struct {
	Version int                    `json:"version"`
	Servers map[string]*Credential `json:"servers"`
}

// FileStore is a Store backed by a single JSON file. The file is written with
// 0600 permissions and its parent directory created with 0700.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store at path. The file is created lazily on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultStorePath returns ~/.mcpauth/credentials.json.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mcpauth", "credentials.json"), nil
}

func (s *FileStore) Load(serverURL string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return nil, err
	}
	return file.Servers[serverURL], nil
}

func (s *FileStore) Save(serverURL string, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	file.Servers[serverURL] = cred
	return s.write(file)
}

func (s *FileStore) Clear(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := file.Servers[serverURL]; !ok {
		return nil
	}
	delete(file.Servers, serverURL)
	return s.write(file)
}

// read parses the store file. A missing file yields an empty store, not an
// error.
func (s *FileStore) read() (*credentialsFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &credentialsFile{Version: 1, Servers: make(map[string]*Credential)}, nil
		}
		return nil, err
	}

	var file credentialsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.Servers == nil {
		file.Servers = make(map[string]*Credential)
	}
	return &file, nil
}

func (s *FileStore) write(file *credentialsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}
