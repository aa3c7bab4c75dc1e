// Package knowledgebase manages the folders the companion server indexes for
// retrieval. Each knowledge base is a directory under a common root carrying
// a JSON marker file that records its id and name.
package knowledgebase

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/hearth/pkg/config"
	"github.com/entrhq/hearth/pkg/logging"
	"github.com/entrhq/hearth/pkg/security/workspace"
)

// MarkerFile is the name of the marker written into every knowledge base folder.
const MarkerFile = ".kb_marker.json"

// Marker is the content of MarkerFile.
type Marker struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Created is returned by Create.
type Created struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
}

// Folder is a knowledge base found under the root.
type Folder struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// File is a document inside a knowledge base.
type File struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	ModifiedAt int64  `json:"modified_at"`
}

// Store creates and inspects knowledge base folders under a root directory.
type Store struct {
	root       string
	now        func() time.Time
	newID      func() string
	pageCount  func(path string) (int, error)
	logger     *logging.Logger
	mu         sync.Mutex
	tokenizer  Tokenizer
	tokenOnce  sync.Once
	customToks bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for marker timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides knowledge base id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// WithTokenizer sets the tokenizer used to estimate imported text size.
func WithTokenizer(t Tokenizer) Option {
	return func(s *Store) {
		s.tokenizer = t
		s.customToks = true
	}
}

// WithPageCounter overrides PDF page counting.
func WithPageCounter(fn func(path string) (int, error)) Option {
	return func(s *Store) {
		s.pageCount = fn
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a store rooted at root. The root is created lazily.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		root:      filepath.Clean(root),
		now:       time.Now,
		newID:     NewID,
		pageCount: pdfPageCount,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RootFromSection expands the configured root template.
func RootFromSection(s *config.KnowledgeBaseSection, p config.Paths) string {
	return p.ExpandPath(s.GetRoot())
}

// NewID returns the first 8 hex characters of a random UUID.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Root returns the directory holding all knowledge bases.
func (s *Store) Root() string {
	return s.root
}

// ValidateName trims name and checks that it is usable as a single folder name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("knowledge base name cannot be empty")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\<>:"|?*`) ||
		strings.IndexFunc(name, func(r rune) bool { return r < 0x20 }) >= 0 ||
		strings.HasSuffix(name, ".") || isReservedName(name) {
		return "", fmt.Errorf("invalid knowledge base name '%s'", name)
	}
	return name, nil
}

// Folder names Windows reserves for devices, with or without an extension.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

func isReservedName(name string) bool {
	base, _, _ := strings.Cut(name, ".")
	return reservedNames[strings.ToUpper(strings.TrimSpace(base))]
}

// Create makes a new knowledge base folder with its marker file.
func (s *Store) Create(name string) (*Created, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return nil, fmt.Errorf("cannot create parent directory: %w", err)
	}

	id := s.newID()
	path := filepath.Join(s.root, name)

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("folder '%s' already exists", name)
	}
	if err := os.Mkdir(path, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("folder '%s' already exists", name)
		}
		return nil, fmt.Errorf("cannot create folder: %w", err)
	}

	ts := s.now().Unix()
	marker := Marker{ID: id, Name: name, CreatedAt: ts, UpdatedAt: ts}
	if err := writeMarker(path, marker); err != nil {
		_ = os.RemoveAll(path)
		return nil, err
	}

	s.logger.Infof("created knowledge base %q (id %s) at %s", name, id, path)
	return &Created{Success: true, ID: id, Name: name, Path: path}, nil
}

func writeMarker(dir string, m Marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode marker: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MarkerFile), data, 0644); err != nil {
		return fmt.Errorf("cannot write marker file: %w", err)
	}
	return nil
}

// ReadMarker reads the marker of the knowledge base in dir.
func ReadMarker(dir string) (Marker, error) {
	var m Marker
	data, err := os.ReadFile(filepath.Join(dir, MarkerFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("invalid marker in %s: %w", dir, err)
	}
	return m, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// List returns every non-hidden folder under the root, sorted by name.
// Folders without a readable marker are listed with an empty id.
func (s *Store) List() ([]Folder, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Folder{}, nil
		}
		return nil, fmt.Errorf("cannot read knowledge base root: %w", err)
	}

	folders := make([]Folder, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || isHidden(entry.Name()) {
			continue
		}

		path := filepath.Join(s.root, entry.Name())
		folder := Folder{Name: entry.Name(), Path: path}
		if m, err := ReadMarker(path); err == nil {
			folder.ID = m.ID
			folder.CreatedAt = m.CreatedAt
		} else if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warnf("skipping marker of %s: %v", path, err)
		}
		folders = append(folders, folder)
	}
	return folders, nil
}

// Find resolves ref, either a knowledge base id or a folder name.
func (s *Store) Find(ref string) (Folder, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Folder{}, fmt.Errorf("knowledge base reference cannot be empty")
	}

	folders, err := s.List()
	if err != nil {
		return Folder{}, err
	}
	for _, f := range folders {
		if f.ID != "" && f.ID == ref {
			return f, nil
		}
	}
	for _, f := range folders {
		if f.Name == ref {
			return f, nil
		}
	}
	return Folder{}, fmt.Errorf("knowledge base '%s' not found", ref)
}

// Files lists the documents of the knowledge base identified by ref.
// Hidden files, including the marker, and Thumbs.db are skipped.
func (s *Store) Files(ref string) ([]File, error) {
	folder, err := s.Find(ref)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(folder.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot read knowledge base '%s': %w", folder.Name, err)
	}

	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || isHidden(name) || strings.EqualFold(name, "Thumbs.db") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, File{
			Name:       name,
			Path:       filepath.Join(folder.Path, name),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().Unix(),
		})
	}
	return files, nil
}

// Delete removes the knowledge base whose marker carries id, with all its files.
func (s *Store) Delete(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("knowledge base id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	folders, err := s.List()
	if err != nil {
		return err
	}
	for _, f := range folders {
		if f.ID == id {
			if err := s.checkInside(f.Path); err != nil {
				return err
			}
			if err := os.RemoveAll(f.Path); err != nil {
				return fmt.Errorf("cannot delete knowledge base '%s': %w", f.Name, err)
			}
			s.logger.Infof("deleted knowledge base %q (id %s)", f.Name, id)
			return nil
		}
	}
	return fmt.Errorf("knowledge base with id '%s' not found", id)
}

// checkInside rejects paths that do not resolve strictly below the root.
// The guard is built per call since the root is created lazily.
func (s *Store) checkInside(path string) error {
	guard, err := workspace.NewGuard(s.root)
	if err != nil {
		return err
	}
	if !guard.IsStrictlyWithinRoot(path) {
		return fmt.Errorf("path '%s' is outside the knowledge base root", path)
	}
	return nil
}

func (s *Store) tokens() Tokenizer {
	if s.customToks {
		return s.tokenizer
	}
	s.tokenOnce.Do(func() {
		tok, err := NewTokenizer()
		if err != nil {
			s.logger.Warnf("tokenizer unavailable, using estimate: %v", err)
			s.tokenizer = ApproxTokenizer{}
			return
		}
		s.tokenizer = tok
	})
	return s.tokenizer
}
