package knowledgebase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// SupportedExtensions lists the document types the companion server can ingest.
var SupportedExtensions = []string{".txt", ".pdf", ".doc", ".docx"}

// maxTokenizedSize caps how much of a text document is read for the token
// estimate.
const maxTokenizedSize = 16 << 20

// Document describes an imported file.
type Document struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	Pages     int    `json:"pages,omitempty"`
	Tokens    int    `json:"tokens,omitempty"`
}

// IsSupported reports whether path has a supported document extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

var disablePDFConfig sync.Once

func pdfPageCount(path string) (int, error) {
	// Keep pdfcpu from creating a configuration directory in the user's home.
	disablePDFConfig.Do(func() {
		model.ConfigPath = "disable"
	})
	return api.PageCountFile(path)
}

// Import copies source into the knowledge base identified by ref.
// PDFs must parse; text files get a token estimate.
func (s *Store) Import(ctx context.Context, ref, source string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folder, err := s.Find(ref)
	if err != nil {
		return nil, err
	}

	if !IsSupported(source) {
		return nil, fmt.Errorf("unsupported file type '%s' (supported: %s)",
			filepath.Ext(source), strings.Join(SupportedExtensions, ", "))
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read '%s': %w", source, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("'%s' is not a regular file", source)
	}

	doc := &Document{
		Name:      filepath.Base(source),
		Size:      info.Size(),
		Extension: strings.ToLower(filepath.Ext(source)),
	}

	switch doc.Extension {
	case ".pdf":
		pages, err := s.pageCount(source)
		if err != nil {
			return nil, fmt.Errorf("cannot read PDF '%s': %w", doc.Name, err)
		}
		doc.Pages = pages
	case ".txt":
		text, err := readHead(source, maxTokenizedSize)
		if err != nil {
			return nil, fmt.Errorf("cannot read '%s': %w", source, err)
		}
		doc.Tokens = s.tokens().CountTokens(text)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc.Path = filepath.Join(folder.Path, doc.Name)
	if err := s.checkInside(doc.Path); err != nil {
		return nil, err
	}
	if err := copyFile(source, doc.Path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("file '%s' already exists in knowledge base '%s'", doc.Name, folder.Name)
		}
		return nil, fmt.Errorf("cannot import '%s': %w", doc.Name, err)
	}

	s.logger.Infof("imported %s into knowledge base %q (%d bytes)", doc.Name, folder.Name, doc.Size)
	return doc, nil
}

func readHead(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// copyFile copies src to dst, failing with fs.ErrExist if dst exists.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}
