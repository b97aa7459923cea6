package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed defaults/*.txt defaults/README.md
var defaultFiles embed.FS

const promptExt = ".txt"

// promptNames are the prompts seeded into a new prompt directory.
var promptNames = []string{driven.PromptShopAssistant, driven.PromptNoProducts}

// cachedPrompt remembers the file version a prompt was read from.
type cachedPrompt struct {
	text    string
	modTime time.Time
	size    int64
}

// PromptStore serves assistant prompts from editable text files.
//
// The directory is seeded with the built-in prompts on first use. Each Load
// stats the file and rereads it only when it changed, so edits apply to the
// next chat turn. A missing or unreadable file falls back to the built-in text.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.Mutex
	cache map[string]cachedPrompt
}

// NewPromptStore returns a store over dir, or ~/.vetrina/prompts when empty.
// Nothing touches the disk until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".vetrina", "prompts")
	}
	return &PromptStore{dir: dir, cache: map[string]cachedPrompt{}}, nil
}

// Load returns the named prompt.
func (s *PromptStore) Load(name string) (string, error) {
	builtin, known := builtinPrompt(name)

	s.seedOnce.Do(s.seed)
	if s.seedErr != nil {
		if known {
			return builtin, nil
		}
		return "", fmt.Errorf("prompt directory unavailable: %w", s.seedErr)
	}

	text, err := s.read(name)
	switch {
	case err == nil:
		return text, nil
	case known:
		logger.Warn("Using built-in %s prompt: %v", name, err)
		return builtin, nil
	default:
		return "", domain.NewError("load prompt", name, domain.ErrNotFound, err)
	}
}

// read returns the file contents, rereading only when size or mtime moved.
func (s *PromptStore) read(name string) (string, error) {
	path := filepath.Join(s.dir, name+promptExt)
	info, err := os.Stat(path)
	if err != nil {
		s.forget(name)
		return "", err
	}

	s.mu.Lock()
	cached, ok := s.cache[name]
	s.mu.Unlock()
	if ok && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		return cached.text, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", errors.New(path + " is empty")
	}

	s.mu.Lock()
	s.cache[name] = cachedPrompt{text: text, modTime: info.ModTime(), size: info.Size()}
	s.mu.Unlock()
	if ok {
		logger.Info("Reloaded prompt %s", name)
	}
	return text, nil
}

func (s *PromptStore) forget(name string) {
	s.mu.Lock()
	delete(s.cache, name)
	s.mu.Unlock()
}

// Reload drops every cached prompt.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = map[string]cachedPrompt{}
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// seed creates the directory and writes any missing default files.
// Existing files are never overwritten.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.seedErr = err
		return
	}

	files := []string{"README.md"}
	for _, name := range promptNames {
		files = append(files, name+promptExt)
	}
	for _, file := range files {
		target := filepath.Join(s.dir, file)
		if _, err := os.Stat(target); err == nil || !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		content, err := defaultFiles.ReadFile("defaults/" + file)
		if err != nil {
			s.seedErr = err
			return
		}
		if err := os.WriteFile(target, content, 0o600); err != nil {
			s.seedErr = fmt.Errorf("write default %s: %w", file, err)
			return
		}
	}
}

// builtinPrompt returns the embedded text for a well-known prompt.
func builtinPrompt(name string) (string, bool) {
	raw, err := defaultFiles.ReadFile("defaults/" + name + promptExt)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(raw)), true
}
