// Package prompts loads the system instruction sent with every
// synthesis call and optionally reloads it when the file changes.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FallbackSystemPrompt is used when the template file is missing or empty.
const FallbackSystemPrompt = "You are a renewal desk assistant. Follow the schema exactly."

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize prompt watcher")

// Loader serves the system prompt read from a template file.
type Loader struct {
	path   string
	logger *zap.Logger

	mu     sync.RWMutex
	text   string
	loaded bool
}

// NewLoader reads path once. An unreadable or empty file leaves the
// loader serving FallbackSystemPrompt.
func NewLoader(path string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{logger: logger}
	if path != "" {
		l.path = filepath.Clean(path)
	}
	if err := l.Reload(); err != nil {
		logger.Debug("system prompt unavailable, using fallback",
			zap.String("path", path), zap.Error(err))
	}
	return l
}

// System returns the current system prompt.
func (l *Loader) System() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.loaded {
		return FallbackSystemPrompt
	}
	return l.text
}

// Loaded reports whether the template file is in use.
func (l *Loader) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// Reload rereads the template file. On failure the loader falls back.
func (l *Loader) Reload() error {
	if l.path == "" {
		l.set("", false)
		return fmt.Errorf("no prompt path configured")
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		l.set("", false)
		return fmt.Errorf("reading prompt: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		l.set("", false)
		return fmt.Errorf("prompt file %s is empty", l.path)
	}
	l.set(text, true)
	return nil
}

func (l *Loader) set(text string, loaded bool) {
	l.mu.Lock()
	l.text = text
	l.loaded = loaded
	l.mu.Unlock()
}

// Watch reloads the prompt whenever its file is written, created or
// removed. The parent directory is watched so editors that replace the
// file are handled. Watch blocks until ctx is cancelled.
func (l *Loader) Watch(ctx context.Context) error {
	if l.path == "" {
		return fmt.Errorf("no prompt path configured")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(l.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != l.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := l.Reload(); err != nil {
				l.logger.Warn("system prompt reload failed, using fallback",
					zap.String("path", l.path), zap.Error(err))
				continue
			}
			l.logger.Info("system prompt reloaded", zap.String("path", l.path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("prompt watcher error", zap.Error(err))
		}
	}
}
