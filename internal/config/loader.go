package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// settleDelay is how long the file must stay quiet before a reload.
const settleDelay = 100 * time.Millisecond

// fileFormat decodes and encodes one configuration syntax.
type fileFormat struct {
	name   string
	decode func([]byte, *Config) error
	encode func(*Config) ([]byte, error)
}

var (
	tomlFormat = fileFormat{
		name: "TOML",
		decode: func(b []byte, c *Config) error {
			_, err := toml.Decode(string(b), c)
			return err
		},
		encode: func(c *Config) ([]byte, error) {
			var sb strings.Builder
			err := toml.NewEncoder(&sb).Encode(c)
			return []byte(sb.String()), err
		},
	}
	jsonFormat = fileFormat{
		name:   "JSON",
		decode: func(b []byte, c *Config) error { return json.Unmarshal(b, c) },
		encode: func(c *Config) ([]byte, error) { return json.MarshalIndent(c, "", "  ") },
	}
	yamlFormat = fileFormat{
		name:   "YAML",
		decode: func(b []byte, c *Config) error { return yaml.Unmarshal(b, c) },
		encode: func(c *Config) ([]byte, error) { return yaml.Marshal(c) },
	}
)

// formatFor maps a file extension to its syntax. ok is false when the
// extension says nothing, in which case every syntax is tried.
func formatFor(path string) (fileFormat, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return tomlFormat, true
	case ".json":
		return jsonFormat, true
	case ".yaml", ".yml":
		return yamlFormat, true
	}
	return tomlFormat, false
}

// Loader owns the current configuration and, once Watch is called,
// replaces it whenever the file changes to something valid.
type Loader struct {
	path string

	mu        sync.RWMutex
	current   *Config
	listeners []func(*Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
	errs    chan error
}

// NewLoader returns a loader for path. With an empty path only the
// defaults and the environment apply.
func NewLoader(path string) *Loader {
	return &Loader{
		path: path,
		done: make(chan struct{}),
		errs: make(chan error, 1),
	}
}

// Load builds the configuration from file, environment and defaults.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.build()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) build() (*Config, error) {
	cfg, err := parseFile(l.path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Config returns the configuration last loaded.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Path returns the configuration file, or "".
func (l *Loader) Path() string {
	return l.path
}

// OnChange adds fn to the functions called after each successful reload.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// Errors delivers reload failures. Only the oldest unread one is kept.
func (l *Loader) Errors() <-chan error {
	return l.errs
}

// Watch follows the configuration file until Close.
func (l *Loader) Watch() error {
	if l.path == "" {
		return errors.New("no config file to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Saves often rename a temp file over the original, so follow the directory.
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	l.watcher = w
	go l.follow(w)
	return nil
}

func (l *Loader) follow(w *fsnotify.Watcher) {
	name := filepath.Base(l.path)
	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-l.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) == name && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				settle.Reset(settleDelay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.fail(err)
		case <-settle.C:
			l.refresh()
		}
	}
}

func (l *Loader) refresh() {
	cfg, err := l.build()
	if err != nil {
		l.fail(fmt.Errorf("reload config: %w", err))
		return
	}

	l.mu.Lock()
	l.current = cfg
	listeners := append([]func(*Config){}, l.listeners...)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

func (l *Loader) fail(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

// Close stops watching. It is safe to call more than once.
func (l *Loader) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		if l.watcher != nil {
			err = l.watcher.Close()
		}
	})
	return err
}

// parseFile decodes path over DefaultConfig. A missing file counts as empty.
func parseFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if f, ok := formatFor(path); ok {
		if err := f.decode(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.name, err)
		}
		return cfg, nil
	}

	for _, f := range []fileFormat{tomlFormat, jsonFormat, yamlFormat} {
		// fresh defaults per attempt; a failed decode may leave partial fields
		try := DefaultConfig()
		if f.decode(data, try) == nil {
			return try, nil
		}
	}
	return nil, fmt.Errorf("parse config %s: not TOML, JSON or YAML", filepath.Base(path))
}

// SaveConfig writes cfg to path in the syntax its extension names, TOML
// otherwise.
func SaveConfig(cfg *Config, path string) error {
	f, _ := formatFor(path)
	data, err := f.encode(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
