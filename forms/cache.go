package forms

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultExtension is appended to form paths given without one.
const DefaultExtension = ".go"

// CacheOptions configures a Cache.
type CacheOptions struct {
	Compiler  Compiler
	Host      Host
	Extension string
	Metrics   *Metrics
	Logger    *slog.Logger
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Entries       int
	Compilations  int
	Hits          int
	Retirements   int
	CompileErrors int
}

type cacheEntry struct {
	modTime time.Time
	form    *Form
}

// Cache holds at most one live form per absolute path. A form is reused
// while its file's modification time is unchanged and rebuilt otherwise.
//
// Compilation runs without holding the cache lock, so a form's Init may
// call back into the host and request other forms. A second request for a
// path that is still compiling fails with ErrCompileInProgress.
type Cache struct {
	mu        sync.Mutex
	compiler  Compiler
	host      Host
	extension string
	entries   map[string]*cacheEntry
	compiling map[string]bool
	// generation is bumped by Clear; a compilation that straddles a Clear
	// is discarded.
	generation uint64
	stats     Stats
	metrics   *Metrics
	logger    *slog.Logger
}

// NewCache creates an empty cache. A nil compiler selects a YaegiCompiler
// without a GoPath.
func NewCache(opts CacheOptions) *Cache {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Compiler == nil {
		opts.Compiler = NewYaegiCompiler("", opts.Logger)
	}
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	if opts.Metrics == nil {
		opts.Metrics, _ = NewMetrics(nil)
	}
	return &Cache{
		compiler:  opts.Compiler,
		host:      opts.Host,
		extension: opts.Extension,
		entries:   make(map[string]*cacheEntry),
		compiling: make(map[string]bool),
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Resolve returns the absolute path a form request maps to.
func (c *Cache) Resolve(path string) (string, error) {
	if filepath.Ext(path) == "" {
		path += c.extension
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve form path %s: %w", path, err)
	}
	return abs, nil
}

// Form returns the compiled form for path, compiling it when it is not
// cached or its file changed. A missing file or failed compilation leaves
// any cached form in place and returns the error.
func (c *Cache) Form(path string) (*Form, error) {
	abs, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	info, err := os.Stat(abs)
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("Form file not found", slog.String("path", abs))
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, abs)
		}
		return nil, fmt.Errorf("failed to stat form %s: %w", abs, err)
	}
	modTime := info.ModTime()

	if old, cached := c.entries[abs]; cached && old.modTime.Equal(modTime) {
		c.stats.Hits++
		c.metrics.CacheHits.Inc()
		c.mu.Unlock()
		return old.form, nil
	}
	if c.compiling[abs] {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCompileInProgress, abs)
	}
	c.compiling[abs] = true
	generation := c.generation
	c.mu.Unlock()

	form, err := c.compiler.Compile(abs, c.host)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.compiling, abs)

	if err != nil {
		if errors.Is(err, ErrCompilation) {
			c.stats.CompileErrors++
			c.metrics.CompileErrors.Inc()
		}
		c.logger.Error("Form compilation failed", slog.String("path", abs), slog.Any("error", err))
		return nil, err
	}
	c.stats.Compilations++
	c.metrics.Compilations.Inc()

	if generation != c.generation {
		form.Binding().Detach()
		form.release()
		c.logger.Debug("Form discarded after clear", slog.String("path", abs))
		return nil, fmt.Errorf("%w: %s", ErrFormRetired, abs)
	}

	old, cached := c.entries[abs]
	if cached {
		c.retire(abs, old)
	}
	c.entries[abs] = &cacheEntry{modTime: modTime, form: form}

	c.logger.Debug("Form cached", slog.String("path", abs), slog.Bool("replaced", cached))
	return form, nil
}

// retire disconnects a form from the host, drops it from the cache and
// releases it, in that order.
func (c *Cache) retire(abs string, e *cacheEntry) {
	e.form.Binding().Detach()
	delete(c.entries, abs)
	e.form.release()

	c.stats.Retirements++
	c.metrics.Retirements.Inc()
}

// Clear retires every cached form. Forms handed out earlier must not be
// used afterwards.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for abs, e := range c.entries {
		c.retire(abs, e)
	}
}

// Len returns the number of cached forms.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}
