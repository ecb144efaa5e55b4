package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrNotLoaded is returned by operations that need a prompts root before
	// the first successful load
	ErrNotLoaded = errors.New("prompt registry has not been loaded")
	// ErrInvalidPath is returned when a category or filename would escape the
	// prompts root
	ErrInvalidPath = errors.New("invalid prompt path")
	// ErrPromptExists is returned when AddDefinition would overwrite a file
	ErrPromptExists = errors.New("prompt file already exists")
)

// Catalog is an immutable snapshot of the loaded definitions
type Catalog struct {
	root   string
	byName map[string]*Definition
	names  []string
}

func newCatalog(root string, definitions []*Definition) *Catalog {
	byName := make(map[string]*Definition, len(definitions))
	for _, d := range definitions {
		if prev, ok := byName[d.Name]; ok {
			slog.Warn("Duplicate prompt name, keeping the last one loaded",
				"name", d.Name, "previous", prev.SourcePath, "current", d.SourcePath)
		}
		byName[d.Name] = d
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Catalog{root: root, byName: byName, names: names}
}

// Root is the directory this catalog was loaded from
func (c *Catalog) Root() string {
	if c == nil {
		return ""
	}
	return c.root
}

// Lookup returns the definition with the given name
func (c *Catalog) Lookup(name string) (*Definition, bool) {
	if c == nil {
		return nil, false
	}
	d, ok := c.byName[name]
	return d, ok
}

// Names returns a sorted copy of all names in the catalog
func (c *Catalog) Names() []string {
	if c == nil {
		return []string{}
	}
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Definitions returns the definitions ordered by name
func (c *Catalog) Definitions() []*Definition {
	if c == nil {
		return nil
	}
	out := make([]*Definition, len(c.names))
	for i, name := range c.names {
		out[i] = c.byName[name]
	}
	return out
}

// Len returns the number of definitions
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byName)
}

// Publisher is notified after every catalog swap. previous is nil on the
// first load.
type Publisher interface {
	Publish(previous, current *Catalog)
}

// PublisherFunc adapts a function to the Publisher interface
type PublisherFunc func(previous, current *Catalog)

// Publish calls f(previous, current)
func (f PublisherFunc) Publish(previous, current *Catalog) {
	f(previous, current)
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithLoader replaces the directory loader (LoadAll by default)
func WithLoader(loader LoaderFunc) RegistryOption {
	return func(r *Registry) {
		r.loader = loader
	}
}

// WithPublisher adds a publisher notified after each swap
func WithPublisher(p Publisher) RegistryOption {
	return func(r *Registry) {
		r.publishers = append(r.publishers, p)
	}
}

// Registry owns the current catalog. Readers never block; every reload
// builds a new catalog and publishes it with a single pointer swap.
type Registry struct {
	current    atomic.Pointer[Catalog]
	loader     LoaderFunc
	publishers []Publisher

	// publishMu orders swap+publish pairs so publishers observe catalogs in
	// swap order. Directory walks run outside of it.
	publishMu sync.Mutex
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{loader: LoadAll}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddPublisher registers a publisher after construction
func (r *Registry) AddPublisher(p Publisher) {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	r.publishers = append(r.publishers, p)
}

// LoadAndRegister loads rootDir, swaps the resulting catalog in and notifies
// the publishers.
func (r *Registry) LoadAndRegister(rootDir string) (*Catalog, error) {
	definitions, err := r.loader(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	next := newCatalog(rootDir, definitions)

	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	previous := r.current.Swap(next)
	for _, p := range r.publishers {
		p.Publish(previous, next)
	}

	slog.Info("Registered prompts", "root", rootDir, "count", next.Len())
	return next, nil
}

// Catalog returns the current snapshot, nil before the first load
func (r *Registry) Catalog() *Catalog {
	return r.current.Load()
}

// Lookup returns the definition with the given name from the current snapshot
func (r *Registry) Lookup(name string) (*Definition, bool) {
	return r.current.Load().Lookup(name)
}

// ListNames returns the names in the current snapshot
func (r *Registry) ListNames() []string {
	return r.current.Load().Names()
}

// Len returns the number of definitions in the current snapshot
func (r *Registry) Len() int {
	return r.current.Load().Len()
}

// Root returns the directory the current snapshot was loaded from
func (r *Registry) Root() string {
	return r.current.Load().Root()
}

// AddStage identifies how far AddDefinition got before failing
type AddStage int

const (
	// StageValidate means the input was rejected and nothing was written
	StageValidate AddStage = iota + 1
	// StageWrite means writing the file failed; the catalog is unchanged
	StageWrite
	// StageReload means the file was written, the reload failed and the file
	// was removed again
	StageReload
	// StageCleanup means the reload failed and removing the file failed too
	StageCleanup
)

func (s AddStage) String() string {
	switch s {
	case StageValidate:
		return "validate"
	case StageWrite:
		return "write"
	case StageReload:
		return "reload"
	case StageCleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("AddStage(%d)", int(s))
	}
}

// AddError is returned by AddDefinition
type AddError struct {
	Stage      AddStage
	Path       string
	Err        error
	CleanupErr error
}

func (e *AddError) Error() string {
	switch e.Stage {
	case StageWrite:
		return fmt.Sprintf("failed to write prompt file %s: %v", e.Path, e.Err)
	case StageReload:
		return fmt.Sprintf("prompt file saved to %s, but failed to reload prompts: %v. The new file has been removed", e.Path, e.Err)
	case StageCleanup:
		return fmt.Sprintf("prompt file saved to %s, but failed to reload prompts (%v) and also failed to remove the file (%v)", e.Path, e.Err, e.CleanupErr)
	default:
		return fmt.Sprintf("invalid prompt: %v", e.Err)
	}
}

func (e *AddError) Unwrap() error {
	return e.Err
}

// AddDefinition writes raw to <root>/<category>/<filename> and reloads the
// whole catalog. Existing files are never overwritten. If the reload fails the
// file and any category directories created for it are removed again.
func (r *Registry) AddDefinition(category, filename string, raw []byte) error {
	root := r.Root()
	if root == "" {
		return &AddError{Stage: StageValidate, Err: ErrNotLoaded}
	}

	path, err := resolveAddPath(root, category, filename)
	if err != nil {
		return &AddError{Stage: StageValidate, Err: err}
	}

	if _, err := ParseDefinition(filename, raw); err != nil {
		return &AddError{Stage: StageValidate, Path: path, Err: err}
	}

	if _, err := os.Stat(path); err == nil {
		return &AddError{Stage: StageValidate, Path: path, Err: fmt.Errorf("%w: %s", ErrPromptExists, path)}
	}

	dir := filepath.Dir(path)
	createdDir := firstMissingDir(root, dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &AddError{Stage: StageWrite, Path: path, Err: err}
	}
	if err := writeNewFile(path, raw); err != nil {
		removeEmptyDirs(dir, createdDir)
		if errors.Is(err, fs.ErrExist) {
			return &AddError{Stage: StageValidate, Path: path, Err: fmt.Errorf("%w: %s", ErrPromptExists, path)}
		}
		return &AddError{Stage: StageWrite, Path: path, Err: err}
	}

	slog.Info("Prompt file written", "path", path)

	if _, err := r.LoadAndRegister(root); err != nil {
		slog.Error("Reload failed after adding prompt, removing file", "path", path, "error", err)
		if removeErr := os.Remove(path); removeErr != nil {
			slog.Error("Failed to remove prompt file after reload error", "path", path, "error", removeErr)
			return &AddError{Stage: StageCleanup, Path: path, Err: err, CleanupErr: removeErr}
		}
		removeEmptyDirs(dir, createdDir)
		return &AddError{Stage: StageReload, Path: path, Err: err}
	}

	return nil
}

// writeNewFile writes data to path, failing with fs.ErrExist if it is already
// there
func writeNewFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// firstMissingDir returns the outermost directory between root (exclusive) and
// dir (inclusive) that does not exist yet, or "" if dir already exists
func firstMissingDir(root, dir string) string {
	root = filepath.Clean(root)
	missing := ""
	for d := filepath.Clean(dir); d != root && d != filepath.Dir(d); d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		}
		missing = d
	}
	return missing
}

// removeEmptyDirs removes dir and its parents up to and including top. Only
// empty directories are removed.
func removeEmptyDirs(dir, top string) {
	if top == "" {
		return
	}
	for d := filepath.Clean(dir); ; d = filepath.Dir(d) {
		if err := os.Remove(d); err != nil {
			slog.Debug("Left category directory in place", "path", d, "error", err)
			return
		}
		if d == top || d == filepath.Dir(d) {
			return
		}
	}
}

// resolveAddPath joins category and filename under root, rejecting anything
// that would land outside of it
func resolveAddPath(root, category, filename string) (string, error) {
	if !IsPromptFile(filename) {
		return "", fmt.Errorf("%w: filename must end with .yaml, .yml or .json", ErrUnsupportedExtension)
	}
	if filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("%w: filename must not contain path separators", ErrInvalidPath)
	}
	if filepath.IsAbs(category) {
		return "", fmt.Errorf("%w: category must be relative", ErrInvalidPath)
	}

	dir := filepath.Join(root, category)
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: category escapes the prompts directory", ErrInvalidPath)
	}

	return filepath.Join(dir, filename), nil
}
