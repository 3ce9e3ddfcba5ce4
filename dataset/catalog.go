// Package dataset holds the fixed set of tables scripts may read.
package dataset

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/antgroup/datacrew/frame"
	"github.com/pkg/errors"
	"github.com/tidwall/match"
)

// Names of the configured datasets, as scripts refer to them.
const (
	Amministrati = "AMMINISTRATI.csv"
	Reddito      = "REDDITO.csv"
	Pendolarismo = "PENDOLARISMO.csv"
	Stipendi     = "STIPENDI.csv"
)

var Names = []string{Amministrati, Reddito, Pendolarismo, Stipendi}

type Entry struct {
	Name string
	Path string
}

// Catalog maps dataset names to files and caches parsed tables. It is safe
// for concurrent use.
type Catalog struct {
	entries []Entry
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]*frame.Table
}

type Option func(*Catalog)

func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = l
	}
}

func NewCatalog(entries []Entry, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		logger: slog.Default(),
		cache:  map[string]*frame.Table{},
	}
	for _, opt := range opts {
		opt(c)
	}
	seen := map[string]struct{}{}
	for _, e := range entries {
		if e.Path == "" {
			return nil, errors.Wrapf(ErrNoPath, "dataset %s", e.Name)
		}
		if _, ok := seen[e.Name]; ok {
			return nil, fmt.Errorf("duplicate dataset %s", e.Name)
		}
		seen[e.Name] = struct{}{}
		c.entries = append(c.entries, e)
	}
	return c, nil
}

func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Paths returns name -> path, the AVAILABLE_DATA_PATHS binding.
func (c *Catalog) Paths() map[string]string {
	out := make(map[string]string, len(c.entries))
	for _, e := range c.entries {
		out[e.Name] = e.Path
	}
	return out
}

// Resolve maps a dataset name, its configured path, or its base file name
// to the configured entry. Anything else is rejected.
func (c *Catalog) Resolve(ref string) (Entry, error) {
	ref = strings.TrimSpace(ref)
	for _, e := range c.entries {
		if ref == e.Name || ref == e.Path {
			return e, nil
		}
	}
	clean := filepath.Clean(ref)
	for _, e := range c.entries {
		if clean == filepath.Clean(e.Path) || strings.EqualFold(filepath.Base(clean), e.Name) {
			return e, nil
		}
	}
	return Entry{}, errors.Wrapf(ErrNotAllowed, "%q", ref)
}

// Open implements frame.Source.
func (c *Catalog) Open(ref, sheet string) (*frame.Table, error) {
	e, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	key := e.Path + "#" + sheet
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.cache[key]; ok {
		return t, nil
	}
	t, err := ReadFile(e.Path, sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", e.Name)
	}
	c.logger.Debug("dataset loaded", "name", e.Name, "path", e.Path, "rows", t.Len())
	c.cache[key] = t
	return t, nil
}

// Match lists dataset names matching a wildcard pattern such as "*REDD*".
func (c *Catalog) Match(pattern string) []string {
	var out []string
	for _, e := range c.entries {
		if match.Match(e.Name, pattern) {
			out = append(out, e.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Describe summarizes every dataset for prompts. Unreadable files are
// reported inline.
func (c *Catalog) Describe() string {
	var sb strings.Builder
	for _, e := range c.entries {
		t, err := c.Open(e.Name, "")
		if err != nil {
			fmt.Fprintf(&sb, "- %s (%s): unreadable: %v\n", e.Name, e.Path, err)
			continue
		}
		fmt.Fprintf(&sb, "- %s (%s): %s\n", e.Name, e.Path, frame.Summary(t))
	}
	return sb.String()
}
