package localdir

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
	"github.com/custodia-labs/indexsync/internal/logger"
)

// Extension is the suffix of item files.
const Extension = ".json"

var _ driven.ChangeFetcher = (*Fetcher)(nil)

// itemFile is the on-disk item format. Files that are a plain JSON object
// without a "fields" key are treated as fields in their entirety.
type itemFile struct {
	Kind        domain.ContentKind `json:"kind"`
	ContentType string             `json:"contentType"`
	CreatedAt   time.Time          `json:"createdAt"`
	Fields      map[string]any     `json:"fields"`
}

// Fetcher implements driven.ChangeFetcher over a directory.
// Item ids are file names without the extension.
type Fetcher struct {
	dir string

	// unparsable maps a file name to the hash of content that failed to
	// parse. Seeing the same content fail again makes the error fatal.
	mu         sync.Mutex
	unparsable map[string]string
}

// New creates a fetcher for dir.
func New(dir string) *Fetcher {
	return &Fetcher{dir: dir, unparsable: make(map[string]string)}
}

// Dir returns the watched directory.
func (f *Fetcher) Dir() string {
	return f.dir
}

// Validate checks the directory exists.
func (f *Fetcher) Validate() error {
	if f.dir == "" {
		return fmt.Errorf("%w: localdir directory is required", domain.ErrInvalidInput)
	}
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, f.dir)
	}
	return nil
}

// Fetch diffs the directory against the cursor in token. The whole
// directory is always returned in a single change set.
func (f *Fetcher) Fetch(ctx context.Context, token string) (*domain.ChangeSet, error) {
	prev, err := DecodeCursor(token)
	if err != nil {
		return nil, domain.NewTokenExpiredError(err)
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, domain.NewFatalFetchError(fmt.Errorf("read directory: %w", err))
	}

	next := NewCursor()
	cs := &domain.ChangeSet{Initial: token == ""}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewFatalFetchError(err)
		}
		if !isItemFile(entry) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), Extension)
		path := filepath.Join(f.dir, entry.Name())

		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			// Removed between ReadDir and ReadFile.
			continue
		}
		if err != nil {
			return nil, domain.NewTransientFetchError(fmt.Errorf("read %s: %w", entry.Name(), err))
		}

		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])
		next.Items[id] = hash
		if prev.Items[id] == hash {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, domain.NewTransientFetchError(fmt.Errorf("stat %s: %w", entry.Name(), err))
		}
		item, err := parseItem(id, data, info.ModTime())
		if err != nil {
			return nil, f.parseFailure(entry.Name(), hash, err)
		}
		f.forgetFailure(entry.Name())
		cs.Upserts = append(cs.Upserts, item)
	}

	for id := range prev.Items {
		if _, ok := next.Items[id]; !ok {
			cs.Deletions = append(cs.Deletions, id)
		}
	}
	sort.Strings(cs.Deletions)

	cs.NextToken, err = next.Encode()
	if err != nil {
		return nil, domain.NewFatalFetchError(fmt.Errorf("encode cursor: %w", err))
	}

	logger.Debug("localdir: %d upserts, %d deletions from %s", len(cs.Upserts), len(cs.Deletions), f.dir)
	return cs, nil
}

// parseFailure classifies a parse error. The first failure is transient,
// since the file is usually caught mid-write. The same content failing
// again means the file itself is malformed.
func (f *Fetcher) parseFailure(name, hash string, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unparsable[name] == hash {
		return domain.NewFatalFetchError(fmt.Errorf("malformed item file %s: %w", filepath.Join(f.dir, name), err))
	}
	f.unparsable[name] = hash
	return domain.NewTransientFetchError(fmt.Errorf("parse %s: %w", name, err))
}

func (f *Fetcher) forgetFailure(name string) {
	f.mu.Lock()
	delete(f.unparsable, name)
	f.mu.Unlock()
}

func parseItem(id string, data []byte, modTime time.Time) (domain.ContentItem, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.ContentItem{}, err
	}

	item := domain.ContentItem{
		ID:        id,
		Kind:      domain.KindEntry,
		UpdatedAt: modTime.UTC(),
	}

	if _, ok := raw["fields"]; !ok {
		if err := json.Unmarshal(data, &item.Fields); err != nil {
			return domain.ContentItem{}, err
		}
		return item, nil
	}

	var file itemFile
	if err := json.Unmarshal(data, &file); err != nil {
		return domain.ContentItem{}, err
	}
	if file.Kind != "" {
		item.Kind = file.Kind
	}
	item.TypeID = file.ContentType
	item.CreatedAt = file.CreatedAt
	item.Fields = file.Fields
	return item, nil
}

func isItemFile(entry fs.DirEntry) bool {
	return entry.Type().IsRegular() && !isHidden(entry.Name()) && strings.HasSuffix(entry.Name(), Extension)
}

// isHidden reports whether a path or any of its directories starts with a
// dot. "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
