// Package kvstore is the durable key/value storage that outlives a process.
// Each key is one file under a state directory. Watch reports changes made
// to that directory by any process, including this one.
package kvstore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/okian/flames/pkg/logger"
)

const (
	defaultDirMode  fs.FileMode = 0o700
	defaultFileMode fs.FileMode = 0o600
	tmpPrefix                   = ".tmp-"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// Store is durable string storage keyed by short names.
type Store interface {
	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set replaces the value of key.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Watch streams changes until ctx is done.
	Watch(ctx context.Context) (<-chan Change, error)
}

// Change describes one key that was written or removed.
type Change struct {
	Key     string
	Value   string
	Removed bool
}

// FileStore implements Store on top of a directory.
type FileStore struct {
	dir      string
	fileMode fs.FileMode
	logger   logger.Logger
}

// New opens (creating if needed) the state directory dir.
func New(dir string, opts ...Option) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.Mark(errors.New("state directory must not be empty"), ErrStorage)
	}
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return nil, storageErr(err, "create state dir", dir)
	}
	s := &FileStore{
		dir:      dir,
		fileMode: defaultFileMode,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the backing directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", errors.Mark(errors.Newf("key %q", key), ErrInvalidKey)
	}
	return filepath.Join(s.dir, key), nil
}

// Get reads key.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr(err, "read", key)
	}
	return string(b), true, nil
}

// Set writes key atomically through a temp file and rename.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, tmpPrefix+key+"-*")
	if err != nil {
		return storageErr(err, "create temp for", key)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return storageErr(err, "write", key)
	}
	if err := tmp.Chmod(s.fileMode); err != nil {
		_ = tmp.Close()
		return storageErr(err, "chmod", key)
	}
	if err := tmp.Close(); err != nil {
		return storageErr(err, "close", key)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return storageErr(err, "rename", key)
	}
	return nil
}

// Remove deletes key.
func (s *FileStore) Remove(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr(err, "remove", key)
	}
	return nil
}

// Watch reports changes to keys in the state directory. The channel is
// closed when ctx is done or the watcher fails.
func (s *FileStore) Watch(ctx context.Context) (<-chan Change, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, storageErr(err, "create watcher for", s.dir)
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return nil, storageErr(err, "watch", s.dir)
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				change, ok := s.resolve(ctx, ev)
				if !ok {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn(ctx, "state dir watch error", logger.String("dir", s.dir), logger.Error(err))
			}
		}
	}()
	return out, nil
}

// resolve turns a filesystem event into the key's current state.
func (s *FileStore) resolve(ctx context.Context, ev fsnotify.Event) (Change, bool) {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return Change{}, false
	}
	key := filepath.Base(ev.Name)
	if strings.HasPrefix(key, tmpPrefix) || !keyPattern.MatchString(key) {
		return Change{}, false
	}
	value, found, err := s.Get(ctx, key)
	if err != nil {
		s.logger.Debug(ctx, "skip unreadable key", logger.String("key", key), logger.Error(err))
		return Change{}, false
	}
	if !found {
		return Change{Key: key, Removed: true}, true
	}
	return Change{Key: key, Value: value}, true
}
