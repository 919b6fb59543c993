package kv

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var (
	errStoreFileIsDir = errors.New("store file is dir")
)

const (
	localOrigin uint64 = iota
	diskOrigin
)

// File keeps the store as one JSON document. Writes replace the whole
// file through a rename, so another process reading it sees either the
// old or the new document.
type File struct {
	path string
	log  *zap.Logger

	mu     sync.RWMutex
	data   map[string]string
	closed bool

	watchOnce sync.Once
	watchErr  error
	watcher   *fsnotify.Watcher
	watch     fanout
	done      chan struct{}
}

func OpenFile(path string, log *zap.Logger) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f := &File{
		path: abs,
		log:  log,
		data: map[string]string{},
		done: make(chan struct{}),
	}

	data, err := f.readfile()
	switch {
	case err == nil:
		f.data = data
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, err
		}
		if err := f.writefile(f.data); err != nil {
			return nil, err
		}
	case errors.Is(err, errStoreFileIsDir):
		return nil, err
	default:
		// only log, the next write will replace the broken document
		f.log.Warn("failed reading store file", zap.String("path", abs), zap.Error(err))
	}

	return f, nil
}

func (f *File) readfile() (map[string]string, error) {
	finfo, err := os.Stat(f.path)
	if err != nil {
		return nil, err
	}

	if finfo.IsDir() {
		return nil, errStoreFileIsDir
	}

	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}

	data := map[string]string{}
	if len(b) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (f *File) writefile(data map[string]string) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".kv-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.path)
}

// current reads the document as it is on disk now. A missing or broken
// document reads as empty.
func (f *File) current() (map[string]string, error) {
	data, err := f.readfile()
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, os.ErrNotExist):
		return map[string]string{}, nil
	case errors.Is(err, errStoreFileIsDir):
		return nil, err
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		f.log.Debug("reading broken store file as empty", zap.Error(err))
		return map[string]string{}, nil
	}
	return nil, err
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return "", false, ErrClosed
	}

	data, err := f.current()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (f *File) GetMany(_ context.Context, keys ...string) (map[string]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}

	data, err := f.current()
	if err != nil {
		return nil, err
	}
	return pick(data, keys), nil
}

func (f *File) SetMany(_ context.Context, values map[string]string) error {
	return f.update(func(next map[string]string) {
		for k, v := range values {
			next[k] = v
		}
	})
}

func (f *File) Delete(_ context.Context, keys ...string) error {
	return f.update(func(next map[string]string) {
		for _, k := range keys {
			delete(next, k)
		}
	})
}

// update applies a change to the document on disk, not to what this
// handle last saw, so keys written or removed by other processes survive.
// Those foreign changes are published before our own write lands.
func (f *File) update(apply func(map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	disk, err := f.current()
	if err != nil {
		return err
	}
	foreign := diff(f.data, disk)

	next := make(map[string]string, len(disk))
	for k, v := range disk {
		next[k] = v
	}
	apply(next)

	if len(diff(disk, next)) > 0 {
		if err := f.writefile(next); err != nil {
			return err
		}
	}
	f.data = next

	f.watch.publish(diskOrigin, foreign)
	return nil
}

func (f *File) Watch(ctx context.Context) (<-chan Change, error) {
	f.watchOnce.Do(func() {
		f.watchErr = f.startWatcher()
	})
	if f.watchErr != nil {
		return nil, f.watchErr
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}

	return f.watch.subscribe(ctx, localOrigin), nil
}

// startWatcher watches the directory rather than the file, since every
// write swaps the file for a new one.
func (f *File) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return err
	}
	f.watcher = w

	go func() {
		for {
			select {
			case <-f.done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != f.path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				f.reload()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.log.Warn("store file watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

// reload picks up a document written by another process and publishes the
// difference. f.data is the last document this handle saw, so our own
// writes diff to nothing.
func (f *File) reload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	data, err := f.current()
	if err != nil {
		f.log.Debug("skipping unreadable store file", zap.Error(err))
		return
	}

	changes := diff(f.data, data)
	f.data = data
	f.watch.publish(diskOrigin, changes)
}

func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	close(f.done)
	f.watch.closeAll()
	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}
