package nativehal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/zeroos-kernel/zeroos/internal/interp"
)

// ModuleFactory turns a raw binary image into a runnable interp.Module.
// The actual interpreter/loader (bytecode format, native ABI) is supplied
// by the embedding application; this package only manages the named
// registry and its hot-reload.
type ModuleFactory func(image []byte) (interp.Module, error)

// BinaryStore is the native host's registry of named binaries, loaded from
// a directory and hot-reloaded on change via fsnotify, so an operator can
// update a module image without restarting the kernel. The LoadBinary
// syscall (0x70) does not read it: the dispatcher answers that syscall
// with ErrNotSupported.
type BinaryStore struct {
	dir     string
	factory ModuleFactory

	mu     sync.RWMutex
	images map[string][]byte

	watcher *fsnotify.Watcher
}

// NewBinaryStore loads every file in dir as a named binary and starts
// watching dir for changes.
func NewBinaryStore(dir string, factory ModuleFactory) (*BinaryStore, error) {
	s := &BinaryStore{dir: dir, factory: factory, images: make(map[string][]byte)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("nativehal: read binary dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := s.reload(e.Name()); err != nil {
			return nil, err
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("nativehal: fsnotify watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("nativehal: watch %s: %w", dir, err)
	}
	s.watcher = w
	go s.watch()
	return s, nil
}

func (s *BinaryStore) watch() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				name := filepath.Base(ev.Name)
				// Best-effort: a reload failure leaves the previous image
				// in place rather than evicting it, so a bad write never
				// takes down an already-loaded binary.
				_ = s.reload(name)
			}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (s *BinaryStore) reload(name string) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("nativehal: read binary %s: %w", name, err)
	}
	s.mu.Lock()
	s.images[name] = data
	s.mu.Unlock()
	return nil
}

// Load resolves name to a fresh interp.Module instance via factory. Each
// call produces a new Module so that a reloaded image only affects
// processes spawned after the reload, never one already running.
func (s *BinaryStore) Load(name string) (interp.Module, error) {
	s.mu.RLock()
	image, ok := s.images[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("nativehal: no binary named %q", name)
	}
	return s.factory(image)
}

// Close stops the fsnotify watcher.
func (s *BinaryStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}
