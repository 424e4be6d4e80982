package catalog

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/fsnotify/fsnotify"
)

const debounce = 100 * time.Millisecond

// Watcher reloads the catalog file into the store whenever it changes.
type Watcher struct {
	Path    string
	Reloads <-chan error // result of every reload attempt

	store   storage.CatalogStorage
	reloads chan error
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the catalog file at path.
func NewWatcher(path string, store storage.CatalogStorage) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan error, 16)
	return &Watcher{
		Path:    path,
		Reloads: ch,
		store:   store,
		reloads: ch,
		done:    make(chan struct{}),
		watcher: fw,
	}, nil
}

// Start watches the directory of the file; editors often replace files by rename.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.Path)); err != nil {
		return err
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
	close(w.reloads)
}

func (w *Watcher) loop() {
	defer close(w.done)

	target := filepath.Clean(w.Path)
	var pending time.Time
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.Now()
			}

		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= debounce {
				pending = time.Time{}
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("WARN catalog watcher: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := LoadFile(w.Path)
	if err == nil {
		err = Apply(ctx, w.store, snap)
	}

	if err != nil {
		log.Printf("WARN catalog: reload of %s failed, keeping previous catalog: %v", w.Path, err)
	} else {
		log.Printf("INFO catalog: reloaded %s (%d ingredients, %d dishes)", w.Path, len(snap.Ingredients), len(snap.Dishes))
	}

	select {
	case w.reloads <- err:
	default:
	}
}
