package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/iksnae/chat-recorder/internal"
)

// WatchDebounce is how long a spool file must stay quiet before it is replayed
var WatchDebounce = 200 * time.Millisecond

// Watch replays every .jsonl file in dir, then every .jsonl file that appears
// there, until ctx is done. Each file is replayed once; producers should write
// elsewhere and rename into dir. onFile, if set, is called after each replay.
func (r *Recorder) Watch(ctx context.Context, dir string, onFile func(path string, stats Stats)) (Stats, error) {
	dir = filepath.Clean(dir)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return Stats{}, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var total Stats
	seen := make(map[string]bool)
	replay := func(path string) {
		path = filepath.Clean(path)
		if seen[path] {
			return
		}
		seen[path] = true
		stats, err := r.ReplayFile(ctx, path)
		if err != nil {
			internal.LogWarn("replay %s: %v", path, err)
		}
		total.Add(stats)
		if onFile != nil {
			onFile(path, stats)
		}
	}

	existing, err := spoolFiles(dir)
	if err != nil {
		return total, err
	}
	for _, path := range existing {
		replay(path)
	}

	ready := make(chan string, 32)
	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return total, nil
		case event, ok := <-watcher.Events:
			if !ok {
				return total, nil
			}
			if !isSpoolFile(event.Name) || event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := event.Name
			mu.Lock()
			if t, ok := timers[name]; ok {
				t.Stop()
			}
			timers[name] = time.AfterFunc(WatchDebounce, func() {
				mu.Lock()
				delete(timers, name)
				mu.Unlock()
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})
			mu.Unlock()
		case path := <-ready:
			replay(path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return total, nil
			}
			internal.LogWarn("watch %s: %v", dir, err)
		}
	}
}

func isSpoolFile(path string) bool {
	return strings.HasSuffix(path, ".jsonl") && !strings.HasPrefix(filepath.Base(path), ".")
}

func spoolFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && isSpoolFile(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
