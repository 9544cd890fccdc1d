// Package watch reports changes to snapshot files.
//
// A Watcher observes a set of files or directories with fsnotify and calls
// its handler with debounced batches of changes. Files are watched through
// their parent directory so editors that save by renaming a temporary file
// over the original are still seen.
//
//	w, err := watch.NewWatcher(watch.WatcherConfig{Paths: []string{"old.json", "new.json"}})
//	if err != nil {
//	    return err
//	}
//	w.OnChange(func(changes []watch.Change) {
//	    // re-run the diff
//	})
//	err = w.Start(ctx) // blocks until ctx is done or Stop is called
package watch
