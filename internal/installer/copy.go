package installer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
)

type copyAction struct {
	src  string
	dest string
}

// scanCopyActions recursively walks location, returning a flat list of
// (src, dest) file-copy actions, skipping top-level entries whose
// basename is in exclude. dest is relative to location.
func scanCopyActions(location string, exclude map[string]bool) ([]copyAction, error) {
	return walkCopyActions(location, location, exclude)
}

func walkCopyActions(root, dir string, exclude map[string]bool) ([]copyAction, error) {
	var actions []copyAction

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return actions, nil
		}
		return nil, &IOError{Op: "readdir", Path: dir, Err: err}
	}

	for _, e := range entries {
		if dir == root && exclude[e.Name()] {
			continue
		}
		src := filepath.Join(dir, e.Name())
		if e.IsDir() {
			sub, err := walkCopyActions(root, src, exclude)
			if err != nil {
				return nil, err
			}
			actions = append(actions, sub...)
			continue
		}
		rel, err := filepath.Rel(root, src)
		if err != nil {
			return nil, &IOError{Op: "rel", Path: src, Err: err}
		}
		actions = append(actions, copyAction{src: src, dest: rel})
	}
	return actions, nil
}

// runCopy executes the given copy actions, rooted at destRoot, across a
// worker pool sized min(len(actions), workersLimit). Each worker copies a
// disjoint slice; any single file-copy failure aborts the whole install.
func runCopy(ctx context.Context, actions []copyAction, destRoot string, workersLimit int) error {
	if len(actions) == 0 {
		return nil
	}

	dirs := make(map[string]bool)
	for _, a := range actions {
		dirs[filepath.Dir(filepath.Join(destRoot, a.dest))] = true
	}
	for dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &IOError{Op: "mkdir", Path: dir, Err: err}
		}
	}

	workers := workersLimit
	if workers <= 0 {
		workers = effectiveWorkersLimit()
	}
	if workers > len(actions) {
		workers = len(actions)
	}
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	chunks := partition(actions, workers)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			for _, a := range chunk {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				if err := copyFile(a.src, filepath.Join(destRoot, a.dest)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func partition(actions []copyAction, workers int) [][]copyAction {
	chunks := make([][]copyAction, workers)
	for i, a := range actions {
		w := i % workers
		chunks[w] = append(chunks[w], a)
	}
	return chunks
}

func copyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return &IOError{Op: "stat", Path: src, Err: err}
	}

	in, err := os.Open(src)
	if err != nil {
		return &IOError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return &IOError{Op: "create", Path: dest, Err: err}
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return &IOError{Op: "copy", Path: dest, Err: err}
	}
	return nil
}

// effectiveWorkersLimit honors WORKERS_LIMIT before falling back to the
// number of CPUs, matching internal/config's defaultWorkersLimit.
func effectiveWorkersLimit() int {
	if s := os.Getenv("WORKERS_LIMIT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}
