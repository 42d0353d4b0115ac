package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/Kosthi/openace/internal/scanner"
)

// pollingSource periodically rescans the root and diffs file state, used
// when fsnotify is unavailable.
type pollingSource struct {
	interval time.Duration
	rootPath string
	state    map[string]time.Time
	raw      chan rawEvent
}

func newPollingSource(interval time.Duration) *pollingSource {
	return &pollingSource{
		interval: interval,
		state:    make(map[string]time.Time),
		raw:      make(chan rawEvent, 256),
	}
}

func (p *pollingSource) run(ctx context.Context, rootPath string) error {
	p.rootPath = rootPath
	if err := p.scan(true); err != nil {
		return fmt.Errorf("watcher: initial poll scan: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = p.scan(false)
		}
	}
}

func (p *pollingSource) scan(baseline bool) error {
	current := make(map[string]time.Time)
	err := filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		relPath, relErr := filepath.Rel(p.rootPath, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if !scanner.IsEligiblePath(relPath) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		mod := info.ModTime()
		current[relPath] = mod

		if baseline {
			return nil
		}
		if prev, ok := p.state[relPath]; !ok {
			p.emit(relPath, rawCreate)
		} else if !prev.Equal(mod) {
			p.emit(relPath, rawModify)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !baseline {
		for relPath := range p.state {
			if _, ok := current[relPath]; !ok {
				p.emit(relPath, rawDelete)
			}
		}
	}

	p.state = current
	return nil
}

func (p *pollingSource) emit(path string, op rawOp) {
	select {
	case p.raw <- rawEvent{path: path, op: op}:
	default:
	}
}

func (p *pollingSource) events() <-chan rawEvent {
	return p.raw
}
