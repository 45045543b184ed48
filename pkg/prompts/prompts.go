// Package prompts is a file-backed mcptypes.Prompt catalog: each prompt
// is one JSON file under a base directory (by default ~/.mcp/prompts),
// hot-reloaded via fsnotify so editing a file on disk updates the live
// registry without a server restart.
package prompts

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/mcptypes"
	"github.com/richard-senior/mcp/pkg/registry"
)

const debounceWindow = 200 * time.Millisecond

// filePrompt is the on-disk JSON shape of one prompt file.
type filePrompt struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Content     string             `json:"content"`
	Arguments   []filePromptArgument `json:"arguments"`
}

type filePromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Registry watches a directory of prompt files and keeps a
// registry.Registry's prompt catalog in sync with it.
type Registry struct {
	baseDir string
	reg     *registry.Registry

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// New creates the prompt directory if necessary and performs an initial
// load into reg. Call Watch to start live reload.
func New(baseDir string, reg *registry.Registry) (*Registry, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("prompts: creating %s: %w", baseDir, err)
	}
	pr := &Registry{baseDir: baseDir, reg: reg}
	if err := pr.reload(); err != nil {
		return nil, err
	}
	return pr, nil
}

// DefaultBaseDir returns ~/.mcp/prompts, falling back to "." if the home
// directory cannot be determined.
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		logger.Warn("prompts: failed to resolve home directory, using .", err)
		return filepath.Join(".", ".mcp", "prompts")
	}
	return filepath.Join(home, ".mcp", "prompts")
}

// load reads every *.json file in baseDir into an mcptypes.Prompt slice.
// Files that fail to parse are skipped and logged, not fatal.
func (pr *Registry) load() ([]mcptypes.Prompt, error) {
	var out []mcptypes.Prompt
	err := filepath.WalkDir(pr.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			logger.Warn("prompts: failed to read", path, readErr)
			return nil
		}
		var fp filePrompt
		if jsonErr := json.Unmarshal(data, &fp); jsonErr != nil {
			logger.Warn("prompts: failed to parse", path, jsonErr)
			return nil
		}
		out = append(out, toPrompt(fp))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("prompts: listing %s: %w", pr.baseDir, err)
	}
	return out, nil
}

func (pr *Registry) reload() error {
	loaded, err := pr.load()
	if err != nil {
		return err
	}
	pr.reg.SetPrompts(loaded)
	return nil
}

func toPrompt(fp filePrompt) mcptypes.Prompt {
	args := make([]mcptypes.ParamMeta, 0, len(fp.Arguments))
	for _, a := range fp.Arguments {
		args = append(args, mcptypes.ParamMeta{
			Name:       a.Name,
			IsOptional: !a.Required,
		})
	}
	content := fp.Content
	return mcptypes.Prompt{
		Name:        fp.Name,
		Description: fp.Description,
		Arguments:   args,
		Renderer: func(values map[string]string) (string, error) {
			rendered := content
			for k, v := range values {
				rendered = strings.ReplaceAll(rendered, "{{"+k+"}}", v)
			}
			return rendered, nil
		},
	}
}

// Watch starts an fsnotify watch on the prompt directory. Changes are
// debounced; each settled batch triggers a reload of the registry's
// prompt catalog followed by onChange, which the caller uses to emit
// notifications/prompts/list_changed to connected sessions. Watch
// returns once the watcher is established; it runs its event loop in a
// background goroutine until Close is called.
func (pr *Registry) Watch(onChange func()) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("prompts: creating watcher: %w", err)
	}
	if err := w.Add(pr.baseDir); err != nil {
		w.Close()
		return fmt.Errorf("prompts: watching %s: %w", pr.baseDir, err)
	}
	pr.watcher = w
	pr.stop = make(chan struct{})

	go pr.watchLoop(w, pr.stop, onChange)
	return nil
}

func (pr *Registry) watchLoop(w *fsnotify.Watcher, stop chan struct{}, onChange func()) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case _, ok := <-w.Events:
			if !ok {
				return
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			timerC = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("prompts: watcher error", err)
		case <-timerC:
			timerC = nil
			if err := pr.reload(); err != nil {
				logger.Error("prompts: reload failed", err)
				continue
			}
			if onChange != nil {
				onChange()
			}
		}
	}
}

// Close stops the watcher, if one was started.
func (pr *Registry) Close() error {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.watcher == nil {
		return nil
	}
	close(pr.stop)
	err := pr.watcher.Close()
	pr.watcher = nil
	return err
}
