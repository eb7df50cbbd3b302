package ruleset

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/sarifer/internal/rules"
	"github.com/scan-io-git/sarifer/internal/telemetry"
	"github.com/scan-io-git/sarifer/internal/watcher"
)

// RuleSet is the compiled rule collection of one project root.
// It is never modified after it is published; reloads replace it wholesale.
type RuleSet struct {
	Root        string
	Rules       []*rules.Rule
	Definitions []rules.Definition
	LoadedAt    time.Time
}

// Empty reports whether the set holds no rules.
func (rs *RuleSet) Empty() bool {
	return rs == nil || len(rs.Rules) == 0
}

func (rs *RuleSet) sameRoot(root string) bool {
	return rs != nil && strings.EqualFold(rs.Root, root)
}

// Cache holds the rule set of the most recently requested project root.
type Cache struct {
	loader Loader
	logger hclog.Logger

	mu      sync.Mutex
	current atomic.Pointer[RuleSet]
}

// NewCache returns an empty cache backed by loader.
func NewCache(loader Loader, logger hclog.Logger) *Cache {
	return &Cache{loader: loader, logger: logger}
}

// GetOrLoad returns the rule set for root, loading and compiling it when the cached
// set belongs to another root or is empty. It never returns nil.
func (c *Cache) GetOrLoad(root string) *RuleSet {
	if root == "" {
		return &RuleSet{}
	}
	root = filepath.Clean(root)

	if rs := c.current.Load(); rs.sameRoot(root) && !rs.Empty() {
		return rs
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// another caller may have finished the load while we waited
	if rs := c.current.Load(); rs.sameRoot(root) && !rs.Empty() {
		return rs
	}

	rs := c.load(root)
	c.current.Store(rs)
	return rs
}

// Current returns the cached rule set without loading, or nil.
func (c *Cache) Current() *RuleSet {
	return c.current.Load()
}

// Invalidate drops the cached rule set; the next GetOrLoad recompiles.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

func (c *Cache) load(root string) *RuleSet {
	started := time.Now()
	rs := &RuleSet{Root: root, LoadedAt: started}

	defs, err := c.loader.Load(root)
	if err == nil {
		rs.Rules, err = rules.Compile(defs)
	}
	elapsed := time.Since(started)
	telemetry.RecordRuleLoad(len(rs.Rules), elapsed, err)

	if err != nil {
		c.logger.Error("failed to load rule set", "root", root, "error", err)
		rs.Rules = nil
		return rs
	}

	rs.Definitions = defs
	c.logger.Debug("rule set loaded", "root", root, "rules", len(rs.Rules), "duration", elapsed)
	return rs
}

// Watch starts a background watcher that invalidates the cache whenever a file
// under dir changes. The watcher stops when ctx is done.
func (c *Cache) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	w, err := watcher.New(dir, func(changes []watcher.Change) {
		c.logger.Debug("rule definitions changed, invalidating rule set", "dir", dir, "changes", len(changes))
		c.Invalidate()
	}, watcher.Options{Debounce: debounce}, c.logger)
	if err != nil {
		return err
	}

	go func() {
		if err := w.Run(ctx); err != nil {
			c.logger.Warn("rule directory watcher stopped", "dir", dir, "error", err)
		}
	}()
	return nil
}
