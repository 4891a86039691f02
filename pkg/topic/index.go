// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package topic

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Target is one resolved subscriber: the node and method that receive an event.
type Target struct {
	Node    string
	Method  string
	Pattern string

	// seq is the global registration sequence used to order deliveries
	seq int
}

// Config configures an Index.
type Config struct {
	// Wildcards enables single-level "*" subscription patterns
	Wildcards bool

	// Logger for subscription events (defaults to no-op)
	Logger *zap.Logger
}

// Index maps topic patterns to ordered subscriber lists.
//
// The index is built during startup with Subscribe and then frozen. After
// Freeze it is immutable, and Resolve may be called from any number of
// goroutines without synchronization.
type Index struct {
	mu     sync.Mutex
	frozen atomic.Bool

	wildcards bool
	logger    *zap.Logger

	// exact pattern → subscribers in registration order
	exact map[string][]Target
	// wildcard parent ("/Hello" for "/Hello/*") → subscribers in registration order
	children map[string][]Target
	// distinct patterns in first-registration order
	patterns []string
	seq      int
}

// NewIndex creates an empty, unfrozen index.
func NewIndex(cfg Config) *Index {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Index{
		wildcards: cfg.Wildcards,
		logger:    cfg.Logger,
		exact:     make(map[string][]Target),
		children:  make(map[string][]Target),
	}
}

// Subscribe registers node.method as a subscriber of pattern. Subscribers of
// the same topic are delivered in the order they were registered.
func (ix *Index) Subscribe(pattern, node, method string) error {
	if ix.frozen.Load() {
		return ErrFrozen
	}
	if node == "" || method == "" {
		return fmt.Errorf("subscriber node and method cannot be empty (pattern %q)", pattern)
	}
	if err := ValidatePattern(pattern); err != nil {
		return err
	}
	wildcard := IsWildcard(pattern)
	if wildcard && !ix.wildcards {
		return fmt.Errorf("%w: %q", ErrWildcardDisabled, pattern)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.frozen.Load() {
		return ErrFrozen
	}

	target := Target{Node: node, Method: method, Pattern: pattern, seq: ix.seq}
	ix.seq++

	if _, seen := ix.exact[pattern]; !seen && !ix.hasChildPattern(pattern) {
		ix.patterns = append(ix.patterns, pattern)
	}
	if wildcard {
		parent := Parent(pattern)
		ix.children[parent] = append(ix.children[parent], target)
	} else {
		ix.exact[pattern] = append(ix.exact[pattern], target)
	}

	ix.logger.Debug("topic subscribe",
		zap.String("pattern", pattern),
		zap.String("node", node),
		zap.String("method", method),
		zap.Int("sequence", target.seq))
	return nil
}

func (ix *Index) hasChildPattern(pattern string) bool {
	if !IsWildcard(pattern) {
		return false
	}
	_, ok := ix.children[Parent(pattern)]
	return ok
}

// Freeze makes the index immutable. Freezing twice is a no-op.
func (ix *Index) Freeze() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (ix *Index) Frozen() bool {
	return ix.frozen.Load()
}

// WildcardsEnabled reports whether wildcard patterns are accepted.
func (ix *Index) WildcardsEnabled() bool {
	return ix.wildcards
}

// Resolve returns the subscribers of topic in registration order. It has no
// side effects; the returned slice is owned by the caller.
func (ix *Index) Resolve(topic string) []Target {
	if !ix.frozen.Load() {
		ix.mu.Lock()
		defer ix.mu.Unlock()
	}

	exact := ix.exact[topic]
	var wild []Target
	if ix.wildcards {
		for _, t := range ix.children[Parent(topic)] {
			if matchesTopicPattern(t.Pattern, topic) {
				wild = append(wild, t)
			}
		}
	}

	out := make([]Target, 0, len(exact)+len(wild))
	out = append(out, exact...)
	if len(wild) == 0 {
		return out
	}
	out = append(out, wild...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Patterns returns every registered pattern in first-registration order.
func (ix *Index) Patterns() []string {
	if !ix.frozen.Load() {
		ix.mu.Lock()
		defer ix.mu.Unlock()
	}
	out := make([]string, len(ix.patterns))
	copy(out, ix.patterns)
	return out
}

// Subscribers returns the subscribers registered on exactly pattern.
func (ix *Index) Subscribers(pattern string) ([]Target, error) {
	if !ix.frozen.Load() {
		ix.mu.Lock()
		defer ix.mu.Unlock()
	}

	var list []Target
	if IsWildcard(pattern) {
		for _, t := range ix.children[Parent(pattern)] {
			if t.Pattern == pattern {
				list = append(list, t)
			}
		}
	} else {
		list = ix.exact[pattern]
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, pattern)
	}
	out := make([]Target, len(list))
	copy(out, list)
	return out, nil
}

// Len returns the total number of subscriptions.
func (ix *Index) Len() int {
	if !ix.frozen.Load() {
		ix.mu.Lock()
		defer ix.mu.Unlock()
	}
	return ix.seq
}
