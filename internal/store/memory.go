package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ourchat/ourchat/internal/common"
)

// Memory is a tree-backed in-memory Store. It reproduces the backend's
// whole-subtree semantics: a write at a path replaces that subtree, a read
// assembles it, and observers receive a full snapshot after every change
// under their path. Safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	root *memNode
	rev  Version
	subs map[*memSub]struct{}
}

// memNode is either a branch (children != nil) or a leaf holding a value.
// ver is the global revision of the last change at or below the node.
type memNode struct {
	children map[string]*memNode
	value    any
	ver      Version
}

type memSub struct {
	path   string
	out    chan Snapshot
	kick   chan struct{}
	mu     sync.Mutex
	latest Snapshot
}

func NewMemory() *Memory {
	return &Memory{
		root: &memNode{children: map[string]*memNode{}},
		subs: map[*memSub]struct{}{},
	}
}

func (m *Memory) Read(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(path), nil
}

func (m *Memory) Write(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeLocked(path, value)
	return nil
}

func (m *Memory) CompareAndSwap(ctx context.Context, path string, expected Version, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.snapshotLocked(path).Version
	if current != expected {
		return fmt.Errorf("%w: path %q at version %d, expected %d",
			common.ErrVersionConflict, path, current, expected)
	}
	m.writeLocked(path, value)
	return nil
}

func (m *Memory) Observe(ctx context.Context, path string) (<-chan Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memSub{
		path: path,
		out:  make(chan Snapshot),
		kick: make(chan struct{}, 1),
	}

	m.mu.Lock()
	sub.latest = m.snapshotLocked(path)
	m.subs[sub] = struct{}{}
	m.mu.Unlock()
	select {
	case sub.kick <- struct{}{}:
	default:
	}

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.subs, sub)
			m.mu.Unlock()
			close(sub.out)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.kick:
				sub.mu.Lock()
				snap := sub.latest
				sub.mu.Unlock()
				select {
				case sub.out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return sub.out, nil
}

// writeLocked replaces the subtree at path and notifies overlapping
// observers. Caller holds m.mu.
func (m *Memory) writeLocked(path string, value any) {
	m.rev++
	rev := m.rev

	node := m.root
	node.ver = rev
	for _, seg := range splitPath(path) {
		if node.children == nil {
			// a leaf on the way down is replaced by a branch
			node.value = nil
			node.children = map[string]*memNode{}
		}
		child, ok := node.children[seg]
		if !ok {
			child = &memNode{}
			node.children[seg] = child
		}
		child.ver = rev
		node = child
	}
	setSubtree(node, value, rev)

	for sub := range m.subs {
		if !pathsOverlap(sub.path, path) {
			continue
		}
		snap := m.snapshotLocked(sub.path)
		sub.mu.Lock()
		sub.latest = snap
		sub.mu.Unlock()
		select {
		case sub.kick <- struct{}{}:
		default: // a refresh is already pending; it will pick up latest
		}
	}
}

func setSubtree(n *memNode, value any, rev Version) {
	n.ver = rev
	if dict, ok := value.(map[string]any); ok {
		n.value = nil
		n.children = make(map[string]*memNode, len(dict))
		for k, v := range dict {
			child := &memNode{}
			setSubtree(child, v, rev)
			n.children[k] = child
		}
		return
	}
	n.children = nil
	n.value = deepCopy(value)
}

func (m *Memory) snapshotLocked(path string) Snapshot {
	node := m.root
	for _, seg := range splitPath(path) {
		if node.children == nil {
			return Snapshot{}
		}
		child, ok := node.children[seg]
		if !ok {
			return Snapshot{}
		}
		node = child
	}
	value := assemble(node)
	if value == nil {
		return Snapshot{}
	}
	return Snapshot{Value: value, Version: node.ver}
}

func assemble(n *memNode) any {
	if n.children != nil {
		if len(n.children) == 0 {
			return nil
		}
		dict := make(map[string]any, len(n.children))
		for k, child := range n.children {
			if v := assemble(child); v != nil {
				dict[k] = v
			}
		}
		if len(dict) == 0 {
			return nil
		}
		return dict
	}
	return deepCopy(n.value)
}

// deepCopy guards the tree against aliasing with caller-held values.
func deepCopy(v any) any {
	switch value := v.(type) {
	case map[string]any:
		dict := make(map[string]any, len(value))
		for k, item := range value {
			dict[k] = deepCopy(item)
		}
		return dict
	case []any:
		list := make([]any, len(value))
		for i, item := range value {
			list[i] = deepCopy(item)
		}
		return list
	default:
		return value
	}
}
