// Package memory is the in-process Table implementation, used by tests and
// by the dev server backend. Items are deep-copied on the way in and out
// so callers cannot alias the stored state.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ssh-box/sshbox/internal/common"
	"github.com/ssh-box/sshbox/internal/kvstore"
)

type Table struct {
	mu    sync.RWMutex
	items map[kvstore.Key]kvstore.Item
}

func NewTable() *Table {
	return &Table{items: make(map[kvstore.Key]kvstore.Item)}
}

func copyItem(in kvstore.Item) kvstore.Item {
	out := make(kvstore.Item, len(in))
	for k, v := range in {
		switch vv := v.(type) {
		case []byte:
			b := make([]byte, len(vv))
			copy(b, vv)
			out[k] = b
		case []int64:
			s := make([]int64, len(vv))
			copy(s, vv)
			out[k] = s
		default:
			out[k] = v
		}
	}
	return out
}

func withKey(item kvstore.Item, key kvstore.Key) kvstore.Item {
	out := copyItem(item)
	out["pk"] = key.PK
	out["sk"] = key.SK
	return out
}

func (t *Table) Get(ctx context.Context, key kvstore.Key) (kvstore.Item, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	item, ok := t.items[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return withKey(item, key), nil
}

func (t *Table) Put(ctx context.Context, key kvstore.Key, item kvstore.Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items[key] = copyItem(item)
	return nil
}

func (t *Table) Update(ctx context.Context, key kvstore.Key, assign kvstore.Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.items[key]
	if !ok {
		return common.ErrNotFound
	}
	for k, v := range copyItem(assign) {
		item[k] = v
	}
	return nil
}

func (t *Table) BatchGet(ctx context.Context, keys []kvstore.Key) ([]kvstore.Item, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]kvstore.Item, 0, len(keys))
	for _, key := range keys {
		if item, ok := t.items[key]; ok {
			out = append(out, withKey(item, key))
		}
	}
	return out, nil
}

func (t *Table) QueryByPrefix(ctx context.Context, pk, skPrefix string, limit int) ([]kvstore.Item, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var keys []kvstore.Key
	for key := range t.items {
		if key.PK == pk && strings.HasPrefix(key.SK, skPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].SK < keys[j].SK })

	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]kvstore.Item, 0, len(keys))
	for _, key := range keys {
		out = append(out, withKey(t.items[key], key))
	}
	return out, nil
}

func (t *Table) Delete(ctx context.Context, key kvstore.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.items, key)
	return nil
}
