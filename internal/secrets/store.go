// Package secrets implements the versioned secret-storage protocol: one
// metadata record per secret name pointing into a bounded, newest-first
// chain of immutable version records. Envelopes pass through opaquely; the
// store never holds a key that could open them.
package secrets

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ssh-box/sshbox/internal/common"
	"github.com/ssh-box/sshbox/internal/kvstore"
	"github.com/ssh-box/sshbox/internal/logging"
	"github.com/ssh-box/sshbox/internal/vault/crypt"
)

// MaxVersions is the retention bound: how many version records are kept
// per secret name. The version counter keeps growing past it.
const MaxVersions = 5

// Metadata is one secret name's pointer record.
type Metadata struct {
	Name             string
	CurrentVersionID int64
	VersionIDs       []int64 // newest first, len <= MaxVersions
	VersionCount     int64   // versions ever created, never truncated
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Version is one immutable encrypted value.
type Version struct {
	Name      string
	VersionID int64
	Envelope  crypt.Envelope
	CreatedAt time.Time
}

// ListEntry is the metadata view returned to callers listing an account's
// secrets. DisplayVersion is a human-facing ordinal that keeps increasing
// even as old versions are pruned.
type ListEntry struct {
	Name             string
	DisplayVersion   int64
	TotalVersions    int64 // retained versions, len(VersionIDs)
	CurrentVersionID int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Store persists the version chains on a kvstore.Table. Version ids are
// millisecond timestamps made strictly monotonic per Store instance, so
// two writes in the same millisecond cannot collide.
type Store struct {
	table  kvstore.Table
	logger logging.Logger

	idMu   sync.Mutex
	lastID int64

	cleanup sync.WaitGroup
}

func NewStore(table kvstore.Table, logger logging.Logger) *Store {
	return &Store{
		table:  table,
		logger: logger.With("module", "secrets"),
	}
}

// Close waits for in-flight background cleanups to finish.
func (s *Store) Close() {
	s.cleanup.Wait()
}

func (s *Store) nextVersionID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	id := time.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *Store) getMetadata(ctx context.Context, accountID, name string) (*Metadata, error) {
	item, err := s.table.Get(ctx, kvstore.Key{PK: partitionKey(accountID), SK: metadataSK(name)})
	if err != nil {
		return nil, err
	}
	return metadataFromItem(name, item), nil
}

func metadataFromItem(name string, item kvstore.Item) *Metadata {
	return &Metadata{
		Name:             name,
		CurrentVersionID: kvstore.AsInt64(item["cv"]),
		VersionIDs:       kvstore.AsInt64Slice(item["v"]),
		VersionCount:     kvstore.AsInt64(item["vc"]),
		CreatedAt:        kvstore.AsTime(item["cAt"]),
		UpdatedAt:        kvstore.AsTime(item["uAt"]),
	}
}

func versionFromItem(item kvstore.Item) *Version {
	return &Version{
		Name:      kvstore.AsString(item["name"]),
		VersionID: kvstore.AsInt64(item["v"]),
		Envelope: crypt.Envelope{
			IV: kvstore.AsBytes(item["iv"]),
			CT: kvstore.AsBytes(item["ct"]),
		},
		CreatedAt: kvstore.AsTime(item["cAt"]),
	}
}

// Create appends a new version of name. The version record is fully
// persisted before the metadata is updated to point at it, so a crash in
// between leaves an orphaned-but-harmless version rather than a dangling
// pointer. When the chain exceeds MaxVersions the oldest id is dropped and
// its record deleted in the background; that cleanup never fails the
// create.
func (s *Store) Create(ctx context.Context, accountID, name string, env *crypt.Envelope) (*Version, error) {
	meta, err := s.getMetadata(ctx, accountID, name)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	id := s.nextVersionID()
	now := time.Now()
	pk := partitionKey(accountID)

	version := &Version{Name: name, VersionID: id, Envelope: *env, CreatedAt: now}
	err = s.table.Put(ctx, kvstore.Key{PK: pk, SK: versionSK(name, id)}, kvstore.Item{
		"name": name,
		"v":    id,
		"iv":   env.IV,
		"ct":   env.CT,
		"cAt":  kvstore.FormatTime(now),
	})
	if err != nil {
		return nil, err
	}

	if meta == nil {
		err = s.table.Put(ctx, kvstore.Key{PK: pk, SK: metadataSK(name)}, kvstore.Item{
			"name": name,
			"cv":   id,
			"v":    []int64{id},
			"vc":   int64(1),
			"cAt":  kvstore.FormatTime(now),
		})
		if err != nil {
			return nil, err
		}
		return version, nil
	}

	ids := append([]int64{id}, meta.VersionIDs...)
	var pruned []int64
	if len(ids) > MaxVersions {
		pruned = ids[MaxVersions:]
		ids = ids[:MaxVersions]
	}

	err = s.table.Update(ctx, kvstore.Key{PK: pk, SK: metadataSK(name)}, kvstore.Item{
		"cv":  id,
		"v":   ids,
		"vc":  meta.VersionCount + 1,
		"uAt": kvstore.FormatTime(now),
	})
	if err != nil {
		return nil, err
	}

	for _, old := range pruned {
		s.pruneVersion(accountID, name, old)
	}

	return version, nil
}

// pruneVersion deletes one orphaned version record in the background.
// Best effort: a failure leaves an unreferenced record behind, which is
// harmless and noted in the log.
func (s *Store) pruneVersion(accountID, name string, versionID int64) {
	s.cleanup.Add(1)
	go func() {
		defer s.cleanup.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		key := kvstore.Key{PK: partitionKey(accountID), SK: versionSK(name, versionID)}
		if err := s.table.Delete(ctx, key); err != nil {
			s.logger.Warn(ctx, "pruning old version failed",
				"name", name, "version", versionID, "error", err)
		}
	}()
}

// GetLatest returns the current version of name and its display ordinal.
func (s *Store) GetLatest(ctx context.Context, accountID, name string) (*Version, int64, error) {
	return s.GetByIndex(ctx, accountID, name, 0)
}

// GetByIndex resolves a version by offset into the retained chain: 0 is
// current, larger values walk back in time. An out-of-range index is
// common.ErrNotFound, not an error. The second return value is the display
// ordinal of the resolved version.
func (s *Store) GetByIndex(ctx context.Context, accountID, name string, index int) (*Version, int64, error) {
	meta, err := s.getMetadata(ctx, accountID, name)
	if err != nil {
		return nil, 0, err
	}

	if index < 0 || index >= len(meta.VersionIDs) {
		return nil, 0, common.ErrNotFound
	}

	id := meta.VersionIDs[index]
	item, err := s.table.Get(ctx, kvstore.Key{PK: partitionKey(accountID), SK: versionSK(name, id)})
	if err != nil {
		return nil, 0, err
	}

	return versionFromItem(item), meta.VersionCount - int64(index), nil
}

// ListMetadata lists every secret name of an account with its display
// version. A single prefix scan over the SM# range.
func (s *Store) ListMetadata(ctx context.Context, accountID string) ([]ListEntry, error) {
	items, err := s.table.QueryByPrefix(ctx, partitionKey(accountID), metadataSK(""), 0)
	if err != nil {
		return nil, err
	}

	entries := make([]ListEntry, 0, len(items))
	for _, item := range items {
		meta := metadataFromItem(kvstore.AsString(item["name"]), item)

		pos := int64(0)
		for i, id := range meta.VersionIDs {
			if id == meta.CurrentVersionID {
				pos = int64(i)
				break
			}
		}

		entries = append(entries, ListEntry{
			Name:             meta.Name,
			DisplayVersion:   meta.VersionCount - pos,
			TotalVersions:    int64(len(meta.VersionIDs)),
			CurrentVersionID: meta.CurrentVersionID,
			CreatedAt:        meta.CreatedAt,
			UpdatedAt:        meta.UpdatedAt,
		})
	}

	return entries, nil
}

// LatestEnvelopes fetches the current version record for each listed
// entry in one batch. Used by the list endpoint, which returns envelopes
// alongside the metadata so a client can decrypt without extra round
// trips.
func (s *Store) LatestEnvelopes(ctx context.Context, accountID string, entries []ListEntry) (map[string]*Version, error) {
	if len(entries) == 0 {
		return map[string]*Version{}, nil
	}

	pk := partitionKey(accountID)
	keys := make([]kvstore.Key, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, kvstore.Key{PK: pk, SK: versionSK(e.Name, e.CurrentVersionID)})
	}

	items, err := s.table.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*Version, len(items))
	for _, item := range items {
		v := versionFromItem(item)
		out[v.Name] = v
	}
	return out, nil
}

// DeleteAll removes every retained version of name and then the metadata
// record. Safe to retry: the version deletes are idempotent and a repeat
// call after partial failure finishes the job.
func (s *Store) DeleteAll(ctx context.Context, accountID, name string) error {
	meta, err := s.getMetadata(ctx, accountID, name)
	if err != nil {
		return err
	}

	pk := partitionKey(accountID)
	for _, id := range meta.VersionIDs {
		if err := s.table.Delete(ctx, kvstore.Key{PK: pk, SK: versionSK(name, id)}); err != nil {
			return err
		}
	}

	return s.table.Delete(ctx, kvstore.Key{PK: pk, SK: metadataSK(name)})
}
