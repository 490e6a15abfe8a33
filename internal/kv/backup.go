package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"pharmacore/internal/blob"
)

const (
	// BackupPrefix is the blob key prefix for snapshots.
	BackupPrefix  = "backups/pharmacore-"
	backupLayout  = "20060102T150405.000000000Z"
	backupVersion = 1
)

// ErrNoBackup is returned by Restore and LatestBackup when no snapshot exists.
var ErrNoBackup = errors.New("no backup found")

// Snapshot is the serialized form of every key in the store.
type Snapshot struct {
	Version   int                        `json:"version"`
	CreatedAt time.Time                  `json:"createdAt"`
	Entries   map[string]json.RawMessage `json:"entries"`
}

// BackupKey returns the blob key for a snapshot taken at t.
func BackupKey(t time.Time) string {
	return BackupPrefix + t.UTC().Format(backupLayout) + ".json"
}

// Backup writes the named keys of src, or every key when none are named, as
// one JSON snapshot blob. Named keys that are absent are skipped.
func Backup(ctx context.Context, src Store, dst blob.Store, at time.Time, keys ...string) (blob.Info, error) {
	if len(keys) == 0 {
		all, err := src.Keys(ctx)
		if err != nil {
			return blob.Info{}, fmt.Errorf("list keys: %w", err)
		}
		keys = all
	}
	snap := Snapshot{Version: backupVersion, CreatedAt: at.UTC(), Entries: make(map[string]json.RawMessage, len(keys))}
	for _, key := range keys {
		value, ok, err := src.Get(ctx, key)
		if err != nil {
			return blob.Info{}, fmt.Errorf("read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		if !json.Valid(value) {
			return blob.Info{}, fmt.Errorf("key %s does not hold JSON", key)
		}
		snap.Entries[key] = json.RawMessage(value)
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	info, err := dst.Put(ctx, BackupKey(at), bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"keys": strconv.Itoa(len(snap.Entries))},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store snapshot: %w", err)
	}
	return info, nil
}

// ListBackups returns snapshot blobs oldest first.
func ListBackups(ctx context.Context, src blob.Store) ([]blob.Info, error) {
	infos, err := src.List(ctx, BackupPrefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// LatestBackup returns the newest snapshot blob.
func LatestBackup(ctx context.Context, src blob.Store) (blob.Info, error) {
	infos, err := ListBackups(ctx, src)
	if err != nil {
		return blob.Info{}, err
	}
	if len(infos) == 0 {
		return blob.Info{}, ErrNoBackup
	}
	return infos[len(infos)-1], nil
}

// Restore replaces the contents of dst with the snapshot at key, or the
// latest snapshot when key is empty. It returns the number of keys written.
func Restore(ctx context.Context, dst Store, src blob.Store, key string) (int, error) {
	if key == "" {
		latest, err := LatestBackup(ctx, src)
		if err != nil {
			return 0, err
		}
		key = latest.Key
	}
	_, rc, err := src.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("open snapshot %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return 0, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	if snap.Version != backupVersion {
		return 0, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if err := dst.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear store: %w", err)
	}
	keys := make([]string, 0, len(snap.Entries))
	for k := range snap.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := dst.Set(ctx, k, snap.Entries[k]); err != nil {
			return 0, fmt.Errorf("write %s: %w", k, err)
		}
	}
	return len(keys), nil
}

// PruneBackups deletes all but the newest retain snapshots and returns the deleted keys.
func PruneBackups(ctx context.Context, src blob.Store, retain int) ([]string, error) {
	if retain < 1 {
		return nil, fmt.Errorf("retain must be at least 1")
	}
	infos, err := ListBackups(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(infos) <= retain {
		return nil, nil
	}
	var deleted []string
	for _, info := range infos[:len(infos)-retain] {
		if _, err := src.Delete(ctx, info.Key); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", info.Key, err)
		}
		deleted = append(deleted, info.Key)
	}
	return deleted, nil
}
