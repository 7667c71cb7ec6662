package txlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mnohosten/transferd/pkg/compression"
)

// Archive writes a zstd-compressed snapshot of every terminal transaction
// (committed or aborted) to path, for cold storage off the live log. It
// does not touch the live log file; Archive is safe to run concurrently
// with normal operation and may be invoked repeatedly (e.g. from a cron-
// style operator job) to roll a fresh snapshot.
func (s *Store) Archive(path string) (written int, err error) {
	s.mu.RLock()
	terminal := make([]*Transaction, 0, len(s.byID))
	for _, txn := range s.byID {
		if txn.Status != StatusPending {
			cp := *txn
			terminal = append(terminal, &cp)
		}
	}
	s.mu.RUnlock()

	payload, err := json.Marshal(terminal)
	if err != nil {
		return 0, fmt.Errorf("txlog: marshal archive snapshot: %w", err)
	}

	compressor, err := compression.NewCompressor(compression.ZstdConfig(9))
	if err != nil {
		return 0, fmt.Errorf("txlog: new compressor: %w", err)
	}
	defer compressor.Close()

	compressed, err := compressor.Compress(payload)
	if err != nil {
		return 0, fmt.Errorf("txlog: compress archive snapshot: %w", err)
	}

	if err := os.WriteFile(path, compressed, 0644); err != nil {
		return 0, fmt.Errorf("txlog: write archive %s: %w", path, err)
	}

	return len(terminal), nil
}

// LoadArchive decompresses and decodes a snapshot written by Archive,
// without merging it into a live Store, for inspecting cold storage. The
// reconcile tool only writes snapshots (ArchiveSnapshot) and does not call
// it.
func LoadArchive(path string) ([]*Transaction, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("txlog: read archive %s: %w", path, err)
	}

	compressor, err := compression.NewCompressor(compression.ZstdConfig(9))
	if err != nil {
		return nil, fmt.Errorf("txlog: new compressor: %w", err)
	}
	defer compressor.Close()

	payload, err := compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("txlog: decompress archive %s: %w", path, err)
	}

	var txns []*Transaction
	if err := json.Unmarshal(payload, &txns); err != nil {
		return nil, fmt.Errorf("txlog: unmarshal archive %s: %w", path, err)
	}
	return txns, nil
}

// archiveFilename builds a timestamped archive filename, e.g.
// "txlog-20260731-153000.zst".
func archiveFilename(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%s.zst", prefix, at.UTC().Format("20060102-150405"))
}

// ArchiveSnapshot writes a snapshot to dir under Archive's default naming
// convention (archiveFilename) and returns the path written, for operator
// tooling that wants a fresh timestamped snapshot without picking a
// filename itself.
func (s *Store) ArchiveSnapshot(dir, prefix string) (path string, written int, err error) {
	path = filepath.Join(dir, archiveFilename(prefix, time.Now()))
	written, err = s.Archive(path)
	return path, written, err
}
