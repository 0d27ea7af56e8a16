// Package store owns the two files behind every table: the index file
// holding the tree pages and the data file holding slotted row pages.
// Every page mutation is written through to the OS before the call
// returns; SyncMode decides when the OS buffers are forced to disk.
package store

import "github.com/pkg/errors"

type SyncMode int

const (
	// SyncOnFlush fsync只在Flush/Close时发生
	SyncOnFlush SyncMode = iota
	// SyncEveryWrite 每次页面写入后立刻fsync
	SyncEveryWrite
)

func (m SyncMode) String() string {
	switch m {
	case SyncOnFlush:
		return "flush"
	case SyncEveryWrite:
		return "write"
	default:
		return "unknown"
	}
}

func ParseSyncMode(s string) (SyncMode, error) {
	switch s {
	case "flush":
		return SyncOnFlush, nil
	case "write":
		return SyncEveryWrite, nil
	default:
		return SyncOnFlush, errors.Errorf("unknown sync mode %q, want \"flush\" or \"write\"", s)
	}
}
