package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend persists snapshots to a single file through a pluggable
// codec. Writes go to a temporary file in the same directory, are synced,
// then renamed into place, so readers never observe a partial snapshot.
type FileBackend struct {
	path  string
	codec SnapshotCodec
	mode  os.FileMode
}

// FileOption configures a FileBackend.
type FileOption func(*FileBackend)

// WithCodec selects the snapshot encoding. The default is the textual
// format from NewTextCodec.
func WithCodec(codec SnapshotCodec) FileOption {
	return func(b *FileBackend) {
		if codec != nil {
			b.codec = codec
		}
	}
}

// WithFileMode sets the permission bits for created snapshot files. The
// default is 0600.
func WithFileMode(mode os.FileMode) FileOption {
	return func(b *FileBackend) {
		b.mode = mode
	}
}

// NewFileBackend builds a file-backed persistence adapter rooted at path.
// The file does not need to exist yet; parent directories are created on
// first write.
func NewFileBackend(path string, opts ...FileOption) (*FileBackend, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %q: %v", ErrIO, path, err)
	}
	b := &FileBackend{
		path:  abs,
		codec: NewTextCodec(),
		mode:  0o600,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// Path returns the absolute file location.
func (b *FileBackend) Path() string {
	return b.path
}

// Codec returns the snapshot encoding in use.
func (b *FileBackend) Codec() SnapshotCodec {
	return b.codec
}

// Load reads and decodes the whole snapshot. A missing file is an empty
// snapshot, not an error; undecodable content wraps ErrCorruptStore.
func (b *FileBackend) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("%w: reading %s: %v", ErrIO, b.path, err)
	}
	return b.codec.Decode(data)
}

// Write encodes the snapshot and atomically replaces the file. On any
// failure the temporary file is removed and the previous snapshot stays
// intact.
func (b *FileBackend) Write(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := b.codec.Encode(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrIO, dir, err)
	}

	tmp := b.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, b.mode)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrIO, tmp, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: writing %s: %v", ErrIO, tmp, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: syncing %s: %v", ErrIO, tmp, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: closing %s: %v", ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replacing %s: %v", ErrIO, b.path, err)
	}

	// Sync the directory so the rename survives power loss.
	if parent, err := os.Open(dir); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}
