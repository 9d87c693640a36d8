// Package storeio holds the low-level filesystem helpers shared by the
// readstore and ovstore packages: fixed-size record I/O, path layout, and
// the process-wide open-for-writing registry. It plays the role
// AS_UTL_fileIO.H/AS_UTL_safeRead/AS_UTL_safeWrite play in the original
// implementation, rebuilt on top of github.com/grailbio/base/file so a
// store's paths can resolve to any scheme file.Open/file.Create supports.
package storeio

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// ReadRecordAt reads exactly len(dst) bytes at offset off from path into
// dst, failing with errors.Integrity (spec.md's ShortRead) on a short read
// rather than silently returning a partial record.
func ReadRecordAt(ctx context.Context, path string, off int64, dst []byte) error {
	f, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, fmt.Sprintf("storeio: open %s", path))
	}
	defer file.CloseAndReport(ctx, f, &err)
	r := f.Reader(ctx)
	if _, err := r.(io.Seeker).Seek(off, io.SeekStart); err != nil {
		return errors.E(err, fmt.Sprintf("storeio: seek %s@%d", path, off))
	}
	n, err := io.ReadFull(r, dst)
	if err != nil {
		return errors.E(errors.Integrity, fmt.Sprintf("storeio: short read %s@%d: got %d of %d bytes: %v", path, off, n, len(dst), err))
	}
	return nil
}

// ReadAll loads the entire contents of path, failing with errors.NotExist
// when the file is absent so callers can distinguish "empty table" from
// "missing table" per spec.md's open-mode validation.
func ReadAll(ctx context.Context, path string) ([]byte, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, f, &err)
	data, err := io.ReadAll(f.Reader(ctx))
	if err != nil {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("storeio: read %s: %v", path, err))
	}
	return data, nil
}

// WriteAll writes data to path, clobbering any existing contents, and
// fails with errors.Integrity (spec.md's ShortWrite) if the underlying
// writer accepts fewer bytes than offered.
func WriteAll(ctx context.Context, path string, data []byte) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, fmt.Sprintf("storeio: create %s", path))
	}
	defer file.CloseAndReport(ctx, f, &err)
	w := f.Writer(ctx)
	n, werr := w.Write(data)
	if werr != nil {
		return errors.E(errors.Integrity, fmt.Sprintf("storeio: short write %s: wrote %d of %d bytes: %v", path, n, len(data), werr))
	}
	if n != len(data) {
		return errors.E(errors.Integrity, fmt.Sprintf("storeio: short write %s: wrote %d of %d bytes", path, n, len(data)))
	}
	return nil
}

// Exists reports whether path names an existing object, treating any
// non-NotExist error as "exists" so callers fail loudly on permission or
// transient errors instead of silently proceeding as if the path were
// free.
func Exists(ctx context.Context, path string) bool {
	f, err := file.Open(ctx, path)
	if err == nil {
		file.CloseAndReport(ctx, f, &err)
		return true
	}
	if e, ok := err.(*errors.Error); ok && e.Kind == errors.NotExist {
		return false
	}
	return true
}

// RemoveAll removes path and everything beneath it (used when discarding a
// failed create, or when Cleanup prunes intermediate bucket-shuffle
// output), logging but not failing on a missing path.
func RemoveAll(ctx context.Context, path string) error {
	if err := file.RemoveAll(ctx, path); err != nil {
		log.Debug.Printf("storeio: RemoveAll %s: %v", path, err)
		if e, ok := err.(*errors.Error); ok && e.Kind == errors.NotExist {
			return nil
		}
		return err
	}
	return nil
}

// List returns every path directly contained in dir (non-recursive),
// matching the "{store}/partitions/reads.PPPP" and bucket-shuffle
// directory layouts, which are flat by construction.
func List(ctx context.Context, dir string) ([]string, error) {
	var paths []string
	lister := file.List(ctx, dir)
	for lister.Scan() {
		paths = append(paths, lister.Path())
	}
	if err := lister.Err(); err != nil {
		return nil, errors.E(err, fmt.Sprintf("storeio: list %s", dir))
	}
	return paths, nil
}
