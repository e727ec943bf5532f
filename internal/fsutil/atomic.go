// Package fsutil holds small filesystem helpers shared by the writers.
package fsutil

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// DefaultFileMode is the permission of files WriteAtomic creates.
const DefaultFileMode os.FileMode = 0o644

// WriteAtomic streams the output of write into a temp file next to path and
// renames it into place once write and the final sync succeed. Readers of
// path see either the previous content or the new one, never a partial file.
// A replaced file keeps its permissions; a new one gets DefaultFileMode.
func WriteAtomic(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "fsutil: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "fsutil: create temp for %s", path)
	}
	defer func() {
		if err != nil {
			tmp.Close()           //nolint:errcheck
			os.Remove(tmp.Name()) //nolint:errcheck
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return eris.Wrapf(err, "fsutil: flush %s", path)
	}
	mode := DefaultFileMode
	if fi, statErr := os.Stat(path); statErr == nil {
		mode = fi.Mode().Perm()
	}
	if err = tmp.Chmod(mode); err != nil {
		return eris.Wrapf(err, "fsutil: chmod %s", path)
	}
	if err = tmp.Sync(); err != nil {
		return eris.Wrapf(err, "fsutil: sync %s", path)
	}
	if err = tmp.Close(); err != nil {
		return eris.Wrapf(err, "fsutil: close %s", path)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "fsutil: rename into %s", path)
	}
	return nil
}
