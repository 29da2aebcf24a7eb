package digital

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Vault stores uploaded files under generated names in a single directory.
// The original file name is only kept in the database.
type Vault struct {
	dir string
}

func NewVault(dir string) *Vault {
	return &Vault{dir: dir}
}

// Save copies r into a new file named <uuid>.<format> and returns that name
// with the number of bytes written.
func (v *Vault) Save(r io.Reader, format string) (string, int64, error) {
	if err := os.MkdirAll(v.dir, 0o755); err != nil {
		return "", 0, errors.WithStack(err)
	}

	name := uuid.NewString() + "." + format
	f, err := os.OpenFile(v.Path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, errors.WithStack(err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(v.Path(name))
		return "", 0, errors.WithStack(err)
	}
	return name, n, nil
}

// Path resolves a stored name inside the vault. Only the base name is used,
// so a stored name can never point outside the directory.
func (v *Vault) Path(name string) string {
	return filepath.Join(v.dir, filepath.Base(name))
}

// Exists reports whether a stored file is present.
func (v *Vault) Exists(name string) bool {
	info, err := os.Stat(v.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (v *Vault) Remove(name string) error {
	err := os.Remove(v.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.WithStack(err)
	}
	return nil
}
