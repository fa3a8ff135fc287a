// Package filex holds the filesystem primitives behind the file service:
// directory creation, atomic writes, and recursive copy/move.
package filex

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
)

const (
	DirPerm  fs.FileMode = 0o750
	FilePerm fs.FileMode = 0o640

	// random bytes in an upload temp name, hex encoded
	tempRandBytes = 8
	tempExt       = ".part"
)

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// Exists reports whether path exists without following a final symlink.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// WriteAtomic streams r into dir/name. Data goes to a hidden temp file in
// the same directory which is renamed over the target only after a
// complete write; any error or cancellation removes the temp file.
func WriteAtomic(ctx context.Context, dir, name string, r io.Reader) (n int64, err error) {
	suffix, err := common.MakeRandHexString(tempRandBytes)
	if err != nil {
		return 0, err
	}
	tmpPath := filepath.Join(dir, tempName(name, suffix))

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FilePerm)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	n, err = io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return n, err
	}
	if err = f.Sync(); err != nil {
		return n, err
	}
	if err = f.Close(); err != nil {
		return n, err
	}
	if err = os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		return n, err
	}
	return n, nil
}

func tempName(name, suffix string) string {
	return "." + name + "." + suffix + tempExt
}

// IsTempName reports whether name has the exact shape of a WriteAtomic temp
// file: ".<name>.<16 hex digits>.part".
func IsTempName(name string) bool {
	rest, ok := strings.CutPrefix(name, ".")
	if !ok {
		return false
	}
	rest, ok = strings.CutSuffix(rest, tempExt)
	if !ok {
		return false
	}
	i := strings.LastIndexByte(rest, '.')
	if i <= 0 {
		return false
	}
	suffix := rest[i+1:]
	if len(suffix) != 2*tempRandBytes {
		return false
	}
	_, err := hex.DecodeString(suffix)
	return err == nil && strings.ToLower(suffix) == suffix
}

// CopyFile copies a regular file to dst. dst must not exist.
func CopyFile(ctx context.Context, src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	_, err = io.Copy(out, &ctxReader{ctx: ctx, r: in})
	return err
}

// CopyDir recursively copies the tree at src to dst. dst must not exist.
// Only directories and regular files are copied; symlinks and special files
// are skipped.
func CopyDir(ctx context.Context, src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.Mkdir(dst, info.Mode().Perm()); err != nil {
		return err
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			di, err := d.Info()
			if err != nil {
				return err
			}
			return os.Mkdir(target, di.Mode().Perm())
		case d.Type().IsRegular():
			return CopyFile(ctx, path, target)
		default:
			return nil
		}
	})
}

// Copy copies a file or a directory tree from src to dst.
func Copy(ctx context.Context, src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return CopyDir(ctx, src, dst)
	}
	return CopyFile(ctx, src, dst)
}

// Move renames src to dst, falling back to copy-then-delete when they live
// on different devices.
func Move(ctx context.Context, src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := Copy(ctx, src, dst); err != nil {
		_ = os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
