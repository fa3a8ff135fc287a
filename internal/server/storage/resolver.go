// Package storage maps users and their relative paths onto the local
// filesystem and guarantees that no resolved path leaves the user's tree.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
	"github.com/dmitrijs2005/cloudkeeper/internal/filex"
)

const filesDir = "files"

// Resolver owns the layout <root>/<user id>/files/<relative path>.
type Resolver struct {
	root string
}

// NewResolver makes root absolute and creates it if needed.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage root: %w", err)
	}
	if err := filex.EnsureDir(abs); err != nil {
		return nil, fmt.Errorf("storage root: %w", err)
	}
	return &Resolver{root: abs}, nil
}

// Root returns the absolute storage root.
func (r *Resolver) Root() string { return r.root }

// UserRoot returns <root>/<userID>/files.
func (r *Resolver) UserRoot(userID string) (string, error) {
	if err := checkUserID(userID); err != nil {
		return "", err
	}
	return filepath.Join(r.root, userID, filesDir), nil
}

// CreateUserRoot creates the user's files directory.
func (r *Resolver) CreateUserRoot(userID string) error {
	dir, err := r.UserRoot(userID)
	if err != nil {
		return err
	}
	return filex.EnsureDir(dir)
}

// RemoveUserRoot deletes everything stored for userID.
func (r *Resolver) RemoveUserRoot(userID string) error {
	if err := checkUserID(userID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(r.root, userID)); err != nil {
		return fmt.Errorf("purge user storage: %w", err)
	}
	return nil
}

// Resolve maps rel onto the user's tree. Any rel containing ".." is
// rejected outright, even where it would be harmless (a..b.txt). The
// cleaned result, and the real location of its deepest existing ancestor
// after following symlinks, must stay inside the user root.
func (r *Resolver) Resolve(userID, rel string) (string, error) {
	base, err := r.UserRoot(userID)
	if err != nil {
		return "", err
	}
	if strings.Contains(rel, "..") || strings.ContainsRune(rel, 0) {
		return "", common.ErrPathTraversal
	}

	candidate := filepath.Join(base, filepath.FromSlash(strings.TrimLeft(rel, `/\`)))
	if !within(base, candidate) {
		return "", common.ErrPathTraversal
	}

	if err := checkSymlinks(base, candidate); err != nil {
		return "", err
	}
	return candidate, nil
}

// IsUserRoot reports whether path is the user's root directory itself.
func (r *Resolver) IsUserRoot(userID, path string) bool {
	base, err := r.UserRoot(userID)
	if err != nil {
		return false
	}
	return filepath.Clean(path) == base
}

func checkUserID(userID string) error {
	if userID == "" || userID == "." || strings.Contains(userID, "..") ||
		strings.ContainsAny(userID, `/\`) || strings.ContainsRune(userID, 0) {
		return common.ErrPathTraversal
	}
	return nil
}

// within reports whether path equals base or lies below it. Both must be
// clean absolute paths.
func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel))
}

// checkSymlinks walks up from path to the deepest component that exists,
// resolves it, and requires the result to stay inside the resolved base.
func checkSymlinks(base, path string) error {
	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// never recreate the tree of a deleted account
			return common.ErrAccountNotFound
		}
		return err
	}

	existing := path
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		parent := filepath.Dir(existing)
		if parent == existing || !within(base, parent) {
			return nil
		}
		existing = parent
	}

	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// dangling link: its target cannot be verified
			return common.ErrPathTraversal
		}
		return err
	}
	if !within(realBase, real) {
		return common.ErrPathTraversal
	}
	return nil
}
