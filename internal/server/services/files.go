package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
	"github.com/dmitrijs2005/cloudkeeper/internal/filex"
	"github.com/dmitrijs2005/cloudkeeper/internal/logging"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/models"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/storage"
	"golang.org/x/sync/semaphore"
)

// FileService runs file operations inside a user's tree. Mutations are
// refused in read-only mode, and at most `workers` filesystem operations
// run at once.
type FileService struct {
	resolver *storage.Resolver
	readOnly bool
	sem      *semaphore.Weighted
	logger   logging.Logger
}

func NewFileService(r *storage.Resolver, readOnly bool, workers int, l logging.Logger) *FileService {
	if workers <= 0 {
		workers = 1
	}
	return &FileService{
		resolver: r,
		readOnly: readOnly,
		sem:      semaphore.NewWeighted(int64(workers)),
		logger:   l.With("module", "files"),
	}
}

// ReadOnly reports whether mutations are disabled.
func (s *FileService) ReadOnly() bool { return s.readOnly }

func (s *FileService) guard() error {
	if s.readOnly {
		return common.ErrReadOnly
	}
	return nil
}

func (s *FileService) acquire(ctx context.Context) (func(), error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { s.sem.Release(1) }, nil
}

// Open returns the file at rel for streaming. The caller closes it.
func (s *FileService) Open(ctx context.Context, userID, rel string) (*os.File, fs.FileInfo, error) {
	p, err := s.resolver.Resolve(userID, rel)
	if err != nil {
		return nil, nil, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	info, err := os.Stat(p)
	if err != nil {
		return nil, nil, mapFSError(err)
	}
	if info.IsDir() {
		return nil, nil, common.ErrIsDirectory
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, nil, mapFSError(err)
	}
	return f, info, nil
}

// List returns the direct children of the directory at rel.
func (s *FileService) List(ctx context.Context, userID, rel string) (*models.Listing, error) {
	p, err := s.resolver.Resolve(userID, rel)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	info, err := os.Stat(p)
	if err != nil {
		return nil, mapFSError(err)
	}
	if !info.IsDir() {
		return nil, common.ErrNotDirectory
	}

	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, mapFSError(err)
	}

	listing := &models.Listing{Files: []models.FileInfo{}, Directories: []models.DirInfo{}}
	for _, e := range entries {
		name := e.Name()
		if filex.IsTempName(name) {
			continue
		}
		// follow symlinks so entries are classified by what they point to
		fi, err := os.Stat(filepath.Join(p, name))
		if err != nil {
			continue
		}
		if fi.IsDir() {
			listing.Directories = append(listing.Directories, models.DirInfo{Name: name, LastModified: fi.ModTime().Unix()})
			continue
		}
		if fi.Mode().IsRegular() {
			listing.Files = append(listing.Files, models.FileInfo{Name: name, Size: fi.Size(), LastModified: fi.ModTime().Unix()})
		}
	}

	sort.Slice(listing.Files, func(i, j int) bool { return listing.Files[i].Name < listing.Files[j].Name })
	sort.Slice(listing.Directories, func(i, j int) bool { return listing.Directories[i].Name < listing.Directories[j].Name })
	return listing, nil
}

// CreateDir creates rel and any missing parents. Existing directories are
// fine; an existing file in the way is a conflict.
func (s *FileService) CreateDir(ctx context.Context, userID, rel string) error {
	if err := s.guard(); err != nil {
		return err
	}
	p, err := s.resolver.Resolve(userID, rel)
	if err != nil {
		return err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := os.MkdirAll(p, filex.DirPerm); err != nil {
		if errors.Is(err, syscall.ENOTDIR) || errors.Is(err, fs.ErrExist) {
			return common.ErrAlreadyExists
		}
		return mapFSError(err)
	}
	return nil
}

// Upload stores every part of mr as a file in the directory dirRel and
// returns the stored names. Each part must carry a plain filename. A file
// with the same name is replaced only after its new content is complete.
func (s *FileService) Upload(ctx context.Context, userID, dirRel string, mr *multipart.Reader) ([]string, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	dir, err := s.resolver.Resolve(userID, dirRel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, mapFSError(err)
	}
	if !info.IsDir() {
		return nil, common.ErrNotDirectory
	}

	stored := []string{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stored, mapFSError(err)
		}

		name, err := partFilename(part)
		if err != nil {
			_ = part.Close()
			return stored, err
		}

		if err := s.storePart(ctx, userID, dirRel, name, part); err != nil {
			_ = part.Close()
			return stored, err
		}
		_ = part.Close()

		s.logger.Debug(ctx, "file uploaded", "user_id", userID, "dir", dirRel, "name", name)
		stored = append(stored, name)
	}

	return stored, nil
}

func (s *FileService) storePart(ctx context.Context, userID, dirRel, name string, r io.Reader) error {
	target, err := s.resolver.Resolve(userID, path.Join(filepath.ToSlash(dirRel), name))
	if err != nil {
		return err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if fi, err := os.Lstat(target); err == nil && fi.IsDir() {
		return common.ErrAlreadyExists
	}
	if _, err := filex.WriteAtomic(ctx, filepath.Dir(target), filepath.Base(target), r); err != nil {
		return mapFSError(err)
	}
	return nil
}

// partFilename reads the filename straight from Content-Disposition.
// multipart.Part.FileName strips directories, which would hide traversal
// attempts instead of rejecting them.
func partFilename(part *multipart.Part) (string, error) {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return "", common.ErrMissingFilename
	}
	name, ok := params["filename"]
	if !ok || name == "" || name == "." {
		return "", common.ErrMissingFilename
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", common.ErrPathTraversal
	}
	return name, nil
}

// Move renames from to to inside the user's tree.
func (s *FileService) Move(ctx context.Context, userID, from, to string) error {
	return s.transfer(ctx, userID, from, to, filex.Move)
}

// Copy duplicates a file or a directory tree inside the user's tree.
func (s *FileService) Copy(ctx context.Context, userID, from, to string) error {
	return s.transfer(ctx, userID, from, to, filex.Copy)
}

// transfer validates a move or copy. The destination must not exist, its
// parent must, and a directory cannot be placed inside itself.
func (s *FileService) transfer(ctx context.Context, userID, from, to string, op func(ctx context.Context, src, dst string) error) error {
	if err := s.guard(); err != nil {
		return err
	}
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return common.ErrMissingPath
	}

	src, err := s.resolver.Resolve(userID, from)
	if err != nil {
		return err
	}
	dst, err := s.resolver.Resolve(userID, to)
	if err != nil {
		return err
	}
	if s.resolver.IsUserRoot(userID, src) {
		return common.ErrStorageRoot
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	srcInfo, err := os.Lstat(src)
	if err != nil {
		return mapFSError(err)
	}

	exists, err := filex.Exists(dst)
	if err != nil {
		return mapFSError(err)
	}
	if exists {
		return common.ErrAlreadyExists
	}

	parent, err := os.Stat(filepath.Dir(dst))
	if err != nil {
		return mapFSError(err)
	}
	if !parent.IsDir() {
		return common.ErrNotDirectory
	}

	if srcInfo.IsDir() && strings.HasPrefix(dst+string(filepath.Separator), src+string(filepath.Separator)) {
		return common.ErrIntoItself
	}

	if err := op(ctx, src, dst); err != nil {
		return mapFSError(err)
	}
	return nil
}

// Remove deletes a file, or a directory with everything below it.
func (s *FileService) Remove(ctx context.Context, userID, rel string) error {
	if err := s.guard(); err != nil {
		return err
	}
	p, err := s.resolver.Resolve(userID, rel)
	if err != nil {
		return err
	}
	if s.resolver.IsUserRoot(userID, p) {
		return common.ErrStorageRoot
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	info, err := os.Lstat(p)
	if err != nil {
		return mapFSError(err)
	}
	if info.IsDir() {
		err = os.RemoveAll(p)
	} else {
		err = os.Remove(p)
	}
	if err != nil {
		return mapFSError(err)
	}
	return nil
}

// mapFSError turns OS errors into the common taxonomy. Errors that already
// carry a sentinel pass through.
func mapFSError(err error) error {
	if err == nil {
		return nil
	}
	if kind, _ := common.KindOf(err); kind != common.KindInternal {
		return err
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return common.ErrPayloadTooLarge
	case errors.Is(err, fs.ErrNotExist):
		return common.ErrorNotFound
	case errors.Is(err, fs.ErrPermission):
		return common.ErrPermissionDenied
	case errors.Is(err, fs.ErrExist):
		return common.ErrAlreadyExists
	case errors.Is(err, syscall.ENOTDIR):
		return common.ErrNotDirectory
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("filesystem: %w", err)
}
