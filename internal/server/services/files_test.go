package services

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
	"github.com/dmitrijs2005/cloudkeeper/internal/logging"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/models"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "3f1c2a9e-7a51-4f55-9a53-0c4a6c1b9d20"

func newFileService(t *testing.T, readOnly bool) (*FileService, string) {
	t.Helper()
	r, err := storage.NewResolver(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, r.CreateUserRoot(testUserID))
	root, err := r.UserRoot(testUserID)
	require.NoError(t, err)
	return NewFileService(r, readOnly, 4, logging.Discard()), root
}

func put(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o640))
}

type upload struct {
	field    string
	filename string
	content  string
}

// multipartReader encodes parts the way a browser form would. A part with an
// empty filename is written as a plain form field.
func multipartReader(t *testing.T, parts ...upload) *multipart.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		var (
			pw  io.Writer
			err error
		)
		if p.filename == "" {
			pw, err = w.CreateFormField(p.field)
		} else {
			pw, err = w.CreateFormFile(p.field, p.filename)
		}
		require.NoError(t, err)
		_, err = io.WriteString(pw, p.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return multipart.NewReader(&buf, w.Boundary())
}

func TestFileService_UploadListOpen(t *testing.T) {
	svc, root := newFileService(t, false)
	ctx := context.Background()

	require.NoError(t, svc.CreateDir(ctx, testUserID, "docs"))

	names, err := svc.Upload(ctx, testUserID, "docs", multipartReader(t,
		upload{field: "file", filename: "notes.txt", content: "hello"},
		upload{field: "file", filename: "b.txt", content: "bb"},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt", "b.txt"}, names)

	listing, err := svc.List(ctx, testUserID, "/docs")
	require.NoError(t, err)
	require.Len(t, listing.Files, 2)
	assert.Equal(t, "b.txt", listing.Files[0].Name)
	assert.Equal(t, "notes.txt", listing.Files[1].Name)
	assert.EqualValues(t, 5, listing.Files[1].Size)
	assert.Empty(t, listing.Directories)

	f, info, err := svc.Open(ctx, testUserID, "docs/notes.txt")
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	assert.EqualValues(t, 5, info.Size())

	top, err := svc.List(ctx, testUserID, "")
	require.NoError(t, err)
	require.Len(t, top.Directories, 1)
	assert.Equal(t, "docs", top.Directories[0].Name)

	_, err = os.Stat(filepath.Join(root, "docs", "notes.txt"))
	require.NoError(t, err)
}

func TestFileService_UploadReplacesExisting(t *testing.T) {
	svc, root := newFileService(t, false)
	put(t, root, "a.txt", "old")

	_, err := svc.Upload(context.Background(), testUserID, "", multipartReader(t,
		upload{field: "file", filename: "a.txt", content: "new"},
	))
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))
}

func TestFileService_UploadRejectsBadNames(t *testing.T) {
	tests := []struct {
		name    string
		part    upload
		wantErr error
	}{
		{"parent traversal", upload{field: "file", filename: "../escape.txt", content: "x"}, common.ErrPathTraversal},
		{"nested path", upload{field: "file", filename: "sub/x.txt", content: "x"}, common.ErrPathTraversal},
		{"backslash", upload{field: "file", filename: `sub\x.txt`, content: "x"}, common.ErrPathTraversal},
		{"plain field", upload{field: "note", content: "x"}, common.ErrMissingFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, root := newFileService(t, false)
			_, err := svc.Upload(context.Background(), testUserID, "", multipartReader(t, tt.part))
			require.ErrorIs(t, err, tt.wantErr)

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Empty(t, entries)
			_, err = os.Stat(filepath.Join(filepath.Dir(root), "escape.txt"))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestFileService_UploadTooLarge(t *testing.T) {
	svc, root := newFileService(t, false)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	pw, err := w.CreateFormFile("file", "big.bin")
	require.NoError(t, err)
	_, err = pw.Write(bytes.Repeat([]byte("x"), 4096))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := httptest.NewRecorder()
	body := http.MaxBytesReader(rec, io.NopCloser(&buf), 1024)

	_, err = svc.Upload(context.Background(), testUserID, "", multipart.NewReader(body, w.Boundary()))
	require.ErrorIs(t, err, common.ErrPayloadTooLarge)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileService_UploadIntoMissingDir(t *testing.T) {
	svc, _ := newFileService(t, false)
	_, err := svc.Upload(context.Background(), testUserID, "nope", multipartReader(t,
		upload{field: "file", filename: "a.txt", content: "x"},
	))
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFileService_ReadOnly(t *testing.T) {
	svc, root := newFileService(t, true)
	put(t, root, "a.txt", "x")
	ctx := context.Background()

	assert.ErrorIs(t, svc.CreateDir(ctx, testUserID, "d"), common.ErrReadOnly)
	assert.ErrorIs(t, svc.Remove(ctx, testUserID, "a.txt"), common.ErrReadOnly)
	assert.ErrorIs(t, svc.Move(ctx, testUserID, "a.txt", "b.txt"), common.ErrReadOnly)
	assert.ErrorIs(t, svc.Copy(ctx, testUserID, "a.txt", "b.txt"), common.ErrReadOnly)
	_, err := svc.Upload(ctx, testUserID, "", multipartReader(t, upload{field: "file", filename: "c.txt", content: "x"}))
	assert.ErrorIs(t, err, common.ErrReadOnly)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	f, _, err := svc.Open(ctx, testUserID, "a.txt")
	require.NoError(t, err)
	f.Close()
	_, err = svc.List(ctx, testUserID, "")
	require.NoError(t, err)
}

func TestFileService_OpenErrors(t *testing.T) {
	svc, root := newFileService(t, false)
	put(t, root, "dir/a.txt", "x")
	ctx := context.Background()

	_, _, err := svc.Open(ctx, testUserID, "dir")
	assert.ErrorIs(t, err, common.ErrIsDirectory)

	_, _, err = svc.Open(ctx, testUserID, "missing.txt")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, _, err = svc.Open(ctx, testUserID, "../other/secret")
	assert.ErrorIs(t, err, common.ErrPathTraversal)

	_, err = svc.List(ctx, testUserID, "dir/a.txt")
	assert.ErrorIs(t, err, common.ErrNotDirectory)
}

func TestFileService_CreateDir(t *testing.T) {
	svc, root := newFileService(t, false)
	put(t, root, "file.txt", "x")
	ctx := context.Background()

	require.NoError(t, svc.CreateDir(ctx, testUserID, "a/b/c"))
	require.NoError(t, svc.CreateDir(ctx, testUserID, "a/b/c"))
	require.NoError(t, svc.CreateDir(ctx, testUserID, "/"))

	fi, err := os.Stat(filepath.Join(root, "a", "b", "c"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	assert.ErrorIs(t, svc.CreateDir(ctx, testUserID, "file.txt"), common.ErrAlreadyExists)
	assert.ErrorIs(t, svc.CreateDir(ctx, testUserID, "file.txt/sub"), common.ErrAlreadyExists)
}

func TestFileService_MoveAndCopy(t *testing.T) {
	svc, root := newFileService(t, false)
	put(t, root, "src/one.txt", "1")
	put(t, root, "src/nested/two.txt", "2")
	put(t, root, "taken.txt", "t")
	ctx := context.Background()

	require.NoError(t, svc.Copy(ctx, testUserID, "src", "copy"))
	b, err := os.ReadFile(filepath.Join(root, "copy", "nested", "two.txt"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(b))

	require.NoError(t, svc.Move(ctx, testUserID, "src/one.txt", "moved.txt"))
	_, err = os.Stat(filepath.Join(root, "src", "one.txt"))
	assert.True(t, os.IsNotExist(err))
	b, err = os.ReadFile(filepath.Join(root, "moved.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(b))

	tests := []struct {
		name     string
		from, to string
		wantErr  error
	}{
		{"destination exists", "moved.txt", "taken.txt", common.ErrAlreadyExists},
		{"missing source", "ghost.txt", "x.txt", common.ErrorNotFound},
		{"missing parent", "moved.txt", "no/such/dir.txt", common.ErrorNotFound},
		{"into itself", "src", "src/inner", common.ErrIntoItself},
		{"user root", "/", "elsewhere", common.ErrStorageRoot},
		{"empty path", "", "x", common.ErrMissingPath},
		{"traversal", "moved.txt", "../../x", common.ErrPathTraversal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.Move(ctx, testUserID, tt.from, tt.to), tt.wantErr)
			assert.ErrorIs(t, svc.Copy(ctx, testUserID, tt.from, tt.to), tt.wantErr)
		})
	}

	b, err = os.ReadFile(filepath.Join(root, "taken.txt"))
	require.NoError(t, err)
	assert.Equal(t, "t", string(b))
}

func TestFileService_Remove(t *testing.T) {
	svc, root := newFileService(t, false)
	put(t, root, "dir/a.txt", "x")
	put(t, root, "b.txt", "y")
	ctx := context.Background()

	require.NoError(t, svc.Remove(ctx, testUserID, "b.txt"))
	require.NoError(t, svc.Remove(ctx, testUserID, "dir"))
	assert.ErrorIs(t, svc.Remove(ctx, testUserID, "dir"), common.ErrorNotFound)
	assert.ErrorIs(t, svc.Remove(ctx, testUserID, "/"), common.ErrStorageRoot)
	assert.ErrorIs(t, svc.Remove(ctx, testUserID, ""), common.ErrStorageRoot)

	fi, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestFileService_ListHidesUploadTemps(t *testing.T) {
	svc, root := newFileService(t, false)
	put(t, root, ".a.txt.0123456789abcdef.part", "partial")
	put(t, root, ".profile", "keep")
	put(t, root, ".notes.part", "a user file that merely looks similar")

	listing, err := svc.List(context.Background(), testUserID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{".notes.part", ".profile"}, fileNames(listing))
}

func TestMapFSError(t *testing.T) {
	assert.ErrorIs(t, mapFSError(os.ErrNotExist), common.ErrorNotFound)
	assert.ErrorIs(t, mapFSError(os.ErrPermission), common.ErrPermissionDenied)
	assert.ErrorIs(t, mapFSError(os.ErrExist), common.ErrAlreadyExists)
	assert.ErrorIs(t, mapFSError(common.ErrReadOnly), common.ErrReadOnly)
	assert.ErrorIs(t, mapFSError(context.Canceled), context.Canceled)

	other := mapFSError(io.ErrUnexpectedEOF)
	assert.ErrorIs(t, other, io.ErrUnexpectedEOF)
	assert.True(t, strings.HasPrefix(other.Error(), "filesystem:"))
	assert.NoError(t, mapFSError(nil))
}

func fileNames(l *models.Listing) []string {
	names := make([]string, 0, len(l.Files))
	for _, f := range l.Files {
		names = append(names, f.Name)
	}
	return names
}
