package httpapi

import (
	"context"
	"io"
	"mime"
	"net/http"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleGet(c *gin.Context) {
	claims := claimsFrom(c)
	f, info, err := s.files.Open(c.Request.Context(), claims.UserID, c.Query("path"))
	s.metrics.FileOp("get", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()}))
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

func (s *Server) handleList(c *gin.Context) {
	claims := claimsFrom(c)
	listing, err := s.files.List(c.Request.Context(), claims.UserID, c.Query("path"))
	s.metrics.FileOp("list", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (s *Server) handleUpload(c *gin.Context) {
	claims := claimsFrom(c)
	if s.files.ReadOnly() {
		s.metrics.FileOp("upload", common.ErrReadOnly)
		s.fail(c, common.ErrReadOnly)
		return
	}

	body := &countingReader{r: http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadSize)}
	c.Request.Body = io.NopCloser(body)

	mr, err := c.Request.MultipartReader()
	if err != nil {
		s.metrics.FileOp("upload", err)
		s.fail(c, common.ErrInvalidRequestInput)
		return
	}

	names, err := s.files.Upload(c.Request.Context(), claims.UserID, c.Query("path"), mr)
	s.metrics.FileOp("upload", err)
	s.metrics.UploadedBytes(body.n)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "uploaded", "files": names})
}

func (s *Server) handleMove(c *gin.Context) {
	s.transfer(c, "move", "moved", s.files.Move)
}

func (s *Server) handleCopy(c *gin.Context) {
	s.transfer(c, "copy", "copied", s.files.Copy)
}

func (s *Server) transfer(c *gin.Context, op, done string, fn func(ctx context.Context, userID, from, to string) error) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.ErrInvalidRequestInput)
		return
	}

	claims := claimsFrom(c)
	err := fn(c.Request.Context(), claims.UserID, req.From, req.To)
	s.metrics.FileOp(op, err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": done})
}

func (s *Server) handleRemove(c *gin.Context) {
	claims := claimsFrom(c)
	err := s.files.Remove(c.Request.Context(), claims.UserID, c.Query("path"))
	s.metrics.FileOp("remove", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}

func (s *Server) handleCreateDir(c *gin.Context) {
	claims := claimsFrom(c)
	err := s.files.CreateDir(c.Request.Context(), claims.UserID, c.Query("path"))
	s.metrics.FileOp("create_dir", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "created"})
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
