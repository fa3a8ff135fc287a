// Package api is the HTTP client for the cloudkeeper server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
)

// Client wraps HTTP calls to the cloudkeeper API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a Client for baseURL (e.g. http://localhost:8080).
// Redirects are not followed so that /logout can be observed.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// APIError is returned when the server answers with a 4xx or 5xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type FileInfo struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"last_modified"`
}

type DirInfo struct {
	Name         string `json:"name"`
	LastModified int64  `json:"last_modified"`
}

type Listing struct {
	Files       []FileInfo `json:"files"`
	Directories []DirInfo  `json:"directories"`
}

type Account struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
	Role  int16   `json:"role"`
}

type SignUpRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Email           string `json:"email,omitempty"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// --- low-level helpers ---

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set(common.AccessTokenHeaderName, c.Token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
}

func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func pathQuery(p string) url.Values {
	return url.Values{"path": {p}}
}

// --- account ---

func (c *Client) SignUp(ctx context.Context, r SignUpRequest) error {
	return c.post(ctx, "/api/v1/signup", r, nil)
}

// SignIn exchanges credentials for a session token.
func (c *Client) SignIn(ctx context.Context, login, password string) (*Session, error) {
	var s Session
	body := map[string]any{"login": login, "password": password}
	if err := c.post(ctx, "/api/v1/signin", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Logout revokes the current token. The server answers with a redirect.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/logout", nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) Account(ctx context.Context) (*Account, error) {
	var a Account
	if err := c.get(ctx, "/api/v1/account", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) DeleteAccount(ctx context.Context, password string) error {
	return c.post(ctx, "/api/v1/account/delete", map[string]string{"password": password}, nil)
}

// --- files ---

func (c *Client) List(ctx context.Context, dir string) (*Listing, error) {
	var l Listing
	if err := c.get(ctx, "/app/files/list", pathQuery(dir), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Download streams the remote file into w and returns the bytes written.
func (c *Client) Download(ctx context.Context, remote string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/app/files/get", pathQuery(remote), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

// Upload sends the local file into the remote directory dir. The body is
// streamed through a pipe so large files are never buffered in memory.
func (c *Client) Upload(ctx context.Context, dir, localPath string) ([]string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(localPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/app/files/upload", pathQuery(dir), pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out struct {
		Files []string `json:"files"`
	}
	if err := c.doJSON(req, &out); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return out.Files, nil
}

func (c *Client) Mkdir(ctx context.Context, dir string) error {
	return c.get(ctx, "/app/files/create_dir", pathQuery(dir), nil)
}

func (c *Client) Remove(ctx context.Context, p string) error {
	return c.get(ctx, "/app/files/remove", pathQuery(p), nil)
}

func (c *Client) Move(ctx context.Context, from, to string) error {
	return c.post(ctx, "/app/files/move", map[string]string{"from": from, "to": to}, nil)
}

func (c *Client) Copy(ctx context.Context, from, to string) error {
	return c.post(ctx, "/app/files/copy", map[string]string{"from": from, "to": to}, nil)
}
