package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
	"github.com/dmitrijs2005/cloudkeeper/internal/logging"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/auth"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/config"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/services"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/sessions"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	handler http.Handler
	cfg     *config.Config
	metrics *metrics.Metrics
}

type envOption func(cfg *config.Config, d *Deps)

func withReadOnly() envOption {
	return func(cfg *config.Config, _ *Deps) { cfg.ReadOnly = true }
}

func withLimiter(l ratelimit.Limiter) envOption {
	return func(_ *config.Config, d *Deps) { d.Limiter = l }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.StorageRoot = t.TempDir()
	cfg.MaxUploadSize = 1 << 20

	d := Deps{Config: cfg}
	for _, o := range opts {
		o(cfg, &d)
	}

	db, m, err := repomanager.Open(ctx, "sqlite::memory:", logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	resolver, err := storage.NewResolver(cfg.StorageRoot)
	require.NoError(t, err)

	l := logging.Discard()
	tokens := auth.NewTokenManager([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
	denylist := sessions.NewMemoryDenylist()

	d.Tokens = tokens
	d.Denylist = denylist
	d.DB = db
	d.Metrics = metrics.New()
	d.Users = services.NewUserService(services.UserDeps{
		DB:                  db,
		Repos:               m,
		Tokens:              tokens,
		Storage:             resolver,
		Denylist:            denylist,
		Tracker:             sessions.NewTracker(cfg.MaxSessions),
		RegistrationEnabled: cfg.RegistrationEnabled,
	}, l)
	d.Files = services.NewFileService(resolver, cfg.ReadOnly, cfg.Workers, l)

	s := NewServer(d, l)
	return &testEnv{handler: s.Handler(), cfg: cfg, metrics: d.Metrics}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postJSON(t *testing.T, target string, payload any, token string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	h := map[string]string{"Content-Type": "application/json"}
	if token != "" {
		h[common.AccessTokenHeaderName] = token
	}
	return e.do(t, http.MethodPost, target, bytes.NewReader(b), h)
}

func (e *testEnv) get(t *testing.T, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	h := map[string]string{}
	if token != "" {
		h[common.AccessTokenHeaderName] = token
	}
	return e.do(t, http.MethodGet, target, nil, h)
}

func (e *testEnv) upload(t *testing.T, target, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	pw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(pw, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return e.do(t, http.MethodPost, target, &buf, map[string]string{
		"Content-Type":               w.FormDataContentType(),
		common.AccessTokenHeaderName: token,
	})
}

func (e *testEnv) signUp(t *testing.T, username, password, email string) *httptest.ResponseRecorder {
	t.Helper()
	return e.postJSON(t, "/signup", map[string]string{
		"username":         username,
		"password":         password,
		"confirm_password": password,
		"email":            email,
	}, "")
}

func (e *testEnv) signIn(t *testing.T, login, password string) string {
	t.Helper()
	rec := e.postJSON(t, "/signin", map[string]any{"login": login, "password": password}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp signInResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func fileNames(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var listing struct {
		Files []struct {
			Name string `json:"name"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	names := []string{}
	for _, f := range listing.Files {
		names = append(names, f.Name)
	}
	return names
}

func TestAliceScenario(t *testing.T) {
	env := newTestEnv(t)

	rec := env.signUp(t, "alice", "password123", "alice@test.com")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token := env.signIn(t, "alice", "password123")

	rec = env.upload(t, "/app/files/upload?path=/", token, "notes.txt", "hello")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.get(t, "/app/files/get?path=notes.txt", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "notes.txt")

	rec = env.get(t, "/app/files/list?path=/", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, fileNames(t, rec), "notes.txt")

	rec = env.get(t, "/app/files/remove?path=notes.txt", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.get(t, "/app/files/list?path=/", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, fileNames(t, rec), "notes.txt")
}

func TestReadOnlyScenario(t *testing.T) {
	env := newTestEnv(t, withReadOnly())
	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "alice@test.com").Code)
	token := env.signIn(t, "alice", "password123")

	rec := env.upload(t, "/app/files/upload", token, "notes.txt", "hello")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "read-only mode", errorMessage(t, rec))

	rec = env.get(t, "/app/files/create_dir?path=docs", token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.get(t, "/app/files/list", token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMoveScenario(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "").Code)
	token := env.signIn(t, "alice", "password123")

	require.Equal(t, http.StatusOK, env.upload(t, "/app/files/upload", token, "a.txt", "original").Code)

	rec := env.postJSON(t, "/app/files/move", map[string]string{"from": "a.txt", "to": "b.txt"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, env.get(t, "/app/files/get?path=a.txt", token).Code)

	rec = env.get(t, "/app/files/get?path=b.txt", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "original", rec.Body.String())
}

func TestCopyAndConflicts(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "").Code)
	token := env.signIn(t, "alice", "password123")

	require.Equal(t, http.StatusOK, env.get(t, "/app/files/create_dir?path=docs/2024", token).Code)
	require.Equal(t, http.StatusOK, env.upload(t, "/app/files/upload?path=docs", token, "a.txt", "A").Code)

	rec := env.postJSON(t, "/app/files/copy", map[string]string{"from": "docs", "to": "backup"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.get(t, "/app/files/get?path=backup/a.txt", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A", rec.Body.String())

	rec = env.postJSON(t, "/app/files/copy", map[string]string{"from": "docs", "to": "backup"}, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.postJSON(t, "/app/files/move", map[string]string{"from": "docs", "to": "docs/2024/docs"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.get(t, "/app/files/remove?path=/", token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.get(t, "/app/files/get?path=docs", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignUpErrors(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "alice@test.com").Code)

	rec := env.signUp(t, "alice", "password123", "other@test.com")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, common.ErrUsernameTaken.Error(), errorMessage(t, rec))

	rec = env.signUp(t, "alice2", "password123", "alice@test.com")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, common.ErrEmailTaken.Error(), errorMessage(t, rec))

	rec = env.signUp(t, "bob", "password123", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// such a name could never sign in: logins with '@' are looked up by email
	rec = env.signUp(t, "bob@home", "password123", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, common.ErrInvalidUsername.Error(), errorMessage(t, rec))

	rec = env.postJSON(t, "/api/v1/signup", map[string]string{
		"username": "carol", "password": "password123", "confirm_password": "password124",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, common.ErrPasswordsDontMatch.Error(), errorMessage(t, rec))

	rec = env.do(t, http.MethodPost, "/signup", strings.NewReader("{not json"), map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignInErrors(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "").Code)

	rec := env.postJSON(t, "/api/v1/signin", map[string]string{"login": "alice", "password": "password124"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.postJSON(t, "/api/v1/signin", map[string]string{"login": "nobody", "password": "password123"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnauthorizedRequests(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/app/files/list", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ErrNoToken.Error(), errorMessage(t, rec))

	rec = env.get(t, "/app/files/list", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/app/files/list", nil, map[string]string{"Authorization": "Basic abc"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ErrInvalidToken.Error(), errorMessage(t, rec))
}

func TestUploadRejectsTraversal(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "").Code)
	token := env.signIn(t, "alice", "password123")

	rec := env.upload(t, "/app/files/upload", token, "../../evil.txt", "x")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.upload(t, "/app/files/upload?path=../..", token, "evil.txt", "x")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.get(t, "/app/files/list", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fileNames(t, rec))
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.MaxUploadSize = 512
	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "").Code)
	token := env.signIn(t, "alice", "password123")

	rec := env.upload(t, "/app/files/upload", token, "big.bin", strings.Repeat("x", 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "").Code)
	token := env.signIn(t, "alice", "password123")

	require.Equal(t, http.StatusOK, env.get(t, "/app/files/list", token).Code)

	rec := env.get(t, "/logout", token)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = env.get(t, "/app/files/list", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ErrTokenRevoked.Error(), errorMessage(t, rec))
}

func TestCookieSession(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "").Code)

	rec := env.postJSON(t, "/signin", map[string]any{"login": "alice", "password": "password123", "cookie": true}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == common.AccessTokenCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
	req.AddCookie(cookie)
	out := httptest.NewRecorder()
	env.handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)

	var acc accountResponse
	require.NoError(t, json.Unmarshal(out.Body.Bytes(), &acc))
	assert.Equal(t, "alice", acc.Name)
	assert.Nil(t, acc.Email)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "").Code)
	token := env.signIn(t, "alice", "password123")
	require.Equal(t, http.StatusOK, env.upload(t, "/app/files/upload", token, "a.txt", "x").Code)

	rec := env.postJSON(t, "/api/v1/account/delete", map[string]string{"password": "wrong-pass"}, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.postJSON(t, "/api/v1/account/delete", map[string]string{"password": "password123"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, env.get(t, "/api/v1/account", token).Code)

	rec = env.postJSON(t, "/signin", map[string]string{"login": "alice", "password": "password123"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "").Code)
}

func TestDeleteAccount_RevokesOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.signUp(t, "alice", "password123", "").Code)
	laptop := env.signIn(t, "alice", "password123")
	phone := env.signIn(t, "alice", "password123")

	rec := env.get(t, "/api/v1/account", phone)
	require.Equal(t, http.StatusOK, rec.Code)
	var acc struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))

	rec = env.postJSON(t, "/api/v1/account/delete", map[string]string{"password": "password123"}, laptop)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, env.get(t, "/app/files/create_dir?path=ghost", phone).Code)
	assert.Equal(t, http.StatusUnauthorized, env.upload(t, "/app/files/upload", phone, "x.txt", "x").Code)
	assert.Equal(t, http.StatusUnauthorized, env.get(t, "/app/files/list", phone).Code)

	_, err := os.Stat(filepath.Join(env.cfg.StorageRoot, acc.ID))
	assert.True(t, os.IsNotExist(err), "the deleted tree must not come back")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, withLimiter(ratelimit.NewMemoryLimiter(ratelimit.Rate(time.Hour), 1)))

	rec := env.postJSON(t, "/signin", map[string]string{"login": "nobody", "password": "password123"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.postJSON(t, "/signin", map[string]string{"login": "nobody", "password": "password123"}, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// unlimited endpoints are unaffected
	assert.Equal(t, http.StatusOK, env.get(t, "/api/v1/meta/build", "").Code)
}

func TestMetaAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/v1/meta/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"db":true}`, rec.Body.String())

	rec = env.get(t, "/api/v1/meta/build", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "git_commit_hash")

	rec = env.get(t, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cloudkeeper_http_requests_total{method="GET",route="/api/v1/meta/health",status="200"} 1`)
}
