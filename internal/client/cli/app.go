// Package cli implements the cloudkeeper command line client.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/cloudkeeper/internal/client/api"
	"github.com/dmitrijs2005/cloudkeeper/internal/client/config"
	"github.com/dmitrijs2005/cloudkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

var errNotLoggedIn = errors.New(`not logged in, run "cloudkeeper-cli login" first`)

// App is the state shared by all commands of one invocation.
type App struct {
	configPath string
	serverURL  string

	cfg    *config.Config
	client *api.Client
	in     *bufio.Reader
	out    io.Writer
}

func newApp(in io.Reader, out io.Writer) *App {
	return &App{in: bufio.NewReader(in), out: out}
}

// load reads the config file and builds the API client.
func (a *App) load() error {
	if a.configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return fmt.Errorf("locating config: %w", err)
		}
		a.configPath = p
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.serverURL != "" {
		cfg.ServerURL = a.serverURL
	}
	a.cfg = cfg
	a.client = api.NewClient(cfg.ServerURL, cfg.Token, cfg.RequestTimeout.Duration)
	return nil
}

func (a *App) save() error {
	return config.Save(a.configPath, a.cfg)
}

func (a *App) requireAuth() error {
	if !a.cfg.HasToken() {
		return errNotLoggedIn
	}
	return nil
}

func (a *App) prompt(label string) (string, error) {
	return getSimpleText(a.in, label, a.out)
}

// password reads a secret and returns it as a string; the raw bytes are
// wiped before returning.
func (a *App) password(label string) (string, error) {
	pw, err := getPassword(a.out, label)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// forgetIfUnauthorized drops a token the server no longer accepts.
func (a *App) forgetIfUnauthorized(err error) error {
	if api.IsStatus(err, http.StatusUnauthorized) && a.cfg.Token != "" {
		a.cfg.ClearToken()
		_ = a.save()
	}
	return err
}
