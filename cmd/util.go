package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/zhubert/plural-mcp/internal/config"
	"github.com/zhubert/plural-mcp/internal/mcp"
	"github.com/zhubert/plural-mcp/internal/model"
	"github.com/zhubert/plural-mcp/internal/settings"
)

// serverStore is what commands read and change. *config.Config writes the
// settings directly; *mcp.RemoteStore forwards changes to a running serve.
type serverStore interface {
	List() []model.MCPServer
	Get(id string) *model.MCPServer
	Upsert(server model.MCPServer)
	Remove(id string) bool
	ResetStatus(id string) bool
}

// app bundles the loaded settings for a single command invocation.
type app struct {
	cfg     serverStore
	store   settings.Persister
	lock    *settings.OwnerLock
	remote  *mcp.RemoteStore
	log     *slog.Logger
	saveErr error
}

// newLogger builds the command logger. Debug level unless --quiet.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelDebug
	if quietMode {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// resolveSettings returns the settings path and backend from flags and defaults.
func resolveSettings() (string, settings.Backend, error) {
	backend, err := settings.ParseBackend(settingsBackend, settingsPath)
	if err != nil {
		return "", "", err
	}
	path := settingsPath
	if path == "" {
		path = settings.DefaultPath(backend)
	}
	return path, backend, nil
}

func resolveSocketPath() string {
	if statusSocketPath != "" {
		return statusSocketPath
	}
	return mcp.DefaultSocketPath()
}

// openApp loads the settings. Mutating commands take the owner lock and
// write every change back through the persister; the first save error is
// kept in saveErr. When a live serve holds the lock, changes are sent over
// its socket instead and land in the same queue as status reports.
func openApp(mutating bool) (*app, error) {
	path, backend, err := resolveSettings()
	if err != nil {
		return nil, err
	}

	a := &app{log: newLogger(os.Stderr).With("settings", path)}

	if !mutating {
		if err := a.load(path, backend, false); err != nil {
			a.Close()
			return nil, err
		}
		return a, nil
	}

	lock, err := settings.AcquireLock(path)
	if err != nil {
		client, dialErr := dialServe(path)
		if dialErr != nil {
			a.log.Debug("serve not reachable", "error", dialErr)
			return nil, err
		}
		if err := a.load(path, backend, false); err != nil {
			client.Close()
			a.Close()
			return nil, err
		}
		a.remote = mcp.NewRemoteStore(client, a.cfg.(*config.Config))
		a.cfg = a.remote
		a.log.Debug("settings owned by serve, forwarding changes", "socket", resolveSocketPath())
		return a, nil
	}
	a.lock = lock

	if err := a.load(path, backend, true); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// dialServe connects to the serve process recorded in the owner lock.
func dialServe(settingsPath string) (*mcp.SocketClient, error) {
	pid, running := settings.ReadLockStatus(settingsPath)
	if !running {
		return nil, fmt.Errorf("lock owner %d is not running", pid)
	}
	return mcp.NewSocketClient(resolveSocketPath())
}

func (a *app) load(path string, backend settings.Backend, writable bool) error {
	var (
		store settings.Persister
		err   error
	)
	if writable {
		store, err = settings.Open(path, backend)
	} else {
		store, err = settings.OpenReadOnly(path, backend)
	}
	if err != nil {
		return err
	}
	a.store = store

	cfg, err := config.Load(store)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if writable {
		cfg.Subscribe(func(servers []model.MCPServer) {
			if err := store.Save(servers); err != nil && a.saveErr == nil {
				a.saveErr = fmt.Errorf("failed to save settings: %w", err)
			}
		})
	}
	return nil
}

// err returns the first failure to persist or forward a change.
func (a *app) err() error {
	if a.saveErr != nil {
		return a.saveErr
	}
	if a.remote != nil {
		return a.remote.Err()
	}
	return nil
}

// Close releases the persister, the serve connection and the owner lock.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close settings", "error", err)
		}
	}
	if a.remote != nil {
		a.remote.Close()
	}
	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			a.log.Warn("failed to release lock", "error", err)
		}
	}
}

// resolveServer finds a server by exact ID, exact name, or unique ID prefix.
func resolveServer(cfg serverStore, ref string) (*model.MCPServer, error) {
	if s := cfg.Get(ref); s != nil {
		return s, nil
	}

	var byName, byPrefix []model.MCPServer
	for _, s := range cfg.List() {
		if s.Name == ref {
			byName = append(byName, s)
		}
		if ref != "" && strings.HasPrefix(s.ID, ref) {
			byPrefix = append(byPrefix, s)
		}
	}

	for _, matches := range [][]model.MCPServer{byName, byPrefix} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return &matches[0], nil
		default:
			return nil, fmt.Errorf("%q matches %d servers; use the full ID", ref, len(matches))
		}
	}
	return nil, fmt.Errorf("%q: %w", ref, config.ErrNotFound)
}

// shortID abbreviates a server ID for table output.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// confirm prompts the user for y/n confirmation
func confirm(input io.Reader, output io.Writer, prompt string) bool {
	reader := bufio.NewReader(input)
	fmt.Fprintf(output, "%s [y/N]: ", prompt)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
