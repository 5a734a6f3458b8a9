package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
)

// RemotesConfig is the contents of remotes.toml: named server profiles and
// the one in use.
type RemotesConfig struct {
	Active  string            `toml:"active" json:"active,omitempty"`
	Remotes map[string]Remote `toml:"remotes" json:"remotes"`
}

// Remote is a named server profile. URL is the HTTP base URL.
type Remote struct {
	URL      string `toml:"url" json:"url"`
	GRPCAddr string `toml:"grpc_addr,omitempty" json:"grpc_addr,omitempty"`
	Token    string `toml:"token,omitempty" json:"token,omitempty"`
	NATSURL  string `toml:"nats_url,omitempty" json:"nats_url,omitempty"`
}

// Names returns the remote names in order.
func (c *RemotesConfig) Names() []string {
	names := make([]string, 0, len(c.Remotes))
	for name := range c.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Use makes name the active remote.
func (c *RemotesConfig) Use(name string) error {
	if _, ok := c.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}
	c.Active = name
	return nil
}

// Remove deletes name, deactivating it if it was active.
func (c *RemotesConfig) Remove(name string) error {
	if _, ok := c.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}
	delete(c.Remotes, name)
	if c.Active == name {
		c.Active = ""
	}
	return nil
}

// remotesFile is $SPECS_REMOTES_FILE, else remotes.toml under
// $XDG_STATE_HOME/specs, else under ~/.local/state/specs.
func remotesFile() (string, error) {
	if p := os.Getenv("SPECS_REMOTES_FILE"); p != "" {
		return p, nil
	}
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "specs", "remotes.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating remotes file: %w", err)
	}
	return filepath.Join(home, ".local", "state", "specs", "remotes.toml"), nil
}

// loadRemotesConfig reads the remotes file. A missing file is an empty
// config.
func loadRemotesConfig() (RemotesConfig, error) {
	cfg := RemotesConfig{Remotes: map[string]Remote{}}
	path, err := remotesFile()
	if err != nil {
		return cfg, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]Remote{}
	}
	return cfg, nil
}

// saveRemotesConfig replaces the remotes file. Tokens live in it, so it is
// written owner-only.
func saveRemotesConfig(cfg RemotesConfig) error {
	path, err := remotesFile()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".remotes-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding remotes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// currentRemote is the active remote, read once per process. Without one
// it is the zero Remote.
var currentRemote = sync.OnceValue(func() Remote {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return Remote{}
	}
	return cfg.Remotes[cfg.Active]
})
