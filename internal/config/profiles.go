package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Profiles holds all named connection profiles and tracks which one is active.
type Profiles struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile is a named board service endpoint.
type Profile struct {
	APIURL    string `toml:"api_url"`
	Token     string `toml:"token,omitempty"`
	Actor     string `toml:"actor,omitempty"`
	Transport string `toml:"transport,omitempty"`
	NATSURL   string `toml:"nats_url,omitempty"`
	RedisAddr string `toml:"redis_addr,omitempty"`
}

// DefaultProfilePath returns ~/.config/boardsync/profiles.toml.
func DefaultProfilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "boardsync", "profiles.toml"), nil
}

// LoadProfiles reads a profile file. A missing file yields an empty set.
func LoadProfiles(path string) (Profiles, error) {
	var p Profiles
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if os.IsNotExist(err) {
			return Profiles{Profiles: map[string]Profile{}}, nil
		}
		return Profiles{}, fmt.Errorf("reading profiles %s: %w", path, err)
	}
	if p.Profiles == nil {
		p.Profiles = map[string]Profile{}
	}
	return p, nil
}

// SaveProfiles writes p to path, creating the parent directory.
func SaveProfiles(path string, p Profiles) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(p)
}

// Lookup returns the named profile, or the active one when name is empty.
func (p Profiles) Lookup(name string) (Profile, bool) {
	if name == "" {
		name = p.Active
	}
	if name == "" {
		return Profile{}, false
	}
	prof, ok := p.Profiles[name]
	return prof, ok
}

// ApplyProfile overlays profile values onto c for every setting the
// environment left unset. Environment variables win over profiles.
func (c *Config) ApplyProfile(p Profile) error {
	overlay := func(dst *string, key, val string) {
		if val == "" {
			return
		}
		if os.Getenv(key) != "" {
			return
		}
		*dst = val
	}
	overlay(&c.APIURL, "BOARDSYNC_API_URL", p.APIURL)
	overlay(&c.Token, "BOARDSYNC_TOKEN", p.Token)
	overlay(&c.Actor, "BOARDSYNC_ACTOR", p.Actor)
	overlay(&c.Transport, "BOARDSYNC_TRANSPORT", p.Transport)
	overlay(&c.NATSURL, "BOARDSYNC_NATS_URL", p.NATSURL)
	overlay(&c.RedisAddr, "BOARDSYNC_REDIS_ADDR", p.RedisAddr)
	return c.Validate()
}
