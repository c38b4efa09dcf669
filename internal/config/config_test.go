package config

import (
	"path/filepath"
	"testing"
	"time"
)

var allEnvVars = []string{
	"BOARDSYNC_API_URL", "BOARDSYNC_TOKEN", "BOARDSYNC_ACTOR", "BOARDSYNC_TRANSPORT",
	"BOARDSYNC_NATS_URL", "BOARDSYNC_REDIS_ADDR", "BOARDSYNC_RECONNECT_ATTEMPTS",
	"BOARDSYNC_RECONNECT_INTERVAL", "BOARDSYNC_HEARTBEAT_INTERVAL",
	"BOARDSYNC_LIVENESS_TIMEOUT", "BOARDSYNC_COMMIT_TIMEOUT",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearAllEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "http://localhost:8000" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Transport != TransportWebSocket {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.ReconnectAttempts != 10 {
		t.Errorf("ReconnectAttempts = %d, want 10", cfg.ReconnectAttempts)
	}
	if cfg.ReconnectInterval != 2*time.Second {
		t.Errorf("ReconnectInterval = %v, want 2s", cfg.ReconnectInterval)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 30s", cfg.HeartbeatInterval)
	}
	if cfg.LivenessTimeout != 0 {
		t.Errorf("LivenessTimeout = %v, want 0 (disabled)", cfg.LivenessTimeout)
	}
	if cfg.CommitTimeout != 10*time.Second {
		t.Errorf("CommitTimeout = %v, want 10s", cfg.CommitTimeout)
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name          string
		env           map[string]string
		wantErr       bool
		wantTransport string
		wantAttempts  int
		wantInterval  time.Duration
	}{
		{
			name: "Custom",
			env: map[string]string{
				"BOARDSYNC_TRANSPORT":          "nats",
				"BOARDSYNC_RECONNECT_ATTEMPTS": "3",
				"BOARDSYNC_RECONNECT_INTERVAL": "250ms",
			},
			wantTransport: TransportNATS,
			wantAttempts:  3,
			wantInterval:  250 * time.Millisecond,
		},
		{
			name:          "ZeroAttempts",
			env:           map[string]string{"BOARDSYNC_RECONNECT_ATTEMPTS": "0"},
			wantTransport: TransportWebSocket,
			wantAttempts:  0,
			wantInterval:  2 * time.Second,
		},
		{name: "UnknownTransport", env: map[string]string{"BOARDSYNC_TRANSPORT": "carrier-pigeon"}, wantErr: true},
		{name: "BadAttempts", env: map[string]string{"BOARDSYNC_RECONNECT_ATTEMPTS": "ten"}, wantErr: true},
		{name: "NegativeAttempts", env: map[string]string{"BOARDSYNC_RECONNECT_ATTEMPTS": "-1"}, wantErr: true},
		{name: "BadInterval", env: map[string]string{"BOARDSYNC_RECONNECT_INTERVAL": "soon"}, wantErr: true},
		{name: "ZeroInterval", env: map[string]string{"BOARDSYNC_RECONNECT_INTERVAL": "0s"}, wantErr: true},
		{name: "NegativeTimeout", env: map[string]string{"BOARDSYNC_COMMIT_TIMEOUT": "-1s"}, wantErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Transport != tc.wantTransport {
				t.Errorf("Transport = %q, want %q", cfg.Transport, tc.wantTransport)
			}
			if cfg.ReconnectAttempts != tc.wantAttempts {
				t.Errorf("ReconnectAttempts = %d, want %d", cfg.ReconnectAttempts, tc.wantAttempts)
			}
			if cfg.ReconnectInterval != tc.wantInterval {
				t.Errorf("ReconnectInterval = %v, want %v", cfg.ReconnectInterval, tc.wantInterval)
			}
		})
	}
}

func TestProfilesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profiles.toml")

	in := Profiles{
		Active: "staging",
		Profiles: map[string]Profile{
			"staging": {APIURL: "https://staging.example.test", Token: "s3cret", Transport: "redis", RedisAddr: "redis:6379"},
			"local":   {APIURL: "http://localhost:8000"},
		},
	}
	if err := SaveProfiles(path, in); err != nil {
		t.Fatalf("SaveProfiles() error = %v", err)
	}

	out, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("LoadProfiles() error = %v", err)
	}
	prof, ok := out.Lookup("")
	if !ok {
		t.Fatal("Lookup(\"\") found no active profile")
	}
	if prof != in.Profiles["staging"] {
		t.Errorf("active profile = %+v", prof)
	}
	if _, ok := out.Lookup("missing"); ok {
		t.Error("Lookup(missing) = ok")
	}
}

func TestLoadProfiles_Missing(t *testing.T) {
	p, err := LoadProfiles(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadProfiles() error = %v", err)
	}
	if p.Profiles == nil || len(p.Profiles) != 0 {
		t.Errorf("Profiles = %v, want empty map", p.Profiles)
	}
	if _, ok := p.Lookup(""); ok {
		t.Error("Lookup on empty profiles = ok")
	}
}

func TestApplyProfile_EnvWins(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("BOARDSYNC_TOKEN", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	err = cfg.ApplyProfile(Profile{
		APIURL:    "https://board.example.test",
		Token:     "from-profile",
		Actor:     "u42",
		Transport: "nats",
		NATSURL:   "nats://broker:4222",
	})
	if err != nil {
		t.Fatalf("ApplyProfile() error = %v", err)
	}
	if cfg.Token != "from-env" {
		t.Errorf("Token = %q, want env value", cfg.Token)
	}
	if cfg.APIURL != "https://board.example.test" || cfg.Actor != "u42" {
		t.Errorf("profile not applied: %+v", cfg)
	}
	if cfg.Transport != TransportNATS || cfg.NATSURL != "nats://broker:4222" {
		t.Errorf("transport = %q %q", cfg.Transport, cfg.NATSURL)
	}
}

func TestApplyProfile_InvalidTransport(t *testing.T) {
	clearAllEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.ApplyProfile(Profile{Transport: "smoke-signals"}); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
