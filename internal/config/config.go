// Package config loads the exporter configuration from
// ~/.teams-export/config.json with environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultAuthority signs in work/school and personal accounts alike.
	DefaultAuthority = "https://login.microsoftonline.com/common"

	configDirName      = ".teams-export"
	configFileName     = "config.json"
	tokenCacheFileName = "token_cache.json"
	chatCacheFileName  = "chats_cache.json"
)

// DefaultScopes are the Graph permissions required to read chats.
func DefaultScopes() []string {
	return []string{"Chat.Read", "Chat.ReadBasic", "Chat.ReadWrite"}
}

// App is the resolved application configuration.
type App struct {
	ClientID       string
	Authority      string
	Scopes         []string
	TokenCachePath string
	ChatCachePath  string
}

// Error indicates mandatory configuration is missing or unreadable.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func configError(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// fileConfig is the on-disk schema. All fields are optional except
// client_id, which may instead come from the environment.
type fileConfig struct {
	ClientID       string   `json:"client_id"`
	Authority      string   `json:"authority"`
	Scopes         []string `json:"scopes"`
	TokenCachePath string   `json:"token_cache_path"`
	ChatCachePath  string   `json:"chat_cache_path"`
}

// Dir returns the configuration directory, honoring the user's home.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configDirName
	}
	return filepath.Join(home, configDirName)
}

// DefaultPath is where Load looks when no explicit path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), configFileName)
}

// Load reads the config file at path (DefaultPath when empty), applies
// environment overrides, and validates the result. A missing file is fine
// as long as TEAMS_EXPORT_CLIENT_ID is set.
func Load(path string) (App, error) {
	if path == "" {
		path = DefaultPath()
	}
	var raw fileConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &raw); err != nil {
			return App{}, configError("parse %s: %v", path, err)
		}
	case os.IsNotExist(err):
		// defaults plus environment only
	default:
		return App{}, configError("read %s: %v", path, err)
	}

	app := App{
		ClientID:       getEnv("TEAMS_EXPORT_CLIENT_ID", raw.ClientID),
		Authority:      getEnv("TEAMS_EXPORT_AUTHORITY", raw.Authority),
		Scopes:         raw.Scopes,
		TokenCachePath: raw.TokenCachePath,
		ChatCachePath:  raw.ChatCachePath,
	}
	if env := os.Getenv("TEAMS_EXPORT_SCOPES"); env != "" {
		app.Scopes = splitList(env)
	}

	if app.ClientID == "" {
		return App{}, configError("missing client_id; set TEAMS_EXPORT_CLIENT_ID or define it in %s", path)
	}
	if app.Authority == "" {
		app.Authority = DefaultAuthority
	}
	if len(app.Scopes) == 0 {
		app.Scopes = DefaultScopes()
	}
	if app.TokenCachePath == "" {
		app.TokenCachePath = filepath.Join(Dir(), tokenCacheFileName)
	}
	if app.ChatCachePath == "" {
		app.ChatCachePath = filepath.Join(Dir(), chatCacheFileName)
	}
	return app, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
