// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files and
// resolves the key for a provider through an ordered list of sources.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
//
// Supported key files: gemini-api-key, anthropic-api-key.
package secrets

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pdiddy/course-engine/pkg/types"
)

const (
	// DefaultDir is the secrets directory relative to the working directory.
	DefaultDir = ".secrets"

	// DefaultEnvFile is the dotenv file consulted after the secrets directory.
	DefaultEnvFile = ".env"
)

// ErrNoAPIKey is returned when no source yields a key.
var ErrNoAPIKey = errors.New("no API key found")

// envKeys lists the environment variables checked per provider, in order.
var envKeys = map[types.Provider][]string{
	types.ProviderGemini:    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	types.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// KeyFile returns the secrets-directory file name holding a provider's key.
func KeyFile(p types.Provider) string {
	return string(p) + "-api-key"
}

// Origin names where a resolved key came from.
type Origin string

const (
	OriginConfig      Origin = "config"
	OriginSecretsFile Origin = "secrets file"
	OriginDotEnv      Origin = "dotenv file"
	OriginEnvironment Origin = "environment"
)

// Resolver looks up API keys. The zero value uses DefaultDir, DefaultEnvFile
// and the process environment.
type Resolver struct {
	SecretsDir string
	EnvFile    string

	// Getenv replaces os.Getenv in tests.
	Getenv func(string) string
}

// APIKey walks the sources in order: the explicit value, the secrets file,
// the dotenv file and the environment. The first non-blank value wins. The
// dotenv file is parsed without touching the process environment.
func (r Resolver) APIKey(provider types.Provider, explicit string) (string, Origin, error) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, OriginConfig, nil
	}

	dir := r.SecretsDir
	if dir == "" {
		dir = DefaultDir
	}
	loaded, err := Load(dir)
	if err != nil {
		return "", "", err
	}
	if v := loaded[KeyFile(provider)]; v != "" {
		return v, OriginSecretsFile, nil
	}

	names := envKeys[provider]

	envFile := r.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv, err := godotenv.Read(envFile)
	switch {
	case err == nil:
		for _, name := range names {
			if v := strings.TrimSpace(dotenv[name]); v != "" {
				return v, OriginDotEnv, nil
			}
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", "", fmt.Errorf("reading %s: %w", envFile, err)
	}

	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, name := range names {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v, OriginEnvironment, nil
		}
	}

	return "", "", fmt.Errorf("%w for provider %s: set api.api_key, %s/%s, or %s",
		ErrNoAPIKey, provider, dir, KeyFile(provider), strings.Join(names, " / "))
}
