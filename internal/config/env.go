package config

import (
	"fmt"
	"maps"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/randomizedcoder/go-procrun/internal/engine"
)

// ChildEnv returns the variables merged over the parent environment for the
// child: the -env-file contents first, then each -env entry.
func (c *Config) ChildEnv() (map[string]string, error) {
	env := make(map[string]string)

	if c.EnvFile != "" {
		fileEnv, err := godotenv.Read(c.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", c.EnvFile, err)
		}
		maps.Copy(env, fileEnv)
	}

	for _, kv := range c.Env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid -env entry %q: want KEY=VALUE", kv)
		}
		env[key] = value
	}

	return env, nil
}

// ExecConfig converts the options into the engine's per-run configuration.
func (c *Config) ExecConfig() (engine.ExecConfig, error) {
	priority, err := engine.ParsePriority(c.Priority)
	if err != nil {
		return engine.ExecConfig{}, err
	}

	env, err := c.ChildEnv()
	if err != nil {
		return engine.ExecConfig{}, err
	}

	dir, name := c.ToolDir, c.ExeName
	if dir == "" {
		// No -dir: look the executable up on PATH. If that fails the
		// engine reports it as not found.
		if path, err := exec.LookPath(name); err == nil {
			dir, name = filepath.Dir(path), filepath.Base(path)
		}
	}

	return engine.ExecConfig{
		CustomArgs: c.CustomArgs,
		ToolDir:    dir,
		ExeName:    name,
		Priority:   priority,
		Timeout:    c.Timeout,
		TempDir:    c.TempDir,
		Env:        env,
	}, nil
}
