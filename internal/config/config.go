package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file expected inside an arena directory.
const FileName = "cgarena_config.yml"

//go:embed assets/cgarena_config.yml
var defaultConfig []byte

// Load reads the arena config file, applies environment overrides and
// validates the result. A .env file in the working directory is honored the
// same way environment variables are.
func Load(arenaPath string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, reading from environment variables")
	}

	path := filepath.Join(arenaPath, FileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	if port, ok := os.LookupEnv("PORT"); ok {
		p, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT override %q: %w", port, err)
		}
		cfg.Server.Port = p
	}

	return cfg, nil
}

// Parse decodes and validates a raw config document. Unknown keys are
// rejected so typos do not silently disable features.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault scaffolds the default config file into an arena directory.
// It refuses to overwrite an existing config.
func WriteDefault(arenaPath string) error {
	path := filepath.Join(arenaPath, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create config file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(defaultConfig); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

// Validate checks the invariants the engine relies on.
func (c Config) Validate() error {
	if c.Game.MinPlayers < 1 {
		return fmt.Errorf("game.min_players must be at least 1, got %d", c.Game.MinPlayers)
	}
	if c.Game.MaxPlayers < c.Game.MinPlayers {
		return fmt.Errorf("game.max_players (%d) must not be below game.min_players (%d)", c.Game.MaxPlayers, c.Game.MinPlayers)
	}
	if c.Matchmaking.MinMatches < 0 {
		return fmt.Errorf("matchmaking.min_matches must not be negative, got %d", c.Matchmaking.MinMatches)
	}
	if p := c.Matchmaking.MinMatchesPreference; p < 0 || p > 1 {
		return fmt.Errorf("matchmaking.min_matches_preference must be within [0,1], got %v", p)
	}
	if c.Matchmaking.IntervalSeconds < 1 {
		return fmt.Errorf("matchmaking.interval_seconds must be at least 1, got %d", c.Matchmaking.IntervalSeconds)
	}
	if c.Ranking.Algorithm != AlgorithmWengLin {
		return fmt.Errorf("unknown ranking.algorithm %q", c.Ranking.Algorithm)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port, got %d", c.Server.Port)
	}
	if c.Worker != nil {
		if err := c.Worker.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (w Worker) validate() error {
	if w.Threads < 1 {
		return fmt.Errorf("worker.threads must be at least 1, got %d", w.Threads)
	}
	if w.DirBots == "" {
		return fmt.Errorf("worker.dir_bots must not be empty")
	}
	if w.CmdPlayMatch == "" {
		return fmt.Errorf("worker.cmd_play_match must not be empty")
	}
	if w.JobTimeoutSeconds < 1 {
		return fmt.Errorf("worker.job_timeout_seconds must be at least 1, got %d", w.JobTimeoutSeconds)
	}
	if len(w.Languages) == 0 {
		return fmt.Errorf("worker.languages must list at least one language")
	}
	seen := make(map[string]bool)
	for _, l := range w.Languages {
		if l.Name == "" {
			return fmt.Errorf("worker.languages entries must have a name")
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate language %q in worker.languages", l.Name)
		}
		seen[l.Name] = true
		if l.CmdBuild == "" || l.CmdRun == "" {
			return fmt.Errorf("language %q must define cmd_build and cmd_run", l.Name)
		}
	}
	return nil
}
