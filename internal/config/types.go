package config

import "time"

// Config holds the full arena configuration, loaded from the config file in
// the arena directory.
type Config struct {
	Game        Game        `yaml:"game"`
	Matchmaking Matchmaking `yaml:"matchmaking"`
	Ranking     Ranking     `yaml:"ranking"`
	Server      Server      `yaml:"server"`
	// Worker is optional: when absent the server runs without an embedded
	// worker pool and jobs stay pending.
	Worker *Worker `yaml:"worker"`
}

// Game describes the shape of the underlying game.
type Game struct {
	MinPlayers int `yaml:"min_players"`
	MaxPlayers int `yaml:"max_players"`
	// Symmetric documents whether the game favors player order. It is
	// informational and does not influence matchmaking.
	Symmetric bool `yaml:"symmetric"`
}

// Matchmaking tunes how the matchmaker picks participants.
type Matchmaking struct {
	AllowSameBots        bool    `yaml:"allow_same_bots"`
	MinMatches           int     `yaml:"min_matches"`
	MinMatchesPreference float64 `yaml:"min_matches_preference"`
	IntervalSeconds      int     `yaml:"interval_seconds"`
}

// Interval returns the matchmaking tick interval.
func (m Matchmaking) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// Ranking selects the rating algorithm. The set of algorithms is closed;
// unknown values are rejected at load time.
type Ranking struct {
	Algorithm string `yaml:"algorithm"`
}

// AlgorithmWengLin is the only rating algorithm implemented today.
const AlgorithmWengLin = "weng_lin"

// Server holds the HTTP server settings.
type Server struct {
	Port int `yaml:"port"`
}

// Worker configures the embedded worker pool.
type Worker struct {
	Threads           int        `yaml:"threads"`
	DirBots           string     `yaml:"dir_bots"`
	CmdPlayMatch      string     `yaml:"cmd_play_match"`
	JobTimeoutSeconds int        `yaml:"job_timeout_seconds"`
	Languages         []Language `yaml:"languages"`
}

// JobTimeout returns the wall-clock timeout applied to every build and match
// subprocess.
func (w Worker) JobTimeout() time.Duration {
	return time.Duration(w.JobTimeoutSeconds) * time.Second
}

// Language returns the configuration for a language by name.
func (w Worker) Language(name string) (Language, bool) {
	for _, l := range w.Languages {
		if l.Name == name {
			return l, true
		}
	}
	return Language{}, false
}

// Language holds the build and run command templates for one supported
// language. Templates may reference {dir} (the bot's working directory) and
// {source} (the materialized source file inside it).
type Language struct {
	Name     string `yaml:"name"`
	CmdBuild string `yaml:"cmd_build"`
	CmdRun   string `yaml:"cmd_run"`
}
