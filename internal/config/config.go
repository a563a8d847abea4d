// Package config handles node runtime configuration: everything that
// can vary per node without affecting consensus (listen address,
// cohort seed index, default mining/generation intervals, worker pool
// size, logging). Consensus rules (the fixed network target) live in
// internal/consensus, not here.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Config holds one node's runtime settings.
type Config struct {
	// P2P
	P2PListen string   // multiaddr the libp2p host listens on
	Peers     []string // multiaddrs of the other cohort members to dial at startup

	// Cohort identity: CohortIndex selects which of the three fixed
	// seeded keypairs this node uses. -1 means "derive it from the
	// last digit of the P2P port" (the default, per the identity
	// table).
	CohortIndex int

	// Miner/generator
	MineInterval     int // λ, microseconds between mining attempts; 0 = no sleep
	GenerateInterval int // θ, microseconds between spend attempts; 0 = no sleep
	AutoStartMiner   bool
	AutoStartGen     bool

	// Gossip worker pool
	GossipWorkers int
	InboundCap    int

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool
}

// Defaults returns the configuration a node starts with before flags
// are applied.
func Defaults() Config {
	return Config{
		P2PListen:        "/ip4/0.0.0.0/tcp/0",
		CohortIndex:      -1,
		MineInterval:     0,
		GenerateInterval: 1_000_000,
		AutoStartMiner:   false,
		AutoStartGen:     false,
		GossipWorkers:    4,
		InboundCap:       10000,
		LogLevel:         "info",
		LogJSON:          false,
	}
}

// Flags holds parsed command-line flags, applied on top of Defaults.
type Flags struct {
	P2PListen        string
	Peers            string
	CohortIndex      int
	MineInterval     int
	GenerateInterval int
	AutoStartMiner   bool
	AutoStartGen     bool
	GossipWorkers    int
	InboundCap       int
	LogLevel         string
	LogFile          string
	LogJSON          bool
}

// ParseFlags parses os.Args[1:] into a Flags value.
func ParseFlags() (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("triadnoded", flag.ContinueOnError)

	fs.StringVar(&f.P2PListen, "p2p-listen", "", "libp2p listen multiaddr")
	fs.StringVar(&f.Peers, "peers", "", "comma-separated multiaddrs of the other cohort members to dial at startup")
	fs.IntVar(&f.CohortIndex, "cohort-index", -1, "cohort seed index override (0-2); default: derive from the P2P port")
	fs.IntVar(&f.MineInterval, "mine-interval", -1, "microseconds between mining attempts (λ)")
	fs.IntVar(&f.GenerateInterval, "generate-interval", -1, "microseconds between spend attempts (θ)")
	fs.BoolVar(&f.AutoStartMiner, "mine", false, "start the miner immediately")
	fs.BoolVar(&f.AutoStartGen, "generate", false, "start the transaction generator immediately")
	fs.IntVar(&f.GossipWorkers, "gossip-workers", -1, "size of the gossip worker pool")
	fs.IntVar(&f.InboundCap, "inbound-cap", -1, "bounded inbound message channel capacity")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "log file path (in addition to stdout)")
	fs.BoolVar(&f.LogJSON, "log-json", false, "output logs as JSON")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}
	return f, nil
}

// Apply overlays the non-zero/non-sentinel fields of f onto cfg,
// returning the merged configuration.
func (f *Flags) Apply(cfg Config) Config {
	if f.P2PListen != "" {
		cfg.P2PListen = f.P2PListen
	}
	if f.Peers != "" {
		cfg.Peers = strings.Split(f.Peers, ",")
	}
	if f.CohortIndex >= 0 {
		cfg.CohortIndex = f.CohortIndex
	}
	if f.MineInterval >= 0 {
		cfg.MineInterval = f.MineInterval
	}
	if f.GenerateInterval >= 0 {
		cfg.GenerateInterval = f.GenerateInterval
	}
	if f.AutoStartMiner {
		cfg.AutoStartMiner = true
	}
	if f.AutoStartGen {
		cfg.AutoStartGen = true
	}
	if f.GossipWorkers > 0 {
		cfg.GossipWorkers = f.GossipWorkers
	}
	if f.InboundCap > 0 {
		cfg.InboundCap = f.InboundCap
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.LogFile = f.LogFile
	}
	if f.LogJSON {
		cfg.LogJSON = true
	}
	return cfg
}

// Load builds the final Config: defaults overlaid with parsed flags.
func Load() (Config, error) {
	flags, err := ParseFlags()
	if err != nil {
		return Config{}, err
	}
	return flags.Apply(Defaults()), nil
}
