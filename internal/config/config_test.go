package config

import "testing"

func TestFlagsApply_OverlaysOnlySetFields(t *testing.T) {
	cfg := Defaults()
	f := &Flags{
		MineInterval:     500,
		GenerateInterval: -1, // sentinel: not set
		CohortIndex:      -1, // sentinel: not set
		LogLevel:         "debug",
	}

	merged := f.Apply(cfg)

	if merged.MineInterval != 500 {
		t.Errorf("MineInterval = %d, want 500", merged.MineInterval)
	}
	if merged.CohortIndex != cfg.CohortIndex {
		t.Errorf("CohortIndex should be untouched by a sentinel value, got %d", merged.CohortIndex)
	}
	if merged.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", merged.LogLevel)
	}
	if merged.GenerateInterval != cfg.GenerateInterval {
		t.Errorf("GenerateInterval should be unaffected, got %d", merged.GenerateInterval)
	}
}

func TestFlagsApply_Peers(t *testing.T) {
	cfg := Defaults()
	f := &Flags{CohortIndex: -1, Peers: "/ip4/1.2.3.4/tcp/9000,/ip4/5.6.7.8/tcp/9001"}

	merged := f.Apply(cfg)
	if len(merged.Peers) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(merged.Peers))
	}
}

func TestDefaults_SaneBaseline(t *testing.T) {
	cfg := Defaults()
	if cfg.CohortIndex != -1 {
		t.Errorf("default CohortIndex should be -1 (derive from port), got %d", cfg.CohortIndex)
	}
	if cfg.GossipWorkers <= 0 || cfg.InboundCap <= 0 {
		t.Error("gossip pool size and inbound capacity must be positive")
	}
}
