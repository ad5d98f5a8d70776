package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
environment: test
universe:
  - symbol: SPY
    name: S&P 500 ETF
  - symbol: QQQ
    name: Nasdaq 100 ETF
series:
  host: localhost
  port: 9000
  database: marketpulse
consolidation:
  step_timeout: 1.25s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Universe) != 2 || c.Universe[0].Symbol != "SPY" {
		t.Fatalf("universe = %+v", c.Universe)
	}
	if c.Consolidation.StepTimeout != 1250*time.Millisecond {
		t.Fatalf("step timeout = %v", c.Consolidation.StepTimeout)
	}
	// defaults fill the rest
	if c.Consolidation.MinObservations != 180 {
		t.Fatalf("min observations = %d", c.Consolidation.MinObservations)
	}
	if c.Consolidation.FastTTL != time.Minute || c.Consolidation.StandardTTL != 15*time.Minute {
		t.Fatalf("cache ttls = %v/%v", c.Consolidation.FastTTL, c.Consolidation.StandardTTL)
	}
}

func TestLoadRejectsEmptyUniverse(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: test\nseries:\n  host: localhost\n"))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsMissingSeriesHost(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: test\nuniverse:\n  - symbol: SPY\n"))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("UNIVERSE", "IWM,DIA")
	c, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Universe) != 2 || c.Universe[0].Symbol != "IWM" || c.Universe[1].Symbol != "DIA" {
		t.Fatalf("universe = %+v", c.Universe)
	}
}
