package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

const testConfig = `
network: holesky
canonical_bn: http://localhost:5052
scheduler:
  request_timeout: 2s
  max_parallel: 2
distance:
  weights:
    attestations: 4
nodes:
  - name: lh
    label: lighthouse
    url: http://localhost:5052
    skip_randao_verification: true
    blinded: true
  - name: teku
    label: teku
    url: https://teku.local:5051
    v3: true
    builder_boost_factor: 0
    graffiti: dreamer
  - name: off
    label: prysm
    url: http://localhost:3500
    enabled: false
post_endpoints:
  - name: gauge
    url: http://localhost:8000/rewards
    extra_data: true
    compress: true
  - name: defaults
    url: http://localhost:8001/rewards
    require_all: true
  - name: bare
    url: http://localhost:8002/rewards
    extra_data: false
`

func loadTestConfig(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	return Load(v)
}

func TestLoad(t *testing.T) {
	cfg, err := loadTestConfig(t, testConfig)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Network != "holesky" || cfg.CanonicalBN != "http://localhost:5052" {
		t.Errorf("unexpected network config: %+v", cfg)
	}
	s := cfg.Scheduler
	if s.RequestTimeout != 2*time.Second || s.CycleDeadline != DEFAULT_CYCLE_DEADLINE || s.MaxParallel != 2 || s.ReportQueue != DEFAULT_REPORT_QUEUE_SIZE {
		t.Errorf("unexpected scheduler config: %+v", s)
	}
	if !cfg.Distance.Enabled || cfg.Distance.Weights["attestations"] != 4 {
		t.Errorf("unexpected distance config: %+v", cfg.Distance)
	}

	if len(cfg.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(cfg.Nodes))
	}
	enabled := cfg.EnabledNodes()
	if names := strings.Join(enabled.Names(), ","); names != "lh,teku" {
		t.Errorf("unexpected enabled nodes: %s", names)
	}
	teku := cfg.Nodes[1]
	if !teku.V3 || teku.BuilderBoostFactor == nil || *teku.BuilderBoostFactor != 0 || teku.Graffiti != "dreamer" {
		t.Errorf("unexpected teku node: %+v", teku)
	}
	if !cfg.Nodes[0].SkipRandaoVerification || cfg.Nodes[0].BuilderBoostFactor != nil {
		t.Errorf("unexpected lighthouse node: %+v", cfg.Nodes[0])
	}

	if !cfg.Nodes[0].Blinded || teku.Blinded {
		t.Errorf("expected only lh to request blinded blocks")
	}

	if len(cfg.PostEndpoints) != 3 {
		t.Fatalf("expected 3 post endpoints, got %d", len(cfg.PostEndpoints))
	}
	if p := cfg.PostEndpoints[0]; !p.ExtraData || !p.Compress || p.URL != "http://localhost:8000/rewards" {
		t.Errorf("unexpected gauge endpoint: %+v", p)
	}
	// extra_data defaults to true when omitted
	if p := cfg.PostEndpoints[1]; !p.ExtraData || !p.RequireAll || p.Compress {
		t.Errorf("unexpected defaults endpoint: %+v", p)
	}
	if p := cfg.PostEndpoints[2]; p.ExtraData || p.Name != "bare" {
		t.Errorf("unexpected bare endpoint: %+v", p)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	content := `
genesis_time: 1606824023
seconds_per_slot: 12
scheduler:
  request_timeout: 10s
  cycle_deadline: 5s
distance:
  weights:
    graffiti: -1
nodes:
  - name: a
    url: localhost:5052
  - name: a
    url: http://localhost:5053
    builder_boost_factor: 100
    graffiti: this graffiti is way longer than thirty two bytes
  - name: c
    url: http://localhost:5054
    v3: true
    blinded: true
`
	_, err := loadTestConfig(t, content)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"scheme must be http or https",
		"duplicate name",
		"builder_boost_factor requires v3",
		"blinded and v3 are exclusive",
		"graffiti longer than 32 bytes",
		"request_timeout must not exceed",
		"distance.weights.graffiti",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error: %v", want, err)
		}
	}
	if strings.Contains(err.Error(), "canonical_bn") {
		t.Errorf("canonical_bn is optional with genesis_time and seconds_per_slot: %v", err)
	}
}

func TestValidateRequiresNodesAndCanonical(t *testing.T) {
	cfg := &Config{Scheduler: SchedulerConfig{RequestTimeout: time.Second, CycleDeadline: time.Second}}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "no enabled nodes") || !strings.Contains(err.Error(), "canonical_bn") {
		t.Errorf("unexpected error: %v", err)
	}
}
