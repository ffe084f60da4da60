package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"blockdreamer/types"
)

type SchedulerConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CycleDeadline  time.Duration `mapstructure:"cycle_deadline"`
	RequestOffset  time.Duration `mapstructure:"request_offset"` // delay after the slot boundary
	MaxParallel    int           `mapstructure:"max_parallel"`   // 0 means one request per node at once
	ReportQueue    int           `mapstructure:"report_queue"`
}

type DistanceConfig struct {
	Enabled bool               `mapstructure:"enabled"`
	Weights map[string]float64 `mapstructure:"weights"` // feature -> weight, missing features keep defaults
}

// PostEndpoint receives every slot's blocks, typically a blockgauge instance
type PostEndpoint struct {
	Name              string `mapstructure:"name"`
	URL               string `mapstructure:"url"`
	ResultsDir        string `mapstructure:"results_dir"`         // save responses per label when set
	ExtraData         bool   `mapstructure:"extra_data"`          // send node names and labels along with blocks
	CompareRewards    bool   `mapstructure:"compare_rewards"`     // log the most profitable block
	RequireAll        bool   `mapstructure:"require_all"`         // only post when every node returned a block
	RequireSameParent bool   `mapstructure:"require_same_parent"` // only post when all blocks share a parent
	Compress          bool   `mapstructure:"compress"`            // zstd compress saved responses
}

type Config struct {
	Network        string `mapstructure:"network"`
	CanonicalBN    string `mapstructure:"canonical_bn"`
	GenesisTime    uint64 `mapstructure:"genesis_time"`     // unix seconds, fetched from canonical_bn when 0
	SecondsPerSlot uint64 `mapstructure:"seconds_per_slot"` // fetched from canonical_bn when 0

	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Distance      DistanceConfig      `mapstructure:"distance"`
	Nodes         types.NodeEndpoints `mapstructure:"-"` // decoded through nodeConfig
	PostEndpoints []*PostEndpoint     `mapstructure:"-"` // decoded through postEndpointConfig
	Clickhouse    struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"clickhouse"`
}

// nodeConfig mirrors types.NodeEndpoint so that `enabled` can default to true
type nodeConfig struct {
	Name                   string  `mapstructure:"name"`
	Label                  string  `mapstructure:"label"`
	URL                    string  `mapstructure:"url"`
	AuthToken              string  `mapstructure:"auth_token"`
	SkipRandaoVerification bool    `mapstructure:"skip_randao_verification"`
	V3                     bool    `mapstructure:"v3"`
	Blinded                bool    `mapstructure:"blinded"`
	Enabled                *bool   `mapstructure:"enabled"`
	BuilderBoostFactor     *uint64 `mapstructure:"builder_boost_factor"`
	Graffiti               string  `mapstructure:"graffiti"`
}

// postEndpointConfig mirrors PostEndpoint so that `extra_data` can default to true
type postEndpointConfig struct {
	Name              string `mapstructure:"name"`
	URL               string `mapstructure:"url"`
	ResultsDir        string `mapstructure:"results_dir"`
	ExtraData         *bool  `mapstructure:"extra_data"`
	CompareRewards    bool   `mapstructure:"compare_rewards"`
	RequireAll        bool   `mapstructure:"require_all"`
	RequireSameParent bool   `mapstructure:"require_same_parent"`
	Compress          bool   `mapstructure:"compress"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("network", "mainnet")
	v.SetDefault("scheduler.request_timeout", DEFAULT_REQUEST_TIMEOUT)
	v.SetDefault("scheduler.cycle_deadline", DEFAULT_CYCLE_DEADLINE)
	v.SetDefault("scheduler.request_offset", DEFAULT_REQUEST_OFFSET)
	v.SetDefault("scheduler.max_parallel", 0)
	v.SetDefault("scheduler.report_queue", DEFAULT_REPORT_QUEUE_SIZE)
	v.SetDefault("distance.enabled", true)
}

// Load reads the dreamer config from v (the global viper instance when nil) and validates it.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var nodes []nodeConfig
	if err := v.UnmarshalKey("nodes", &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse nodes: %w", err)
	}
	cfg.Nodes = make(types.NodeEndpoints, 0, len(nodes))
	for _, n := range nodes {
		enabled := true
		if n.Enabled != nil {
			enabled = *n.Enabled
		}
		cfg.Nodes = append(cfg.Nodes, &types.NodeEndpoint{
			Name:                   n.Name,
			Label:                  n.Label,
			URL:                    n.URL,
			AuthToken:              n.AuthToken,
			SkipRandaoVerification: n.SkipRandaoVerification,
			V3:                     n.V3,
			Blinded:                n.Blinded,
			Enabled:                enabled,
			BuilderBoostFactor:     n.BuilderBoostFactor,
			Graffiti:               n.Graffiti,
		})
	}

	var endpoints []postEndpointConfig
	if err := v.UnmarshalKey("post_endpoints", &endpoints); err != nil {
		return nil, fmt.Errorf("failed to parse post_endpoints: %w", err)
	}
	cfg.PostEndpoints = make([]*PostEndpoint, 0, len(endpoints))
	for _, p := range endpoints {
		extraData := true
		if p.ExtraData != nil {
			extraData = *p.ExtraData
		}
		cfg.PostEndpoints = append(cfg.PostEndpoints, &PostEndpoint{
			Name:              p.Name,
			URL:               p.URL,
			ResultsDir:        p.ResultsDir,
			ExtraData:         extraData,
			CompareRewards:    p.CompareRewards,
			RequireAll:        p.RequireAll,
			RequireSameParent: p.RequireSameParent,
			Compress:          p.Compress,
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnabledNodes returns the nodes to poll, in configured order.
func (c *Config) EnabledNodes() types.NodeEndpoints {
	res := make(types.NodeEndpoints, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Enabled {
			res = append(res, n)
		}
	}
	return res
}

func (c *Config) Validate() error {
	var errs []error

	if len(c.EnabledNodes()) == 0 {
		errs = append(errs, errors.New("no enabled nodes configured"))
	}
	seen := make(map[string]bool, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.Name == "" {
			errs = append(errs, fmt.Errorf("node %d: missing name", i))
		} else if seen[n.Name] {
			errs = append(errs, fmt.Errorf("node %s: duplicate name", n.Name))
		}
		seen[n.Name] = true
		if err := validateUrl(n.URL); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", n.Name, err))
		}
		if n.Blinded && n.V3 {
			errs = append(errs, fmt.Errorf("node %s: blinded and v3 are exclusive", n.Name))
		}
		if n.BuilderBoostFactor != nil && !n.V3 {
			errs = append(errs, fmt.Errorf("node %s: builder_boost_factor requires v3", n.Name))
		}
		if len(n.Graffiti) > 32 {
			errs = append(errs, fmt.Errorf("node %s: graffiti longer than 32 bytes", n.Name))
		}
	}

	for i, p := range c.PostEndpoints {
		if err := validateUrl(p.URL); err != nil {
			errs = append(errs, fmt.Errorf("post endpoint %d (%s): %w", i, p.Name, err))
		}
	}

	if c.GenesisTime == 0 || c.SecondsPerSlot == 0 {
		if err := validateUrl(c.CanonicalBN); err != nil {
			errs = append(errs, fmt.Errorf("canonical_bn required without genesis_time and seconds_per_slot: %w", err))
		}
	}

	s := c.Scheduler
	if s.RequestTimeout <= 0 {
		errs = append(errs, errors.New("scheduler.request_timeout must be positive"))
	}
	if s.CycleDeadline <= 0 {
		errs = append(errs, errors.New("scheduler.cycle_deadline must be positive"))
	}
	if s.RequestTimeout > s.CycleDeadline {
		errs = append(errs, errors.New("scheduler.request_timeout must not exceed scheduler.cycle_deadline"))
	}
	if s.RequestOffset < 0 || s.MaxParallel < 0 || s.ReportQueue < 0 {
		errs = append(errs, errors.New("scheduler.request_offset, max_parallel and report_queue must not be negative"))
	}

	for f, w := range c.Distance.Weights {
		if w < 0 {
			errs = append(errs, fmt.Errorf("distance.weights.%s must not be negative", f))
		}
	}

	return errors.Join(errs...)
}

func validateUrl(raw string) error {
	if raw == "" {
		return errors.New("missing url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	return nil
}
