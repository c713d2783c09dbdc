package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	defaultDebounceInterval = 30 * time.Second
	defaultSyncPeriod       = 15 * time.Second
	defaultListenAddr       = ":8080"
)

// Instance holds the static parameters of one tracked lending market.
// Immutable after load.
type Instance struct {
	Name             string
	Market           common.Address
	DebounceInterval time.Duration
	BaseSymbol       string
	BaseAddress      common.Address
	BaseDecimals     uint8
	BasePriceFeed    common.Address
	// ReferenceSymbol is an optional exchange ticker (e.g. ETHUSDT) used for
	// the off-chain price sanity check. Empty disables the check.
	ReferenceSymbol string
}

// Config is the full process configuration: the instance registry plus
// scheduler and HTTP settings.
type Config struct {
	Instances  []Instance
	SyncPeriod time.Duration
	ListenAddr string
	JournalDir string
	// RunSetup is set when the -setup flag was passed; the process should
	// launch the configuration wizard instead of syncing.
	RunSetup bool
}

// InstanceTmp is the raw yaml shape of one registry entry; the setup wizard
// marshals it back out.
type InstanceTmp struct {
	Name            string        `yaml:"name"`
	Market          string        `yaml:"market"`
	Debounce        time.Duration `yaml:"debounce,omitempty"`
	BaseSymbol      string        `yaml:"base_symbol"`
	BaseAddress     string        `yaml:"base_address"`
	BaseDecimals    uint8         `yaml:"base_decimals"`
	BasePriceFeed   string        `yaml:"base_price_feed"`
	ReferenceSymbol string        `yaml:"reference_symbol,omitempty"`
}

// ConfigTmp is the raw yaml shape of the registry document.
type ConfigTmp struct {
	Instances  []InstanceTmp `yaml:"instances"`
	SyncPeriod time.Duration `yaml:"sync_period,omitempty"`
	ListenAddr string        `yaml:"listen_addr,omitempty"`
	JournalDir string        `yaml:"journal_dir,omitempty"`
}

// Get parses flags and loads the yaml registry. A missing -config path is an
// error: the monitor has nothing to track without at least one instance.
func Get() (Config, error) {
	path := flag.String("config", "instances.yml", "path to yaml instance registry")
	setup := flag.Bool("setup", false, "launch the configuration wizard")
	flag.Parse()

	if *setup {
		return Config{RunSetup: true}, nil
	}
	return getYaml(*path)
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(f)
}

// Parse decodes and validates a yaml registry document.
func Parse(raw []byte) (Config, error) {
	var tmp ConfigTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, err
	}
	if len(tmp.Instances) == 0 {
		return Config{}, fmt.Errorf("no instances configured")
	}

	config := Config{
		SyncPeriod: tmp.SyncPeriod,
		ListenAddr: tmp.ListenAddr,
		JournalDir: tmp.JournalDir,
	}
	if config.SyncPeriod <= 0 {
		config.SyncPeriod = defaultSyncPeriod
	}
	if config.ListenAddr == "" {
		config.ListenAddr = defaultListenAddr
	}

	seen := make(map[string]struct{}, len(tmp.Instances))
	for _, it := range tmp.Instances {
		inst, err := parseInstance(it)
		if err != nil {
			return Config{}, err
		}
		if _, ok := seen[inst.Name]; ok {
			return Config{}, fmt.Errorf("duplicate instance name %q in registry", inst.Name)
		}
		seen[inst.Name] = struct{}{}
		config.Instances = append(config.Instances, inst)
	}
	return config, nil
}

func parseInstance(it InstanceTmp) (Instance, error) {
	if it.Name == "" {
		return Instance{}, fmt.Errorf("instance without a name in registry")
	}

	market, err := parseAddress(it.Market)
	if err != nil {
		return Instance{}, fmt.Errorf("instance %s: incorrect 'market' param: %v", it.Name, err)
	}
	baseAddr, err := parseAddress(it.BaseAddress)
	if err != nil {
		return Instance{}, fmt.Errorf("instance %s: incorrect 'base_address' param: %v", it.Name, err)
	}
	baseFeed, err := parseAddress(it.BasePriceFeed)
	if err != nil {
		return Instance{}, fmt.Errorf("instance %s: incorrect 'base_price_feed' param: %v", it.Name, err)
	}
	if it.BaseSymbol == "" {
		return Instance{}, fmt.Errorf("instance %s: 'base_symbol' param is required", it.Name)
	}

	debounce := it.Debounce
	if debounce <= 0 {
		debounce = defaultDebounceInterval
	}

	return Instance{
		Name:             it.Name,
		Market:           market,
		DebounceInterval: debounce,
		BaseSymbol:       it.BaseSymbol,
		BaseAddress:      baseAddr,
		BaseDecimals:     it.BaseDecimals,
		BasePriceFeed:    baseFeed,
		ReferenceSymbol:  it.ReferenceSymbol,
	}, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q is not a hex address", s)
	}
	return common.HexToAddress(s), nil
}
