package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// KernelConfig holds the kernel's own settings, persisted in
// ~/.zeroos/kernel.yaml, grounded on the teacher's wing.yaml: same
// load/save shape, same optional fields with YAML defaults, carried
// forward verbatim where the concern still applies (connection mode,
// ICE servers, direct-mode transport) and replaced where it doesn't
// (no ACLs, no org/roost identity — a capability kernel does not do
// email-based access control).
type KernelConfig struct {
	KernelID string `yaml:"kernel_id"`
	Label    string `yaml:"label,omitempty"` // display name shown in kernelctl

	// Scheduling and resource governance (spec §4.H quota levels).
	QuotaLevel  string `yaml:"quota_level,omitempty"`  // "strict" (default), "standard", "trusted"
	FuelQuantum uint64 `yaml:"fuel_quantum,omitempty"` // fuel granted per scheduling tick

	// Capability/endpoint bookkeeping (spec §4.B/§4.C soft caps).
	EndpointSoftCap int `yaml:"endpoint_soft_cap,omitempty"`

	// Audit/replay (spec §4.F).
	HashAlgorithm string `yaml:"hash_algorithm,omitempty"` // "BLAKE2b-256", fixed but recorded for forward compat
	SnapshotPath  string `yaml:"snapshot_path,omitempty"`  // sqlite file for persisted commit log

	Debug bool `yaml:"debug,omitempty"`

	// Host selection: "native" (in-process interpreter) or "browser"
	// (sandboxed worker threads).
	Host              string `yaml:"host,omitempty"`
	NativeBinDir      string `yaml:"native_bin_dir,omitempty"`      // watched by nativehal.BinaryStore
	DebugSocket       string `yaml:"debug_socket,omitempty"`        // unix socket for the introspection transport
	MailboxWaitMs     int    `yaml:"mailbox_wait_ms,omitempty"`     // defaults to 10; not read by browserhal, which uses its WaitDeadline constant
	BrowserListenAddr string `yaml:"browser_listen_addr,omitempty"` // tcp addr workers dial in on, relay mode only

	// Connection mode mirrors the teacher's wing.yaml connection_mode. It
	// is stored and defaulted here; nothing in browserhal or the daemon
	// reads it to choose a worker Link.
	ConnectionMode string `yaml:"connection_mode,omitempty"` // "relay" (default), "p2p", "p2p_only", "direct"

	// P2P / Direct mode settings, unchanged shape from the teacher.
	ICEServers []ICEServer `yaml:"ice_servers,omitempty"`
	DirectPort int         `yaml:"direct_port,omitempty"`
	DirectTLS  bool        `yaml:"direct_tls,omitempty"`
}

// ICEServer is a STUN/TURN server configuration for WebRTC P2P connections,
// fed straight into browserhal.NewICEServers.
type ICEServer struct {
	URLs       []string `yaml:"urls" json:"urls"`
	Username   string   `yaml:"username,omitempty" json:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty" json:"credential,omitempty"`
}

// LoadKernelConfig reads kernel.yaml from dir. If the file doesn't exist,
// it returns a zero-value config with defaults filled in (no error).
func LoadKernelConfig(dir string) (*KernelConfig, error) {
	cfg := &KernelConfig{}
	path := filepath.Join(dir, "kernel.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(cfg, dir)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg, dir)
	return cfg, nil
}

// SaveKernelConfig writes kernel.yaml to dir.
func SaveKernelConfig(dir string, cfg *KernelConfig) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "kernel.yaml"), data, 0644)
}

// applyDefaults fills in every field the kernel needs a concrete value
// for before boot, including the three path-shaped settings
// (DebugSocket, NativeBinDir, SnapshotPath) that have no sensible
// zero-dir default and so are rooted under dir instead.
func applyDefaults(cfg *KernelConfig, dir string) {
	if cfg.QuotaLevel == "" {
		cfg.QuotaLevel = "strict"
	}
	if cfg.FuelQuantum == 0 {
		cfg.FuelQuantum = 100_000_000
	}
	if cfg.EndpointSoftCap == 0 {
		cfg.EndpointSoftCap = 256
	}
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = "BLAKE2b-256"
	}
	if cfg.Host == "" {
		cfg.Host = "native"
	}
	if cfg.MailboxWaitMs == 0 {
		cfg.MailboxWaitMs = 10
	}
	if cfg.ConnectionMode == "" {
		cfg.ConnectionMode = "relay"
	}
	if cfg.DebugSocket == "" {
		cfg.DebugSocket = filepath.Join(dir, "kernel.sock")
	}
	if cfg.NativeBinDir == "" {
		cfg.NativeBinDir = filepath.Join(dir, "bin")
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = filepath.Join(dir, "kernel.db")
	}
	if cfg.BrowserListenAddr == "" {
		cfg.BrowserListenAddr = "127.0.0.1:7777"
	}
}
