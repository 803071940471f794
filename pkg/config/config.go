// Package config holds the suil server configuration table (spec.md §6).
// Lua/JSON config loading is an explicit out-of-scope collaborator, so
// values are populated from the environment the same way docker/model-runner's
// main.go reads MODEL_RUNNER_SOCK, MODELS_PATH, DISABLE_METRICS, and DEBUG.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
)

// Config mirrors the option table in spec.md §6 exactly.
type Config struct {
	// ConnectionTimeout is the per-call socket deadline for header/body reads.
	ConnectionTimeout time.Duration
	// DiskOffload enables spilling oversized bodies to disk.
	DiskOffload bool
	// DiskOffloadMin is the byte threshold at or above which a body is offloaded.
	DiskOffloadMin int64
	// MaxBodyLen is the hard reject threshold for request bodies.
	MaxBodyLen int64
	// SendChunk is the maximum number of bytes written per socket send call.
	SendChunk int64
	// KeepAliveTime is the value advertised in the Keep-Alive header.
	KeepAliveTime time.Duration
	// HSTSEnable is the Strict-Transport-Security max-age; 0 disables it.
	HSTSEnable time.Duration
	// ServerName is the value of the Server response header.
	ServerName string
	// OffloadPath is the mkstemp directory used for disk-offloaded bodies.
	OffloadPath string
	// ListenAddr is the host:port the server binds to.
	ListenAddr string
	// Workers is the number of worker processes the supervisor forks.
	Workers int
}

// Version is the library version reported by rpc_Version.
const Version = "0.1.0"

// Default returns the configuration defaults from spec.md §6.
func Default() Config {
	return Config{
		ConnectionTimeout: 5000 * time.Millisecond,
		DiskOffload:       false,
		DiskOffloadMin:    2048,
		MaxBodyLen:        35648,
		SendChunk:         35_648_000,
		KeepAliveTime:     3600 * time.Second,
		HSTSEnable:        3600 * time.Second,
		ServerName:        "suil/" + Version,
		OffloadPath:       "./.body",
		ListenAddr:        ":7100",
		Workers:           1,
	}
}

// FromEnv overlays environment variables onto the defaults, matching the
// SUIL_* naming convention used throughout the codebase.
func FromEnv() Config {
	c := Default()

	if v := os.Getenv("SUIL_CONNECTION_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.ConnectionTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("SUIL_DISK_OFFLOAD"); v != "" {
		c.DiskOffload = v == "1" || v == "true"
	}
	if v := os.Getenv("SUIL_DISK_OFFLOAD_MIN"); v != "" {
		if n, err := units.RAMInBytes(v); err == nil {
			c.DiskOffloadMin = n
		}
	}
	if v := os.Getenv("SUIL_MAX_BODY_LEN"); v != "" {
		if n, err := units.RAMInBytes(v); err == nil {
			c.MaxBodyLen = n
		}
	}
	if v := os.Getenv("SUIL_SEND_CHUNK"); v != "" {
		if n, err := units.RAMInBytes(v); err == nil {
			c.SendChunk = n
		}
	}
	if v := os.Getenv("SUIL_KEEP_ALIVE_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			c.KeepAliveTime = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("SUIL_HSTS_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			c.HSTSEnable = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("SUIL_SERVER_NAME"); v != "" {
		c.ServerName = v
	}
	if v := os.Getenv("SUIL_OFFLOAD_PATH"); v != "" {
		c.OffloadPath = v
	}
	if v := os.Getenv("SUIL_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("SUIL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
	return c
}

// Describe renders a human-readable summary of the size-sensitive fields
// using the same go-units formatting docker/model-runner's dependency set
// already carries, for use in startup log lines.
func (c Config) Describe() string {
	return "max_body_len=" + units.HumanSize(float64(c.MaxBodyLen)) +
		" disk_offload_min=" + units.HumanSize(float64(c.DiskOffloadMin)) +
		" send_chunk=" + units.HumanSize(float64(c.SendChunk))
}
