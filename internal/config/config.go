// Package config manages the closed configuration set for the PDF
// understanding pipeline. Configuration is stored as a single JSON file
// under the user's config directory: ~/.config/docpipeline/config.json
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/docpipeline/core/internal/docerrors"
	"github.com/docpipeline/core/internal/logger"
)

const (
	// DefaultConfigFileName is the default configuration file name.
	DefaultConfigFileName = "config.json"
	// AppName is the application name used for the config directory.
	AppName = "docpipeline"
	// EnvDevice overrides Config.Device when set.
	EnvDevice = "DOCPIPELINE_DEVICE"
	// EnvCascadeMode overrides Config.CascadeMode when set.
	EnvCascadeMode = "DOCPIPELINE_CASCADE_MODE"

	minLayoutSize = 224
	maxLayoutSize = 1280
)

// CascadeMode selects the layout routing strategy (C6).
type CascadeMode string

const (
	CascadeAuto         CascadeMode = "auto"
	CascadeMLAlways     CascadeMode = "ml_always"
	CascadeHeuristic    CascadeMode = "heuristic_always"
	CascadeConservative CascadeMode = "conservative"
)

func validCascadeMode(m CascadeMode) bool {
	switch m {
	case CascadeAuto, CascadeMLAlways, CascadeHeuristic, CascadeConservative:
		return true
	default:
		return false
	}
}

// Device selects the inference execution provider (C4).
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

func validDevice(d Device) bool {
	switch d {
	case DeviceCPU, DeviceCUDA:
		return true
	default:
		return false
	}
}

// LayoutResolution selects the layout model's input size (C3/C5),
// mirroring the reference implementation's Full/Medium/Fast/Custom(n)
// resolution presets.
type LayoutResolution struct {
	Size int
	name string // "full", "medium", "fast", or "" for custom
}

var (
	LayoutFull   = LayoutResolution{Size: 640, name: "full"}
	LayoutMedium = LayoutResolution{Size: 512, name: "medium"}
	LayoutFast   = LayoutResolution{Size: 448, name: "fast"}
)

// CustomLayoutResolution builds a custom resolution, validating it falls
// within [224, 1280] per the reference RT-DETR preprocessing contract.
func CustomLayoutResolution(size int) (LayoutResolution, error) {
	if size < minLayoutSize || size > maxLayoutSize {
		return LayoutResolution{}, docerrors.Config(fmt.Sprintf(
			"layout resolution %d out of range [%d, %d]", size, minLayoutSize, maxLayoutSize))
	}
	return LayoutResolution{Size: size}, nil
}

// String renders the resolution the way the reference implementation's
// Display impl does: named presets as "full (640x640)", custom as
// "custom (320x320)".
func (r LayoutResolution) String() string {
	if r.name != "" {
		return fmt.Sprintf("%s (%dx%d)", r.name, r.Size, r.Size)
	}
	return fmt.Sprintf("custom (%dx%d)", r.Size, r.Size)
}

// ExpectedSpeedup estimates inference speedup relative to LayoutFull,
// quadratic in the resolution ratio.
func (r LayoutResolution) ExpectedSpeedup() float64 {
	ratio := float64(LayoutFull.Size) / float64(r.Size)
	return ratio * ratio
}

// ParseLayoutResolution accepts named presets ("full", "medium", "fast",
// case-insensitive), exact size strings ("640"), "NxN" strings, or falls
// through to a validated custom resolution.
func ParseLayoutResolution(s string) (LayoutResolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full":
		return LayoutFull, nil
	case "medium":
		return LayoutMedium, nil
	case "fast":
		return LayoutFast, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		return CustomLayoutResolution(n)
	}

	if idx := strings.IndexAny(s, "xX"); idx > 0 {
		n, err := strconv.Atoi(s[:idx])
		if err == nil {
			return CustomLayoutResolution(n)
		}
	}

	return LayoutResolution{}, docerrors.Config("unrecognized layout resolution: " + s)
}

// Config is the closed configuration set (§6): every field here maps
// 1:1 onto a tunable named by the specification. No other knobs exist.
type Config struct {
	LayoutResolution      LayoutResolution `json:"-"`
	LayoutResolutionLabel string           `json:"layout_resolution"`
	CascadeMode           CascadeMode      `json:"cascade_mode"`
	OCREnabled            bool             `json:"ocr_enabled"`
	TableStructureEnabled bool             `json:"table_structure_enabled"`
	CodeFormulaEnabled    bool             `json:"code_formula_enabled"`
	Device                Device           `json:"device"`
}

// MarshalJSON stamps LayoutResolutionLabel from LayoutResolution before
// delegating to the default encoding, so the on-disk format round-trips
// through the string form rather than the unexported preset name.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.LayoutResolutionLabel = layoutResolutionToken(c.LayoutResolution)
	return json.Marshal(a)
}

// UnmarshalJSON parses LayoutResolutionLabel back into LayoutResolution.
func (c *Config) UnmarshalJSON(data []byte) error {
	type alias Config
	a := (*alias)(c)
	if err := json.Unmarshal(data, a); err != nil {
		return err
	}
	res, err := ParseLayoutResolution(c.LayoutResolutionLabel)
	if err != nil {
		res = LayoutFull
	}
	c.LayoutResolution = res
	return nil
}

func layoutResolutionToken(r LayoutResolution) string {
	if r.name != "" {
		return r.name
	}
	return strconv.Itoa(r.Size)
}

func defaultConfig() *Config {
	return &Config{
		LayoutResolution:      LayoutFull,
		LayoutResolutionLabel: "full",
		CascadeMode:           CascadeAuto,
		OCREnabled:            true,
		TableStructureEnabled: true,
		CodeFormulaEnabled:    true,
		Device:                DeviceCPU,
	}
}

// Validate checks the closed configuration set's invariants, returning a
// ConfigError describing the first violation found.
func (c *Config) Validate() error {
	if _, err := CustomLayoutResolution(c.LayoutResolution.Size); err != nil {
		return err
	}
	if !validCascadeMode(c.CascadeMode) {
		return docerrors.Config("unrecognized cascade mode: " + string(c.CascadeMode))
	}
	if !validDevice(c.Device) {
		return docerrors.Config("unrecognized device: " + string(c.Device))
	}
	return nil
}

// Manager owns the in-memory configuration and its on-disk persistence.
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

// GetConfigDir returns the config directory (exported for external use).
func GetConfigDir() (string, error) {
	return getConfigDir()
}

// NewManager creates a Manager backed by configPath, or the default
// location under the user config directory when configPath is empty.
// Existing configuration is loaded immediately; a missing file is not
// an error — defaults are used and persisted on the next Save.
func NewManager(configPath string) (*Manager, error) {
	finalPath, err := resolveConfigPath(configPath)
	if err != nil {
		logger.Error("failed to resolve config path", err)
		return nil, docerrors.Config("failed to resolve config path: " + err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o700); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", filepath.Dir(finalPath)))
		return nil, docerrors.IO(err)
	}

	logger.Info("config manager initialized", logger.String("configPath", finalPath))
	m := &Manager{configPath: finalPath, config: defaultConfig()}
	_ = m.Load()
	applyEnvOverrides(m.config)
	return m, nil
}

func resolveConfigPath(configPath string) (string, error) {
	if configPath == "" {
		dir, err := getConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, DefaultConfigFileName), nil
	}
	if filepath.IsAbs(configPath) {
		return configPath, nil
	}
	dir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(configPath)), nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv(EnvDevice); v != "" {
		if validDevice(Device(v)) {
			c.Device = Device(v)
		}
	}
	if v := os.Getenv(EnvCascadeMode); v != "" {
		if validCascadeMode(CascadeMode(v)) {
			c.CascadeMode = CascadeMode(v)
		}
	}
}

// Load reads configuration from disk, falling back to defaults when the
// file is absent or malformed.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger.Debug("loading configuration", logger.String("path", m.configPath))
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = defaultConfig()
			return nil
		}
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return docerrors.IO(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
		m.config = defaultConfig()
		return nil
	}
	if err := cfg.Validate(); err != nil {
		logger.Warn("config file failed validation, using defaults", logger.String("path", m.configPath), logger.Err(err))
		m.config = defaultConfig()
		return nil
	}

	logger.Info("configuration loaded", logger.String("path", m.configPath),
		logger.String("cascadeMode", string(cfg.CascadeMode)), logger.String("device", string(cfg.Device)))
	m.config = cfg
	return nil
}

// Save persists the current configuration atomically (write to a temp
// file in the same directory, then rename).
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := *m.config
	m.mu.RUnlock()
	return m.saveConfig(&cfg)
}

func (m *Manager) saveConfig(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return docerrors.IO(err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		logger.Error("failed to marshal config", err)
		return docerrors.Config("failed to marshal config: " + err.Error())
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return docerrors.IO(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return docerrors.IO(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return docerrors.IO(err)
	}
	if err := os.Rename(tmpName, m.configPath); err != nil {
		os.Remove(tmpName)
		return docerrors.IO(err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// Update replaces the configuration wholesale, validating and persisting
// it.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return m.Save()
}

// ConfigPath returns the path to the config file on disk.
func (m *Manager) ConfigPath() string {
	return m.configPath
}
