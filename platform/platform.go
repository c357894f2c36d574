// Package platform reads the live platform state a module load decision
// depends on: the currently loaded TDX module version, the seamldr version
// and the CPU family-model identifier.
//
// State is captured once per operation into an immutable Snapshot so that a
// changing environment cannot produce inconsistent compatibility verdicts
// mid-operation. A Snapshot field is nil when its read failed; evaluators
// treat that as incompatible, never as a fatal condition.
package platform

import (
	"fmt"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/tdxtools/tdxmodule/version"
)

var log = logrus.WithField("service", "platform")

// Default sysfs nodes exposing the platform versions.
const (
	DefaultModuleVersionPath  = "/sys/devices/virtual/tdx/tdx_tsm/version"
	DefaultSeamldrVersionPath = "/sys/devices/virtual/tdx/seamldr/version"
)

// Snapshot is the platform state captured at one point in time. A nil field
// means the corresponding read failed and the value is unknown.
type Snapshot struct {
	// ModuleVersion is the currently loaded TDX module version
	ModuleVersion *version.Version

	// SeamldrVersion is the current seamldr version
	SeamldrVersion *version.Version

	// FamilyModel is the CPU family-model identifier, stepping masked
	FamilyModel *version.CPUFamilyModel
}

// Config holds the reader configuration.
type Config struct {
	// ModuleVersionPath is the sysfs node exposing the loaded module version
	ModuleVersionPath string

	// SeamldrVersionPath is the sysfs node exposing the seamldr version
	SeamldrVersionPath string

	// CPUID returns the raw CPUID.1.EAX value of the running CPU
	CPUID func() (uint32, error)
}

func defaultConfig() Config {
	return Config{
		ModuleVersionPath:  DefaultModuleVersionPath,
		SeamldrVersionPath: DefaultSeamldrVersionPath,
		CPUID:              cpuidLeaf1EAX,
	}
}

// Option is a functional option for configuring the Reader.
type Option func(*Config)

// WithModuleVersionPath overrides the sysfs node for the module version.
func WithModuleVersionPath(path string) Option {
	return func(c *Config) {
		c.ModuleVersionPath = path
	}
}

// WithSeamldrVersionPath overrides the sysfs node for the seamldr version.
func WithSeamldrVersionPath(path string) Option {
	return func(c *Config) {
		c.SeamldrVersionPath = path
	}
}

// WithCPUID overrides the CPUID.1.EAX source. Intended for tests and
// non-Intel development hosts.
func WithCPUID(fn func() (uint32, error)) Option {
	return func(c *Config) {
		c.CPUID = fn
	}
}

// Reader takes platform state snapshots.
type Reader struct {
	fs     afero.Fs
	config Config
}

// NewReader creates a platform state reader over the given filesystem.
//
// Example:
//
//	r := platform.NewReader(afero.NewOsFs())
//	snap := r.Snapshot()
func NewReader(fsys afero.Fs, opts ...Option) *Reader {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Reader{
		fs:     fsys,
		config: cfg,
	}
}

// Snapshot captures the current platform state. Individual read failures are
// logged and leave the corresponding field nil; they never fail the snapshot
// as a whole.
func (r *Reader) Snapshot() *Snapshot {
	snap := &Snapshot{}

	if v, err := r.ModuleVersion(); err != nil {
		log.Warnf("Failed to read current module version: %v", err)
	} else {
		snap.ModuleVersion = &v
	}

	if v, err := r.SeamldrVersion(); err != nil {
		log.Warnf("Failed to read current seamldr version: %v", err)
	} else {
		snap.SeamldrVersion = &v
	}

	if eax, err := r.config.CPUID(); err != nil {
		log.Warnf("Failed to read CPU identification: %v", err)
	} else {
		fm := version.NewCPUFamilyModel(eax)
		snap.FamilyModel = &fm
	}

	return snap
}

// ModuleVersion reads the currently loaded TDX module version.
func (r *Reader) ModuleVersion() (version.Version, error) {
	return r.readVersionNode(r.config.ModuleVersionPath)
}

// SeamldrVersion reads the current seamldr version.
func (r *Reader) SeamldrVersion() (version.Version, error) {
	return r.readVersionNode(r.config.SeamldrVersionPath)
}

func (r *Reader) readVersionNode(path string) (version.Version, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return version.Version{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	v, err := version.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return version.Version{}, fmt.Errorf("malformed version in %s: %w", path, err)
	}
	return v, nil
}

// cpuidLeaf1EAX reconstructs the raw CPUID.1.EAX value from the identification
// fields of the running CPU. The TDX module is Intel-only, so any other
// vendor is rejected up front.
func cpuidLeaf1EAX() (uint32, error) {
	if cpuid.CPU.VendorID != cpuid.Intel {
		return 0, fmt.Errorf("TDX module works for Intel CPUs only, CPU vendor is %v", cpuid.CPU.VendorString)
	}
	return packLeaf1EAX(cpuid.CPU.Family, cpuid.CPU.Model, cpuid.CPU.Stepping), nil
}

// packLeaf1EAX packs display family/model/stepping back into the CPUID.1.EAX
// bit layout: extFamily[27:20] extModel[19:16] family[11:8] model[7:4]
// stepping[3:0]. Inverse of Intel's display-value derivation.
func packLeaf1EAX(family, model, stepping int) uint32 {
	baseFamily := uint32(family)
	extFamily := uint32(0)
	if family > 0xF {
		baseFamily = 0xF
		extFamily = uint32(family - 0xF)
	}

	baseModel := uint32(model) & 0xF
	extModel := uint32(0)
	if family == 6 || family >= 0xF {
		extModel = uint32(model) >> 4
	}

	return extFamily<<20 | extModel<<16 | baseFamily<<8 | baseModel<<4 | uint32(stepping)&0xF
}
