package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/tdxtools/tdxmodule/catalog"
	"github.com/tdxtools/tdxmodule/compat"
	"github.com/tdxtools/tdxmodule/platform"
	"github.com/tdxtools/tdxmodule/version"
)

var log = logrus.WithField("service", "loader")

// DefaultControlRoot is the firmware upload interface for the seamldr.
const DefaultControlRoot = "/sys/class/firmware/seamldr_upload"

// Polling defaults. The control interface offers no notification primitive,
// so completion is a bounded fixed-interval wait.
const (
	DefaultPollTimeout  = 10 * time.Second
	DefaultPollInterval = time.Second
)

// Control interface attribute nodes.
const (
	LoadingNode = "loading"
	DataNode    = "data"
	StatusNode  = "status"
	ErrorNode   = "error"
)

// StatusIdle is the status node value that concludes a load.
const StatusIdle = "idle"

// VersionReader reads the currently loaded module version. Satisfied by
// *platform.Reader.
type VersionReader interface {
	ModuleVersion() (version.Version, error)
}

// Result reports the module versions around a successful load. A nil field
// means the corresponding version node was unreadable at that point.
type Result struct {
	// Previous is the module version running before the load
	Previous *version.Version

	// Current is the module version running after the load
	Current *version.Version
}

// Loader uploads module blobs through the firmware control interface.
type Loader struct {
	fs       afero.Fs
	versions VersionReader
	config   Config
}

// New creates a Loader over the given filesystem and version reader.
//
// Example:
//
//	fs := afero.NewOsFs()
//	reader := platform.NewReader(fs)
//	l := loader.New(fs, reader, loader.WithAllowDebug(false))
func New(fsys afero.Fs, versions VersionReader, opts ...Option) *Loader {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Loader{
		fs:       fsys,
		versions: versions,
		config:   cfg,
	}
}

// Load uploads the module blob and waits for the platform to conclude the
// load. The sequence is:
//
//  1. Reject the candidate unless it is compatible, allowed by the debug
//     gate and TD-preserving-capable; the control interface is never touched
//     for a rejected candidate.
//  2. Write "1" to the loading node, stream the blob to the data node,
//     write "0" to the loading node.
//  3. Poll the status node until it reads "idle" or the timeout expires.
//  4. Read the error node: non-empty means the load failed with that reason.
//
// Once the sequence begins it runs to completion, device error or timeout;
// the context is not consulted mid-load, as the control interface offers no
// way to abandon a transfer safely.
func (l *Loader) Load(ctx context.Context, m *catalog.Module, snap *platform.Snapshot) (*Result, error) {
	if err := l.checkPreconditions(m, snap); err != nil {
		return nil, err
	}

	log.Infof("Install module %s", m.Path)

	l.reportPhase(PhaseArming)
	if err := l.writeNode(LoadingNode, "1"); err != nil {
		return nil, err
	}

	l.reportPhase(PhaseTransferring)
	if err := l.transferBlob(m.Path); err != nil {
		return nil, err
	}

	l.reportPhase(PhaseArmedComplete)
	if err := l.writeNode(LoadingNode, "0"); err != nil {
		return nil, err
	}

	l.reportPhase(PhasePolling)
	if err := l.waitIdle(); err != nil {
		return nil, err
	}

	reason, err := l.readNode(ErrorNode)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return nil, &DeviceError{Reason: reason}
	}

	l.reportPhase(PhaseSucceeded)

	result := &Result{Previous: snap.ModuleVersion}
	if curr, err := l.versions.ModuleVersion(); err != nil {
		log.Warnf("Failed to read module version after load: %v", err)
	} else {
		result.Current = &curr
	}
	log.Debugf("Upgrade TDX module from %s to %s",
		versionOrUnknown(result.Previous), versionOrUnknown(result.Current))

	return result, nil
}

// checkPreconditions enforces the compatibility gates and the existence of
// the control interface before any write occurs.
func (l *Loader) checkPreconditions(m *catalog.Module, snap *platform.Snapshot) error {
	if !compat.Compatible(m, snap) {
		return &PreconditionError{Module: m.Version, Reason: "incompatible with this platform"}
	}
	if m.Debug() && !l.config.AllowDebug {
		return &PreconditionError{Module: m.Version, Reason: "debug module, use --allow-debug to override"}
	}
	if !compat.TDPreservingCapable(m, snap, l.config.AllowDebug) {
		return &PreconditionError{Module: m.Version, Reason: "not TD-preserving-capable"}
	}

	exists, err := afero.DirExists(l.fs, l.config.ControlRoot)
	if err != nil {
		return fmt.Errorf("failed to check control interface %s: %w", l.config.ControlRoot, err)
	}
	if !exists {
		return &MissingControlRootError{Path: l.config.ControlRoot}
	}
	return nil
}

// transferBlob streams the entire blob to the data node.
func (l *Loader) transferBlob(blobPath string) error {
	src, err := l.fs.Open(blobPath)
	if err != nil {
		return fmt.Errorf("failed to open blob %s: %w", blobPath, err)
	}
	defer func() { _ = src.Close() }()

	dataPath := filepath.Join(l.config.ControlRoot, DataNode)
	dst, err := l.fs.OpenFile(dataPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o200)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dataPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to write module image to %s: %w", dataPath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to complete write to %s: %w", dataPath, err)
	}
	return nil
}

// waitIdle polls the status node until it reports idle. The timeout is
// wall-clock from entry and checked before each sleep.
func (l *Loader) waitIdle() error {
	deadline := l.config.now().Add(l.config.PollTimeout)

	for {
		status, err := l.readNode(StatusNode)
		if err != nil {
			return err
		}
		if status == StatusIdle {
			return nil
		}

		if l.config.now().After(deadline) {
			return &TimeoutError{Timeout: l.config.PollTimeout}
		}
		l.config.sleep(l.config.PollInterval)
	}
}

// writeNode writes an ASCII payload to a control node.
func (l *Loader) writeNode(node, payload string) error {
	path := filepath.Join(l.config.ControlRoot, node)
	if err := afero.WriteFile(l.fs, path, []byte(payload), 0o200); err != nil {
		return fmt.Errorf("failed to write %q to %s: %w", payload, path, err)
	}
	log.Debugf("Wrote %q to %s", payload, path)
	return nil
}

// readNode reads and trims a control node.
func (l *Loader) readNode(node string) (string, error) {
	path := filepath.Join(l.config.ControlRoot, node)
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// reportPhase calls the phase callback if configured.
func (l *Loader) reportPhase(phase Phase) {
	log.Debugf("Load phase: %s", phase)
	if l.config.PhaseCallback != nil {
		l.config.PhaseCallback(phase)
	}
}

func versionOrUnknown(v *version.Version) string {
	if v == nil {
		return "unknown"
	}
	return v.String()
}
