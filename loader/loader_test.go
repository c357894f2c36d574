package loader

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdxtools/tdxmodule/catalog"
	"github.com/tdxtools/tdxmodule/platform"
	"github.com/tdxtools/tdxmodule/version"
)

const testControlRoot = "/sys/class/firmware/seamldr_upload"

var testBlobContent = []byte("fake module image bytes")

// stubVersions returns a fixed post-load module version.
type stubVersions struct {
	v   version.Version
	err error
}

func (s *stubVersions) ModuleVersion() (version.Version, error) {
	return s.v, s.err
}

// fakeClock advances only when the loader sleeps.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time        { return c.current }
func (c *fakeClock) sleep(d time.Duration) { c.current = c.current.Add(d) }

func capableModule() *catalog.Module {
	return &catalog.Module{
		Version:                version.MustParse("1.5.12"),
		Path:                   "/blobs/tdx_module_1.5.12.blob",
		SupportedCPUs:          []version.CPUFamilyModel{0x000806F0},
		MinTDPreservingVersion: version.MustParse("1.5.8"),
		MinSeamldrVersions:     []string{"2.1.3"},
	}
}

func capableSnapshot() *platform.Snapshot {
	mv := version.MustParse("1.5.10")
	sv := version.MustParse("2.1.5")
	fm := version.NewCPUFamilyModel(0x000806F8)
	return &platform.Snapshot{
		ModuleVersion:  &mv,
		SeamldrVersion: &sv,
		FamilyModel:    &fm,
	}
}

// newControlFs builds a fake upload interface with the given status and
// error node contents, plus the module blob.
func newControlFs(t *testing.T, status, errContent string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(testControlRoot, 0o755))
	require.NoError(t, afero.WriteFile(fs, testControlRoot+"/status", []byte(status), 0o644))
	require.NoError(t, afero.WriteFile(fs, testControlRoot+"/error", []byte(errContent), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/blobs/tdx_module_1.5.12.blob", testBlobContent, 0o644))
	return fs
}

func TestLoadSucceeds(t *testing.T) {
	fs := newControlFs(t, "idle\n", "")
	versions := &stubVersions{v: version.MustParse("1.5.12")}

	var phases []Phase
	l := New(fs, versions, WithPhaseCallback(func(p Phase) {
		phases = append(phases, p)
	}))

	result, err := l.Load(context.Background(), capableModule(), capableSnapshot())
	require.NoError(t, err)

	require.NotNil(t, result.Previous)
	assert.Equal(t, version.MustParse("1.5.10"), *result.Previous)
	require.NotNil(t, result.Current)
	assert.Equal(t, version.MustParse("1.5.12"), *result.Current)

	assert.Equal(t, []Phase{
		PhaseArming, PhaseTransferring, PhaseArmedComplete, PhasePolling, PhaseSucceeded,
	}, phases)

	// The full blob reached the data node and the transfer window is closed.
	data, err := afero.ReadFile(fs, testControlRoot+"/data")
	require.NoError(t, err)
	assert.Equal(t, testBlobContent, data)

	loading, err := afero.ReadFile(fs, testControlRoot+"/loading")
	require.NoError(t, err)
	assert.Equal(t, "0", string(loading))
}

func TestLoadSucceedsWithUnreadablePostVersion(t *testing.T) {
	fs := newControlFs(t, "idle", "")
	versions := &stubVersions{err: fmt.Errorf("node not present")}

	l := New(fs, versions)
	result, err := l.Load(context.Background(), capableModule(), capableSnapshot())
	require.NoError(t, err)
	assert.Nil(t, result.Current)
}

func TestLoadRejectsIncompatibleModule(t *testing.T) {
	fs := newControlFs(t, "idle", "")
	snap := capableSnapshot()
	fm := version.NewCPUFamilyModel(0x000C06F0) // not in the module's table
	snap.FamilyModel = &fm

	l := New(fs, &stubVersions{})
	_, err := l.Load(context.Background(), capableModule(), snap)

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, version.MustParse("1.5.12"), pre.Module)

	// A rejected candidate never touches the control interface.
	exists, _ := afero.Exists(fs, testControlRoot+"/loading")
	assert.False(t, exists)
}

func TestLoadRejectsDebugModuleWithoutOverride(t *testing.T) {
	fs := newControlFs(t, "idle", "")
	m := capableModule()
	m.Type = 0x80000000

	l := New(fs, &stubVersions{v: version.MustParse("1.5.12")})
	_, err := l.Load(context.Background(), m, capableSnapshot())

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)

	// The explicit override admits the same module.
	l = New(fs, &stubVersions{v: version.MustParse("1.5.12")}, WithAllowDebug(true))
	_, err = l.Load(context.Background(), m, capableSnapshot())
	require.NoError(t, err)
}

func TestLoadRejectsNonPreservingModule(t *testing.T) {
	fs := newControlFs(t, "idle", "")
	m := capableModule()
	m.Version = version.MustParse("1.5.9") // older than the running 1.5.10
	m.Path = "/blobs/tdx_module_1.5.12.blob"

	l := New(fs, &stubVersions{})
	_, err := l.Load(context.Background(), m, capableSnapshot())

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Contains(t, pre.Error(), "TD-preserving")
}

func TestLoadFailsWithoutControlRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/blobs/tdx_module_1.5.12.blob", testBlobContent, 0o644))

	l := New(fs, &stubVersions{})
	_, err := l.Load(context.Background(), capableModule(), capableSnapshot())

	var missing *MissingControlRootError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, testControlRoot, missing.Path)
}

func TestLoadTimesOut(t *testing.T) {
	fs := newControlFs(t, "pending", "")

	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := New(fs, &stubVersions{}, WithClock(clock.now, clock.sleep))

	_, err := l.Load(context.Background(), capableModule(), capableSnapshot())

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, DefaultPollTimeout, timeout.Timeout)
	// The simulated clock ran past the window in poll-interval steps.
	assert.Greater(t, clock.current.Sub(time.Unix(1000, 0)), DefaultPollTimeout)
}

func TestLoadReportsDeviceErrorVerbatim(t *testing.T) {
	fs := newControlFs(t, "idle", "SEAMCALL failed\n")

	l := New(fs, &stubVersions{})
	_, err := l.Load(context.Background(), capableModule(), capableSnapshot())

	var dev *DeviceError
	require.ErrorAs(t, err, &dev)
	assert.Equal(t, "SEAMCALL failed", dev.Reason)
}

func TestLoadRunsToTimeoutDespiteCancelledContext(t *testing.T) {
	// Once the transfer begins the operation is not cancellable; a dead
	// context still ends in the regular poll timeout.
	fs := newControlFs(t, "pending", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := New(fs, &stubVersions{}, WithClock(clock.now, clock.sleep))

	_, err := l.Load(ctx, capableModule(), capableSnapshot())
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
}

func TestLoadSuccessReportIsDebugOnly(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	logrus.SetLevel(logrus.InfoLevel)

	fs := newControlFs(t, "idle", "")
	l := New(fs, &stubVersions{v: version.MustParse("1.5.12")})

	_, err := l.Load(context.Background(), capableModule(), capableSnapshot())
	require.NoError(t, err)

	// The before/after line is the CLI's to print; the loader only logs it
	// at debug level.
	for _, entry := range hook.AllEntries() {
		if strings.HasPrefix(entry.Message, "Upgrade TDX module") {
			assert.Equal(t, logrus.DebugLevel, entry.Level)
		}
	}
}
