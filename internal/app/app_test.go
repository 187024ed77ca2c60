package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/circular"
	"github.com/JakeFAU/circular-watch/internal/config"
	"github.com/JakeFAU/circular-watch/internal/googleauth"
	"github.com/JakeFAU/circular-watch/internal/notify"
	"github.com/JakeFAU/circular-watch/internal/pipeline"
	"github.com/JakeFAU/circular-watch/internal/state"
)

// MockRunner mocks the pipeline runner.
type MockRunner struct {
	mock.Mock
}

// Run satisfies the runner interface for the mock.
func (m *MockRunner) Run(ctx context.Context) (pipeline.Outcome, error) {
	args := m.Called(ctx)
	return args.Get(0).(pipeline.Outcome), args.Error(1)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.WorkDir = dir
	cfg.State.Path = filepath.Join(dir, "last_circular.txt")
	cfg.State.LockPath = filepath.Join(dir, "circularwatch.lock")
	cfg.Storage.LocalDir = filepath.Join(dir, "archive")
	cfg.Headless.ExecPath = filepath.Join(dir, "no-such-chrome")
	cfg.Summarizer.APIKey = ""
	cfg.Google.CredentialsFile = filepath.Join(dir, "credentials.json")
	cfg.Google.TokenFile = filepath.Join(dir, "token.json")
	return cfg
}

func TestNewWithDefaults(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.Logger())
	assert.Equal(t, cfg.Source.IndexURL, a.Config().Source.IndexURL)
	assert.IsType(t, &state.FileStore{}, a.state)
	require.NoError(t, a.Ready(context.Background()))
	assert.DirExists(t, cfg.Storage.LocalDir)
}

func TestRunWithoutBrowserLeavesStateAndReleasesLock(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	_, err = a.Run(context.Background())
	require.ErrorIs(t, err, circular.ErrRender)

	assert.NoFileExists(t, cfg.State.Path)
	assert.NoFileExists(t, cfg.State.LockPath)
}

func TestRunHoldsLock(t *testing.T) {
	cfg := testConfig(t)
	runner := &MockRunner{}
	runner.On("Run", mock.Anything).Return(pipeline.OutcomeUnchanged, nil).Once()
	a := &App{cfg: cfg, logger: zap.NewNop(), runner: runner}

	outcome, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeUnchanged, outcome)
	runner.AssertExpectations(t)

	lock, err := state.AcquireLock(cfg.State.LockPath, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = lock.Release()
	})

	_, err = a.Run(context.Background())
	require.ErrorIs(t, err, circular.ErrLocked)
	runner.AssertNumberOfCalls(t, "Run", 1)
}

func TestGmailWithoutCredentialsIsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify.Backend = "gmail"
	cfg.Notify.Sender = "bot@example.org"
	cfg.Notify.Recipients = []string{"team@example.org"}
	a := &App{cfg: cfg, logger: zap.NewNop()}

	n, err := a.buildNotifier(context.Background())
	require.NoError(t, err)
	require.IsType(t, notify.Disabled{}, n)
	require.ErrorIs(t, n.Notify(context.Background(), circular.Notification{}), circular.ErrNotifySkipped)
}

func TestBothNotifiersFanOut(t *testing.T) {
	srv := pstest.NewServer()
	t.Cleanup(func() {
		_ = srv.Close()
	})
	t.Setenv("PUBSUB_EMULATOR_HOST", srv.Addr)

	cfg := testConfig(t)
	cfg.Notify.Backend = "both"
	cfg.Notify.Sender = "bot@example.org"
	cfg.Notify.Recipients = []string{"team@example.org"}
	cfg.Notify.ProjectID = "test-project"
	cfg.Notify.Topic = "circulars"
	a := &App{cfg: cfg, logger: zap.NewNop()}
	t.Cleanup(a.Close)

	n, err := a.buildNotifier(context.Background())
	require.NoError(t, err)
	multi, ok := n.(notify.Multi)
	require.True(t, ok)
	require.Len(t, multi, 2)
	assert.IsType(t, notify.Disabled{}, multi[0], "gmail without credentials degrades to a skip")
}

func TestDriveWithoutCredentialsFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "drive"
	cfg.Storage.DriveFolderID = "root"
	a := &App{cfg: cfg, logger: zap.NewNop()}

	_, err := a.buildUploader(context.Background())
	require.ErrorIs(t, err, googleauth.ErrNoCredentials)
}

func TestNoneNotifierAndDisabledSummarizer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Summarizer.Enabled = false
	a := &App{cfg: cfg, logger: zap.NewNop()}

	n, err := a.buildNotifier(context.Background())
	require.NoError(t, err)
	assert.IsType(t, notify.Disabled{}, n)
	assert.Nil(t, a.buildSummarizer(context.Background()))

	cfg.Summarizer.Enabled = true
	a.cfg = cfg
	assert.Nil(t, a.buildSummarizer(context.Background()), "no api key")
}

func TestCloseRunsInReverseOrder(t *testing.T) {
	var order []string
	a := &App{logger: zap.NewNop()}
	a.onClose("first", func() error {
		order = append(order, "first")
		return nil
	})
	a.onClose("second", func() error {
		order = append(order, "second")
		return os.ErrClosed
	})

	a.Close()
	assert.Equal(t, []string{"second", "first"}, order)
	a.Close()
	assert.Len(t, order, 2)
}
