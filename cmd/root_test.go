package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/config"
	"github.com/JakeFAU/circular-watch/internal/pipeline"
)

// MockApp mocks the App interface.
type MockApp struct {
	mock.Mock
	cfg config.Config
}

func (m *MockApp) Run(ctx context.Context) (pipeline.Outcome, error) {
	args := m.Called(ctx)
	return args.Get(0).(pipeline.Outcome), args.Error(1)
}

func (m *MockApp) Ready(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockApp) Logger() *zap.Logger { return zap.NewNop() }

func (m *MockApp) Config() config.Config { return m.cfg }

func (m *MockApp) Close() {
	m.Called()
}

// withMockApp swaps the app factory for the duration of a test.
func withMockApp(t *testing.T, m *MockApp) {
	t.Helper()
	orig := newApp
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (App, error) {
		m.cfg = cfg
		return m, nil
	}
	t.Cleanup(func() {
		newApp = orig
	})
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "workdir: " + dir + "\nlogging:\n  file: " + filepath.Join(dir, "run.log") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommandPrintsOutcome(t *testing.T) {
	m := &MockApp{}
	m.On("Run", mock.Anything).Return(pipeline.OutcomeProcessed, nil).Once()
	m.On("Close").Once()
	withMockApp(t, m)

	out, err := execute(t, "run", "--config", writeConfig(t), "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "processed")
	m.AssertExpectations(t)
}

func TestRunCommandFailure(t *testing.T) {
	m := &MockApp{}
	m.On("Run", mock.Anything).Return(pipeline.Outcome("failed"), errors.New("render index: boom")).Once()
	m.On("Close").Once()
	withMockApp(t, m)

	_, err := execute(t, "run", "--config", writeConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render index: boom")
	m.AssertExpectations(t)
}

func TestRootFailsOnBadConfig(t *testing.T) {
	m := &MockApp{}
	withMockApp(t, m)

	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	m.AssertNotCalled(t, "Run", mock.Anything)
}

func TestVersionSkipsAppInit(t *testing.T) {
	orig := newApp
	newApp = func(context.Context, config.Config, *zap.Logger) (App, error) {
		t.Fatal("version must not build the app")
		return nil, nil
	}
	t.Cleanup(func() {
		newApp = orig
	})

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "circularwatch dev")
}

func TestLoadEnv(t *testing.T) {
	require.NoError(t, loadEnv(""))
	require.NoError(t, loadEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CIRCULAR_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("CIRCULAR_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CIRCULAR_TEST_DOTENV"))
	require.NoError(t, loadEnv(path))
	assert.Equal(t, "loaded", os.Getenv("CIRCULAR_TEST_DOTENV"))
}

func TestResolveAppMissing(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
