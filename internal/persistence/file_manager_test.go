package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallyd/internal/models"
	"tallyd/internal/services"
	"tallyd/internal/structures"
	"tallyd/internal/testutil"
)

type sessionSourceStub struct {
	sessions []*models.VoiceSession
}

func (s *sessionSourceStub) OpenSessions() []*models.VoiceSession {
	return s.sessions
}

func newTestService() services.AggregateServiceInterface {
	return services.NewAggregateService(&structures.Config{}, nil, &testutil.MockLogger{})
}

func TestFileManager_SaveToFile_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.dat")

	svc := newTestService()
	svc.Touch("u1", time.Now().UTC())

	fm := NewFileManager(&testutil.MockCompressor{}, svc, &sessionSourceStub{}, &testutil.MockLogger{})
	require.NoError(t, fm.SaveToFile(path))

	_, err := os.Stat(path)
	assert.NoError(t, err)

	// Temp file should not exist
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileManager_SaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.dat")
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	svc := newTestService()
	closed := models.NewVoiceSession("u1", "g1", "voice-1", t0)
	closed.Close(t0.Add(5*time.Minute), models.CloseLeft)
	svc.ApplySessionClose(closed)

	open := models.NewVoiceSession("u2", "g1", "voice-2", t0)
	comp, err := NewZstdCompressor()
	require.NoError(t, err)
	defer comp.Close()

	fm := NewFileManager(comp, svc, &sessionSourceStub{sessions: []*models.VoiceSession{open}}, &testutil.MockLogger{})
	require.NoError(t, fm.SaveToFile(path))

	snapshot, err := fm.LoadFromFile(path)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, models.SnapshotVersion, snapshot.Version)

	require.Contains(t, snapshot.Users, "u1")
	assert.Equal(t, int64(300), snapshot.Users["u1"].TotalCallSeconds)

	require.Len(t, snapshot.OpenSessions, 1)
	assert.Equal(t, "u2", snapshot.OpenSessions[0].UserID)
	assert.True(t, snapshot.OpenSessions[0].IsOpen())
}

func TestFileManager_LoadFromFile_Missing(t *testing.T) {
	fm := NewFileManager(&testutil.MockCompressor{}, newTestService(), &sessionSourceStub{}, &testutil.MockLogger{})

	snapshot, err := fm.LoadFromFile(filepath.Join(t.TempDir(), "nope.dat"))
	assert.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestFileManager_LoadFromFile_V1Migration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.dat")

	// v1 snapshots were a bare user map with no envelope.
	users := map[string]*models.UserAggregate{
		"u1": {UserID: "u1", TotalCallSeconds: 500},
	}
	data, err := json.Marshal(users)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	fm := NewFileManager(&testutil.MockCompressor{}, newTestService(), &sessionSourceStub{}, &testutil.MockLogger{})
	snapshot, err := fm.LoadFromFile(path)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, 1, snapshot.Version)
	assert.Equal(t, int64(500), snapshot.Users["u1"].TotalCallSeconds)
	assert.Empty(t, snapshot.OpenSessions)
}

func TestFileManager_LoadFromFile_UnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.dat")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))

	fm := NewFileManager(&testutil.MockCompressor{}, newTestService(), &sessionSourceStub{}, &testutil.MockLogger{})
	_, err := fm.LoadFromFile(path)
	assert.ErrorIs(t, err, ErrUnknownSnapshotFormat)
}

func TestFileManager_LoadFromFile_DecompressError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.dat")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	comp := &testutil.MockCompressor{
		DecompressFn: func([]byte) ([]byte, error) { return nil, errors.New("bad frame") },
	}
	fm := NewFileManager(comp, newTestService(), &sessionSourceStub{}, &testutil.MockLogger{})
	_, err := fm.LoadFromFile(path)
	assert.Error(t, err)
}

func TestFileManager_SaveToFile_ReplacesPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.dat")
	require.NoError(t, os.WriteFile(path, []byte("old contents"), 0o644))

	fm := NewFileManager(&testutil.MockCompressor{}, newTestService(), &sessionSourceStub{}, &testutil.MockLogger{})
	require.NoError(t, fm.SaveToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, []byte("old contents"), data)
}
