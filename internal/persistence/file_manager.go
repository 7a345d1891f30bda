package persistence

import (
	"errors"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"tallyd/internal/models"
	"tallyd/internal/persistence/interfaces"
	"tallyd/internal/providers"
	"tallyd/internal/services"
)

var ErrUnknownSnapshotFormat = errors.New("unknown snapshot format")

// SessionSource supplies the currently open sessions for snapshotting.
type SessionSource interface {
	OpenSessions() []*models.VoiceSession
}

type FileManager struct {
	service    services.AggregateServiceInterface
	sessions   SessionSource
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, service services.AggregateServiceInterface, sessions SessionSource, logger providers.Logger) *FileManager {
	return &FileManager{
		compressor: compressor,
		service:    service,
		sessions:   sessions,
		logger:     logger,
	}
}

// SaveToFile writes the full snapshot (aggregates plus open-session
// markers) compressed, via tmp file, fsync and rename so a crash can
// never leave a half-written snapshot behind. Window entries are never
// included.
func (f *FileManager) SaveToFile(fileName string) error {
	snapshot := &models.Snapshot{
		Version:      models.SnapshotVersion,
		SavedAt:      time.Now().UTC(),
		Users:        f.service.GetSnapshotUsers(),
		OpenSessions: f.sessions.OpenSessions(),
	}

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (f *FileManager) Close() {
	f.compressor.Close()
}

// LoadFromFile reads a snapshot from disk. A missing file yields a nil
// snapshot without error. Older formats are migrated on the fly.
func (f *FileManager) LoadFromFile(fileName string) (*models.Snapshot, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	decompressedData, err := f.compressor.Decompress(data)
	if err != nil {
		return nil, err
	}

	// Current format
	var snapshot models.Snapshot
	if err := json.Unmarshal(decompressedData, &snapshot); err == nil && snapshot.Users != nil {
		return &snapshot, nil
	}

	// v1: bare user map, no open-session markers
	f.logger.Warnf(providers.TypeApp, "Inconsistent snapshot found, try to migrate from old data format")
	var users map[string]*models.UserAggregate
	if err := json.Unmarshal(decompressedData, &users); err != nil || users == nil {
		f.logger.Warnf(providers.TypeApp, "Migration failed")
		if err == nil {
			err = ErrUnknownSnapshotFormat
		}
		return nil, err
	}
	f.logger.Warnf(providers.TypeApp, "Migration from v1 format successful")
	return &models.Snapshot{Version: 1, Users: users}, nil
}
