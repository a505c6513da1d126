package migration

import (
	"errors"
	"testing"

	"assessync/internal/app/server/config"
	"assessync/internal/utils/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockMigrator мок для интерфейса Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		DB: config.DB{DatabaseURI: "postgres://localhost/assessync", Migrations: "migrations"},
	}
}

func TestMigration_Up(t *testing.T) {
	tests := []struct {
		name       string
		upErr      error
		version    uint
		dirty      bool
		versionErr error
		closeSrc   error
		closeDB    error
		wantErr    string
	}{
		{name: "success", version: 1},
		{name: "no change is not an error", upErr: migrate.ErrNoChange, version: 1},
		{name: "empty migrations dir", upErr: migrate.ErrNoChange, versionErr: migrate.ErrNilVersion},
		{name: "up error", upErr: errors.New("syntax error"), wantErr: "syntax error"},
		{name: "dirty schema", version: 3, dirty: true, wantErr: "dirty"},
		{name: "close source error", version: 1, closeSrc: errors.New("source closed"), wantErr: "source closed"},
		{name: "close database error", version: 1, closeDB: errors.New("db closed"), wantErr: "db closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockM := new(MockMigrator)
			mockM.On("Up").Return(tt.upErr)
			mockM.On("Version").Return(tt.version, tt.dirty, tt.versionErr).Maybe()
			mockM.On("Close").Return(tt.closeSrc, tt.closeDB)

			var gotSource, gotDB string
			engine := func(source, db string) (Migrator, error) {
				gotSource, gotDB = source, db
				return mockM, nil
			}

			err := NewMigration(testConfig(), engine, logger.Discard()).Up()

			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
			assert.Equal(t, "file://migrations", gotSource)
			assert.Equal(t, "postgres://localhost/assessync", gotDB)
			mockM.AssertExpectations(t)
		})
	}
}

func TestMigration_Up_EngineError(t *testing.T) {
	// Ошибка на этапе создания мигратора (например, неверный драйвер)
	engine := func(source, db string) (Migrator, error) {
		return nil, errors.New("engine crash")
	}

	err := NewMigration(testConfig(), engine, logger.Discard()).Up()

	assert.ErrorContains(t, err, "engine crash")
}
