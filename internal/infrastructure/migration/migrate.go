package migration

import (
	"errors"
	"fmt"

	"assessync/internal/app/server/config"

	"github.com/golang-migrate/migrate/v4"
	// Blank import required for PostgreSQL driver registration for migrations
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"golang.org/x/exp/slog"
)

// Migrator часть *migrate.Migrate, которой пользуется сервер.
type Migrator interface {
	Up() error
	Version() (version uint, dirty bool, err error)
	Close() (source error, database error)
}

// Engine открывает мигратор. В тестах подменяется, чтобы не трогать ФС и БД.
type Engine func(sourceURL, databaseURL string) (Migrator, error)

func DefaultEngine(sourceURL, databaseURL string) (Migrator, error) {
	return migrate.New(sourceURL, databaseURL)
}

type Migration struct {
	source   string
	database string
	engine   Engine
	log      *slog.Logger
}

func NewMigration(conf *config.Config, engine Engine, log *slog.Logger) *Migration {
	return &Migration{
		source:   "file://" + conf.DB.Migrations,
		database: conf.DB.DatabaseURI,
		engine:   engine,
		log:      log.With(slog.String("component", "migration")),
	}
}

// Up применяет все новые миграции. Отсутствие изменений ошибкой не считается,
// грязная схема после предыдущего сбоя считается.
func (mg *Migration) Up() (err error) {
	m, err := mg.engine(mg.source, mg.database)
	if err != nil {
		return fmt.Errorf("open migrator %s: %w", mg.source, err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			err = errors.Join(err, fmt.Errorf("close migration source: %w", srcErr))
		}
		if dbErr != nil {
			err = errors.Join(err, fmt.Errorf("close migration database: %w", dbErr))
		}
	}()

	upErr := m.Up()
	switch {
	case errors.Is(upErr, migrate.ErrNoChange):
		mg.log.Debug("схема актуальна")
	case upErr != nil:
		return fmt.Errorf("migration up: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("схема в состоянии dirty на версии %d", version)
	}

	mg.log.Info("миграции применены", slog.Uint64("version", uint64(version)))
	return nil
}
