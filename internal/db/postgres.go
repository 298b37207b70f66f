package db

import (
  "fmt"

  "gorm.io/driver/postgres"
  "gorm.io/gorm"

  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/types"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

type PostgresService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
  postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
  postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
  postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
  postgresName := utils.GetEnv("POSTGRES_NAME", "studyforge", log)

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

  serviceLog.Info("Connecting to Postgres...")
  gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    serviceLog.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating postgres tables...")
  err := s.db.AutoMigrate(
    &types.Resource{},
    &types.Chunk{},
    &types.Note{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for postgres tables", "error", err)
    return err
  }

  s.log.Info("Configuring foreign key relationships for postgres tables...")
  // chunk rows are owned by their resource. note rows are NOT: a resource
  // delete must leave its note behind, so note gets no foreign key at all.
  if err := s.db.Exec(`
    DO $$ BEGIN
      IF NOT EXISTS (
        SELECT 1 FROM pg_constraint WHERE conname = 'fk_chunk_resource_id'
      ) THEN
        ALTER TABLE "chunk"
        ADD CONSTRAINT "fk_chunk_resource_id"
        FOREIGN KEY ("resource_id")
        REFERENCES "resource"("id")
        ON DELETE CASCADE;
      END IF;
    END $$;
  `).Error; err != nil {
    return fmt.Errorf("Failed to add fk_chunk_resource_id: %w", err)
  }

  s.log.Info("Installing updated_at trigger...")
  if err := s.db.Exec(`
    CREATE OR REPLACE FUNCTION set_updated_at()
    RETURNS TRIGGER AS $$
    BEGIN
      NEW.updated_at = now();
      RETURN NEW;
    END;
    $$ LANGUAGE plpgsql;
  `).Error; err != nil {
    return fmt.Errorf("Failed to create set_updated_at function: %w", err)
  }
  for _, table := range []string{"resource", "chunk", "note"} {
    if err := s.db.Exec(fmt.Sprintf(`
      DROP TRIGGER IF EXISTS trg_%s_updated_at ON "%s";
      CREATE TRIGGER trg_%s_updated_at
      BEFORE UPDATE ON "%s"
      FOR EACH ROW EXECUTE FUNCTION set_updated_at();
    `, table, table, table, table)).Error; err != nil {
      return fmt.Errorf("Failed to install updated_at trigger on %s: %w", table, err)
    }
  }
  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
