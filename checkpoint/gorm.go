package checkpoint

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/suviet/agent/types"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// messageRecord is one persisted conversation message. Mirrors the chat
// transcript table: one row per message, ordered by Seq within a thread.
type messageRecord struct {
	ID        string `gorm:"primaryKey"`
	ThreadID  string `gorm:"index:idx_message_thread"`
	Seq       int    `gorm:"index:idx_message_thread"`
	Role      string
	Content   string
	CreatedAt time.Time
}

func (messageRecord) TableName() string { return "messages" }

// GormStore is a SQL-backed Store (Postgres in production, SQLite for
// local development).
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPostgresStore opens a Postgres-backed store and migrates the schema.
func NewPostgresStore(dsn string, logger *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, types.NewError(types.ErrCheckpointFailed, "open postgres").WithCause(err)
	}
	return newGormStore(db, logger)
}

// NewSQLiteStore opens a SQLite-backed store and migrates the schema.
func NewSQLiteStore(path string, logger *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, types.NewError(types.ErrCheckpointFailed, "open sqlite").WithCause(err)
	}
	return newGormStore(db, logger)
}

func newGormStore(db *gorm.DB, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return nil, types.NewError(types.ErrCheckpointFailed, "migrate schema").WithCause(err)
	}
	return &GormStore{db: db, logger: logger}, nil
}

// Load implements Store.
func (s *GormStore) Load(ctx context.Context, threadID string) (*Snapshot, error) {
	var records []messageRecord
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("seq ASC").
		Find(&records).Error
	if err != nil {
		return nil, types.NewError(types.ErrCheckpointFailed, "load thread").WithCause(err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	snap := &Snapshot{ThreadID: threadID}
	for _, rec := range records {
		snap.Messages = append(snap.Messages, types.Message{
			Role:      types.Role(rec.Role),
			Content:   rec.Content,
			Timestamp: rec.CreatedAt,
		})
		if rec.CreatedAt.After(snap.UpdatedAt) {
			snap.UpdatedAt = rec.CreatedAt
		}
	}
	return snap, nil
}

// Save implements Store. The thread's rows are replaced wholesale in one
// transaction; snapshots are small (one conversation) so this stays cheap
// and keeps Save idempotent.
func (s *GormStore) Save(ctx context.Context, threadID string, snap *Snapshot) error {
	records := make([]messageRecord, 0, len(snap.Messages))
	now := time.Now()
	for i, msg := range snap.Messages {
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = now
		}
		records = append(records, messageRecord{
			ID:        uuid.NewString(),
			ThreadID:  threadID,
			Seq:       i,
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: ts,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&messageRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
	if err != nil {
		return types.NewError(types.ErrCheckpointFailed, "save thread").WithCause(err)
	}
	return nil
}

// ListThreads implements Store.
func (s *GormStore) ListThreads(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&messageRecord{}).
		Distinct("thread_id").
		Order("thread_id").
		Pluck("thread_id", &ids).Error
	if err != nil {
		return nil, types.NewError(types.ErrCheckpointFailed, "list threads").WithCause(err)
	}
	return ids, nil
}

// Delete implements Store.
func (s *GormStore) Delete(ctx context.Context, threadID string) error {
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Delete(&messageRecord{}).Error
	if err != nil {
		return types.NewError(types.ErrCheckpointFailed, "delete thread").WithCause(err)
	}
	return nil
}

// Close implements Store.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
