package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// collectionMeta marks a collection as written and records its schema version
type collectionMeta struct {
	Name          string `gorm:"primaryKey;size:64"`
	SchemaVersion int    `gorm:"not null"`
	UpdatedAt     time.Time
}

func (collectionMeta) TableName() string { return "collection_meta" }

// collectionRecord is one record of a collection, ordered by position
type collectionRecord struct {
	CollectionName string `gorm:"primaryKey;size:64"`
	Position       int    `gorm:"primaryKey"`
	Data           string `gorm:"type:text;not null"`
}

func (collectionRecord) TableName() string { return "collection_records" }

// SQLMedium stores collections in a relational database through gorm.
// Each Replace deletes and reinserts the collection's rows in one transaction.
type SQLMedium struct {
	conn *gorm.DB
}

var _ Medium = (*SQLMedium)(nil)

// OpenSQL opens a sqlite or postgres connection with gorm logging silenced
func OpenSQL(driver, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	return conn, nil
}

// NewSQLMedium migrates the collection tables on conn
func NewSQLMedium(conn *gorm.DB) (*SQLMedium, error) {
	if err := conn.AutoMigrate(&collectionMeta{}, &collectionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate collection tables: %w", err)
	}
	return &SQLMedium{conn: conn}, nil
}

func (m *SQLMedium) Load(ctx context.Context, name string) (*Snapshot, error) {
	db := m.conn.WithContext(ctx)

	var metas []collectionMeta
	if err := db.Where("name = ?", name).Limit(1).Find(&metas).Error; err != nil {
		return nil, fmt.Errorf("failed to load %s metadata: %w", name, err)
	}
	if len(metas) == 0 {
		return nil, nil
	}

	var rows []collectionRecord
	if err := db.Where("collection_name = ?", name).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load %s records: %w", name, err)
	}

	snapshot := &Snapshot{SchemaVersion: metas[0].SchemaVersion, Records: make([]json.RawMessage, 0, len(rows))}
	for _, row := range rows {
		snapshot.Records = append(snapshot.Records, json.RawMessage(row.Data))
	}
	return snapshot, nil
}

func (m *SQLMedium) Replace(ctx context.Context, name string, snapshot *Snapshot) error {
	return m.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("collection_name = ?", name).Delete(&collectionRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", name, err)
		}

		if len(snapshot.Records) > 0 {
			rows := make([]collectionRecord, 0, len(snapshot.Records))
			for i, raw := range snapshot.Records {
				rows = append(rows, collectionRecord{CollectionName: name, Position: i, Data: string(raw)})
			}
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return fmt.Errorf("failed to insert %s records: %w", name, err)
			}
		}

		meta := collectionMeta{Name: name, SchemaVersion: snapshot.SchemaVersion, UpdatedAt: time.Now().UTC()}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&meta).Error; err != nil {
			return fmt.Errorf("failed to write %s metadata: %w", name, err)
		}
		return nil
	})
}

// withTx executes fn inside a transaction, rolling back on error/panic
func (m *SQLMedium) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := m.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func (m *SQLMedium) Close() error {
	sqlDB, err := m.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
