package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type slotRow struct {
	Path      string `gorm:"primaryKey"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (slotRow) TableName() string { return "relay_slots" }

// PostgresSlot keeps the slot in a relay_slots row and fans changes out with
// NOTIFY on a channel derived from the path.
type PostgresSlot struct {
	db      *gorm.DB
	dsn     string
	path    string
	channel string
	log     *zap.Logger
}

func OpenPostgres(ctx context.Context, dsn, path string, log *zap.Logger) (*PostgresSlot, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&slotRow{}); err != nil {
		return nil, fmt.Errorf("migrate relay_slots: %w", err)
	}
	return &PostgresSlot{
		db:      db,
		dsn:     dsn,
		path:    path,
		channel: ChannelName(path),
		log:     log,
	}, nil
}

// ChannelName turns a slot path into a LISTEN channel identifier.
func ChannelName(path string) string {
	var b strings.Builder
	b.WriteString("relay_")
	for _, r := range strings.ToLower(path) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (s *PostgresSlot) Set(ctx context.Context, value []byte) error {
	row := slotRow{Path: s.path, Value: string(value), UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("upsert slot: %w", err)
		}
		// Delivered on commit.
		if err := tx.Exec("SELECT pg_notify(?, ?)", s.channel, row.Value).Error; err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return nil
	})
}

func (s *PostgresSlot) Get(ctx context.Context) ([]byte, error) {
	var row slotRow
	err := s.db.WithContext(ctx).First(&row, "path = ?", s.path).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read slot: %w", err)
	}
	return []byte(row.Value), nil
}

// Watch holds a dedicated connection in LISTEN until ctx ends.
func (s *PostgresSlot) Watch(ctx context.Context, fn func([]byte)) error {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		conn.Close(context.Background())
		return fmt.Errorf("listen %s: %w", s.channel, err)
	}

	go func() {
		defer conn.Close(context.Background())
		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Error("relay listener stopped", zap.String("channel", s.channel), zap.Error(err))
				}
				return
			}
			fn([]byte(n.Payload))
		}
	}()
	return nil
}

func (s *PostgresSlot) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
