// Package sqlite stores links in an embedded SQLite database through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/idgen"
	"github.com/sundayezeilo/shortlink/internal/shortener"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "links.db"

// linkRow is the links table. Times are epoch milliseconds.
type linkRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Code        string `gorm:"uniqueIndex;not null"`
	OriginalURL string `gorm:"not null"`
	Clicks      int64  `gorm:"not null;default:0"`
	CreatedAtMs int64  `gorm:"column:created_at_ms;not null"`
	ExpiresAtMs int64  `gorm:"column:expires_at_ms;not null"`
}

func (linkRow) TableName() string { return "links" }

func (r linkRow) toLink() shortener.Link {
	return shortener.Link{
		OriginalURL: r.OriginalURL,
		Code:        r.Code,
		Clicks:      r.Clicks,
		CreatedAt:   time.UnixMilli(r.CreatedAtMs),
		Expiry:      time.UnixMilli(r.ExpiresAtMs),
	}
}

// Open opens the database at path. The pool is limited to one connection,
// which serializes every transaction.
func Open(path string) (*gorm.DB, error) {
	if path == "" {
		path = DefaultPath
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates the links table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&linkRow{}); err != nil {
		return errx.E("sqlite.Migrate", errx.Internal, err)
	}
	return nil
}

// Repository implements shortener.Repository with gorm.
type Repository struct {
	db  *gorm.DB
	ids idgen.Generator
}

var _ shortener.Repository = (*Repository)(nil)

func NewRepository(db *gorm.DB, ids idgen.Generator) *Repository {
	if ids == nil {
		ids = idgen.NewV7()
	}
	return &Repository{db: db, ids: ids}
}

func (r *Repository) CreateLink(ctx context.Context, link shortener.Link) (shortener.Link, error) {
	const op = "sqlite.repo.CreateLink"

	id, err := r.ids.Generate()
	if err != nil {
		return shortener.Link{}, errx.E(op, errx.Internal, err)
	}

	row := linkRow{
		ID:          id.String(),
		Code:        link.Code,
		OriginalURL: link.OriginalURL,
		Clicks:      link.Clicks,
		CreatedAtMs: link.CreatedAt.UnixMilli(),
		ExpiresAtMs: link.Expiry.UnixMilli(),
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return shortener.Link{}, errx.E(op, errx.Internal, res.Error)
	}
	if res.RowsAffected == 0 {
		return shortener.Link{}, errx.E(op, errx.Conflict, shortener.ErrCodeTaken)
	}
	return row.toLink(), nil
}

func (r *Repository) GetLinkByCode(ctx context.Context, code string) (shortener.Link, error) {
	const op = "sqlite.repo.GetLinkByCode"

	var row linkRow
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&row).Error; err != nil {
		return shortener.Link{}, mapRepoError(op, err)
	}
	return row.toLink(), nil
}

func (r *Repository) TrackClick(ctx context.Context, code string, guard shortener.ClickGuard) (shortener.Link, error) {
	const op = "sqlite.repo.TrackClick"

	var row linkRow
	var guardErr error
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ?", code).First(&row).Error; err != nil {
			return err
		}
		if guard != nil {
			if guardErr = guard(row.toLink()); guardErr != nil {
				return guardErr
			}
		}
		if err := tx.Model(&linkRow{}).
			Where("code = ?", code).
			Update("clicks", gorm.Expr("clicks + 1")).Error; err != nil {
			return err
		}
		row.Clicks++
		return nil
	})
	if guardErr != nil {
		return shortener.Link{}, guardErr
	}
	if err != nil {
		return shortener.Link{}, mapRepoError(op, err)
	}
	return row.toLink(), nil
}

func mapRepoError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errx.E(op, errx.NotFound, shortener.ErrLinkNotFound)
	}
	return errx.E(op, errx.Internal, err)
}
