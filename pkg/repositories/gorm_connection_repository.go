package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gateway/pkg/crypto"
	"github.com/ekaya-inc/ekaya-gateway/pkg/models"
)

// connectionRow is the persisted form of models.Connection.
type connectionRow struct {
	ID               string `gorm:"primaryKey"`
	Name             string `gorm:"not null"`
	Type             string `gorm:"not null"`
	Host             string
	Port             int
	Database         string
	Username         string
	SealedConnString string `gorm:"column:connection_string;type:text;not null"`
	KeyFingerprint   string `gorm:"not null"`
	CreatedAt        time.Time
	LastUsedAt       *time.Time
}

func (connectionRow) TableName() string {
	return "gateway_connections"
}

// OpenSQLite opens (creating if needed) the SQLite file at path.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store %s: %w", path, err)
	}
	return db, nil
}

// gormConnectionRepository stores connections through gorm with sealed connection strings.
type gormConnectionRepository struct {
	db  *gorm.DB
	enc *crypto.CredentialEncryptor
}

// NewGormConnectionRepository migrates the schema and returns a repository.
// Connection strings are sealed with enc, bound to the connection ID.
func NewGormConnectionRepository(db *gorm.DB, enc *crypto.CredentialEncryptor) (ConnectionRepository, error) {
	if enc == nil {
		return nil, fmt.Errorf("a credential encryptor is required")
	}
	if err := db.AutoMigrate(&connectionRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate connection store: %w", err)
	}
	return &gormConnectionRepository{db: db, enc: enc}, nil
}

func (r *gormConnectionRepository) Save(ctx context.Context, conn *models.Connection) error {
	sealed, err := r.enc.Seal(conn.ID, conn.ConnectionString)
	if err != nil {
		return fmt.Errorf("failed to seal connection string: %w", err)
	}

	row := connectionRow{
		ID:               conn.ID,
		Name:             conn.Name,
		Type:             conn.Type,
		Host:             conn.Host,
		Port:             conn.Port,
		Database:         conn.Database,
		Username:         conn.Username,
		SealedConnString: sealed,
		KeyFingerprint:   r.enc.Fingerprint(),
		CreatedAt:        conn.CreatedAt,
		LastUsedAt:       conn.LastUsedAt,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	return nil
}

func (r *gormConnectionRepository) Get(ctx context.Context, id string) (*models.Connection, error) {
	var row connectionRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return r.toModel(&row)
}

func (r *gormConnectionRepository) List(ctx context.Context) ([]*models.Connection, error) {
	var rows []connectionRow
	if err := r.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	out := make([]*models.Connection, 0, len(rows))
	for i := range rows {
		conn, err := r.toModel(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	return out, nil
}

func (r *gormConnectionRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&connectionRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}

func (r *gormConnectionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&connectionRow{}).Where("id = ?", id).Update("last_used_at", at.UTC())
	if res.Error != nil {
		return fmt.Errorf("failed to touch connection: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *gormConnectionRepository) toModel(row *connectionRow) (*models.Connection, error) {
	if row.KeyFingerprint != r.enc.Fingerprint() {
		return nil, fmt.Errorf("connection %s: %w", row.ID, apperrors.ErrCredentialsKeyMismatch)
	}

	connString, err := r.enc.Open(row.ID, row.SealedConnString)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", row.ID, err)
	}

	return &models.Connection{
		ID:               row.ID,
		Name:             row.Name,
		Type:             row.Type,
		Host:             row.Host,
		Port:             row.Port,
		Database:         row.Database,
		Username:         row.Username,
		CreatedAt:        row.CreatedAt,
		LastUsedAt:       row.LastUsedAt,
		ConnectionString: connString,
	}, nil
}
