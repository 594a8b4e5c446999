package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// pgUniqueViolation is the SQLSTATE postgres reports for unique index conflicts
const pgUniqueViolation = "23505"

type Store struct {
	db     *gorm.DB
	driver string
}

func New(ctx context.Context, driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(gormLogWriter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		// One connection keeps :memory: databases shared and serializes writers
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// gormLogWriter routes GORM warnings (slow queries, errors) into zerolog
type gormLogWriter struct{}

func (gormLogWriter) Printf(format string, args ...any) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

// User operations
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.firstUser(ctx, "id = ?", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.firstUser(ctx, "email = ?", email)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.firstUser(ctx, "username = ?", username)
}

func (s *Store) GetUserByProviderOrEmail(
	ctx context.Context,
	provider, subject, email string,
) (*models.User, error) {
	user, err := s.firstUser(ctx, "provider = ? AND provider_id = ?", provider, subject)
	if err == nil || !errors.Is(err, ErrRecordNotFound) {
		return user, err
	}
	return s.firstUser(ctx, "email = ?", email)
}

func (s *Store) firstUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(query, args...).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts user. The first account ever stored becomes ADMIN.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.driver == "postgres" {
			// Serialize concurrent first-user creates; SHARE ROW EXCLUSIVE conflicts with itself
			if err := tx.Exec("LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
				return err
			}
		}

		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			user.Role = models.RoleAdmin
		}
		return tx.Create(user).Error
	})
	return classifyWriteError(err)
}

// UpdateUser applies a partial update keyed by column name
func (s *Store) UpdateUser(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return classifyWriteError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ToggleUserVerified flips verified with a single UPDATE so concurrent toggles cannot both
// observe the same prior value.
func (s *Store) ToggleUserVerified(ctx context.Context, id string) (bool, error) {
	var values []bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ?", id).
			Update("verified", gorm.Expr("NOT verified"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return tx.Model(&models.User{}).
			Where("id = ?", id).
			Pluck("verified", &values).Error
	})
	if err != nil {
		return false, err
	}
	if len(values) == 0 {
		return false, ErrRecordNotFound
	}
	return values[0], nil
}

func (s *Store) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	var value any = gorm.Expr("NULL")
	if hash != nil {
		value = *hash
	}
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("refresh_token_hash", value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// SwapRefreshTokenHash is a compare-and-swap on the stored refresh hash.
// Of two concurrent rotations presenting the same token, exactly one succeeds.
func (s *Store) SwapRefreshTokenHash(ctx context.Context, id, expected, next string) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND refresh_token_hash = ?", id, expected).
		Update("refresh_token_hash", next)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleRefreshToken
	}
	return nil
}

// SetInitialPasswordHash stores hash only while the account has no password.
// Of two concurrent first-password writes, exactly one succeeds.
func (s *Store) SetInitialPasswordHash(ctx context.Context, id, hash string) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND (password_hash IS NULL OR password_hash = '')", id).
		Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrRecordNotFound
	}
	return ErrPasswordHashSet
}

func (s *Store) ListUsers(
	ctx context.Context,
	params PaginationParams,
) ([]models.User, PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if params.Search != "" {
		pattern := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var users []models.User
	if err := query.
		Order("created_at ASC, id ASC").
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&users).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	return users, CalculatePagination(total, params.Page, params.PageSize), nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

// CountActiveSessions counts users currently holding a refresh token
func (s *Store) CountActiveSessions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("refresh_token_hash IS NOT NULL AND refresh_token_hash <> ''").
		Count(&count).Error
	return count, err
}

// Health checks the database connection
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// classifyWriteError converts driver unique-index failures into *UniqueViolationError
func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return err
		}
		return &UniqueViolationError{Fields: postgresUniqueFields(pgErr), Err: err}
	}

	// sqlite: "UNIQUE constraint failed: users.email"
	const sqlitePrefix = "UNIQUE constraint failed:"
	msg := err.Error()
	if idx := strings.Index(msg, sqlitePrefix); idx >= 0 {
		var fields []string
		for _, col := range strings.Split(msg[idx+len(sqlitePrefix):], ",") {
			col = strings.TrimSpace(col)
			if dot := strings.LastIndex(col, "."); dot >= 0 {
				col = col[dot+1:]
			}
			if col != "" {
				fields = append(fields, col)
			}
		}
		return &UniqueViolationError{Fields: fields, Err: err}
	}

	return err
}

// postgresUniqueFields reads the columns from "Key (email)=(a@x.com) already exists."
// and falls back to the index name.
func postgresUniqueFields(pgErr *pgconn.PgError) []string {
	if start := strings.Index(pgErr.Detail, "Key ("); start >= 0 {
		rest := pgErr.Detail[start+len("Key ("):]
		if end := strings.Index(rest, ")="); end >= 0 {
			var fields []string
			for _, col := range strings.Split(rest[:end], ",") {
				fields = append(fields, strings.TrimSpace(col))
			}
			return fields
		}
	}

	switch pgErr.ConstraintName {
	case "idx_users_email":
		return []string{"email"}
	case "idx_users_username":
		return []string{"username"}
	case "idx_users_provider_subject":
		return []string{"provider", "provider_id"}
	}
	return nil
}
