package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// TestStoreWithSQLite tests store operations with SQLite
func TestStoreWithSQLite(t *testing.T) {
	testBasicOperations(t, "sqlite", nil)
}

// TestStoreWithPostgres tests store operations with PostgreSQL
func TestStoreWithPostgres(t *testing.T) {
	// Skip if running short tests or Docker is not available
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	// Recover from panic if Docker is not available
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping PostgreSQL test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	testBasicOperations(t, "postgres", pgContainer)
}

// createFreshStore creates a new store instance for test isolation
// For SQLite, each call creates a fresh :memory: database
// For PostgreSQL, each call creates a uniquely-named database in the container
func createFreshStore(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) *Store {
	t.Helper()
	ctx := context.Background()

	var dsn string
	switch driver {
	case "sqlite":
		dsn = ":memory:"
	case "postgres":
		dbName := "test_" + uuid.New().String()[:8]

		_, _, err := pgContainer.Exec(
			ctx,
			[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", "CREATE DATABASE " + dbName},
		)
		require.NoError(t, err)

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432")
		require.NoError(t, err)
		dsn = fmt.Sprintf(
			"host=%s port=%s user=testuser password=testpass dbname=%s sslmode=disable",
			host, port.Port(), dbName,
		)

		t.Cleanup(func() {
			_, _, _ = pgContainer.Exec(
				context.Background(),
				[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", "DROP DATABASE IF EXISTS " + dbName},
			)
		})
	default:
		t.Fatalf("unsupported driver: %s", driver)
	}

	store, err := New(ctx, driver, dsn)
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newTestUser(email, username string) *models.User {
	return &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: "hashedpassword",
		Role:         models.RoleUser,
	}
}

func strPtr(s string) *string { return &s }

// testBasicOperations runs every store scenario against the given driver.
// Each subtest creates a fresh store instance for isolation
func testBasicOperations(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) {
	ctx := context.Background()

	t.Run("CreateAndGetUser", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		user := newTestUser("a@x.com", "alice")
		require.NoError(t, store.CreateUser(ctx, user))
		require.NotEmpty(t, user.ID)

		byID, err := store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)

		byEmail, err := store.GetUserByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)

		byUsername, err := store.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byUsername.ID)

		_, err = store.GetUserByID(ctx, uuid.New().String())
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("FirstUserBecomesAdmin", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		first := newTestUser("first@x.com", "first")
		require.NoError(t, store.CreateUser(ctx, first))
		assert.Equal(t, models.RoleAdmin, first.Role)

		second := newTestUser("second@x.com", "second")
		require.NoError(t, store.CreateUser(ctx, second))
		assert.Equal(t, models.RoleUser, second.Role)

		stored, err := store.GetUserByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, stored.Role)
	})

	t.Run("UniqueViolationNamesColumn", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		require.NoError(t, store.CreateUser(ctx, newTestUser("a@x.com", "alice")))

		err := store.CreateUser(ctx, newTestUser("a@x.com", "other"))
		var uv *UniqueViolationError
		require.ErrorAs(t, err, &uv)
		assert.True(t, uv.HasField("email"))
		assert.ErrorIs(t, err, ErrUniqueViolation)

		err = store.CreateUser(ctx, newTestUser("b@x.com", "alice"))
		require.ErrorAs(t, err, &uv)
		assert.True(t, uv.HasField("username"))
	})

	t.Run("UpdateUser", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		alice := newTestUser("a@x.com", "alice")
		bob := newTestUser("b@x.com", "bob")
		require.NoError(t, store.CreateUser(ctx, alice))
		require.NoError(t, store.CreateUser(ctx, bob))

		require.NoError(t, store.UpdateUser(ctx, alice.ID, map[string]any{
			"verified": true,
			"avatar":   "https://example.com/a.png",
		}))
		updated, err := store.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.True(t, updated.Verified)
		assert.Equal(t, "https://example.com/a.png", updated.Avatar)

		err = store.UpdateUser(ctx, bob.ID, map[string]any{"username": "alice"})
		var uv *UniqueViolationError
		require.ErrorAs(t, err, &uv)
		assert.True(t, uv.HasField("username"))

		err = store.UpdateUser(ctx, uuid.New().String(), map[string]any{"verified": true})
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("ToggleUserVerified", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		user := newTestUser("a@x.com", "alice")
		require.NoError(t, store.CreateUser(ctx, user))

		verified, err := store.ToggleUserVerified(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, verified)

		verified, err = store.ToggleUserVerified(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, verified)

		_, err = store.ToggleUserVerified(ctx, uuid.New().String())
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("GetUserByProviderOrEmail", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		linked := newTestUser("linked@x.com", "linked")
		linked.Provider = strPtr(models.ProviderGoogle)
		linked.ProviderID = strPtr("g-1")
		require.NoError(t, store.CreateUser(ctx, linked))

		byEmail := newTestUser("b@x.com", "bee")
		require.NoError(t, store.CreateUser(ctx, byEmail))

		// Subject match wins over an email match on another row
		found, err := store.GetUserByProviderOrEmail(ctx, models.ProviderGoogle, "g-1", "b@x.com")
		require.NoError(t, err)
		assert.Equal(t, linked.ID, found.ID)

		found, err = store.GetUserByProviderOrEmail(ctx, models.ProviderGoogle, "g-2", "b@x.com")
		require.NoError(t, err)
		assert.Equal(t, byEmail.ID, found.ID)

		_, err = store.GetUserByProviderOrEmail(ctx, models.ProviderGoogle, "g-3", "none@x.com")
		assert.ErrorIs(t, err, ErrRecordNotFound)

		dup := newTestUser("dup@x.com", "dup")
		dup.Provider = strPtr(models.ProviderGoogle)
		dup.ProviderID = strPtr("g-1")
		var uv *UniqueViolationError
		require.ErrorAs(t, store.CreateUser(ctx, dup), &uv)
	})

	t.Run("RefreshTokenHashLifecycle", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		user := newTestUser("a@x.com", "alice")
		require.NoError(t, store.CreateUser(ctx, user))

		count, err := store.CountActiveSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)

		require.NoError(t, store.SetRefreshTokenHash(ctx, user.ID, strPtr("h1")))
		count, err = store.CountActiveSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		// Swap succeeds only against the current value
		require.NoError(t, store.SwapRefreshTokenHash(ctx, user.ID, "h1", "h2"))
		err = store.SwapRefreshTokenHash(ctx, user.ID, "h1", "h3")
		assert.ErrorIs(t, err, ErrStaleRefreshToken)

		stored, err := store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.RefreshTokenHash)
		assert.Equal(t, "h2", *stored.RefreshTokenHash)

		require.NoError(t, store.SetRefreshTokenHash(ctx, user.ID, nil))
		stored, err = store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.RefreshTokenHash)

		err = store.SwapRefreshTokenHash(ctx, user.ID, "h2", "h4")
		assert.ErrorIs(t, err, ErrStaleRefreshToken)

		err = store.SetRefreshTokenHash(ctx, uuid.New().String(), nil)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("SetInitialPasswordHash", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		user := newTestUser("oauth@x.com", "oauth")
		user.PasswordHash = ""
		require.NoError(t, store.CreateUser(ctx, user))

		require.NoError(t, store.SetInitialPasswordHash(ctx, user.ID, "first"))
		err := store.SetInitialPasswordHash(ctx, user.ID, "second")
		assert.ErrorIs(t, err, ErrPasswordHashSet)

		stored, err := store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", stored.PasswordHash)

		err = store.SetInitialPasswordHash(ctx, uuid.New().String(), "x")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("ListUsers", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		for i := range 5 {
			require.NoError(t, store.CreateUser(ctx, newTestUser(
				fmt.Sprintf("pilot%d@x.com", i),
				fmt.Sprintf("pilot%d", i),
			)))
		}
		require.NoError(t, store.CreateUser(ctx, newTestUser("tower@x.com", "tower")))

		users, page, err := store.ListUsers(ctx, NewPaginationParams(1, 2, ""))
		require.NoError(t, err)
		assert.Len(t, users, 2)
		assert.Equal(t, int64(6), page.Total)
		assert.Equal(t, 3, page.TotalPages)
		assert.True(t, page.HasNext)

		users, page, err = store.ListUsers(ctx, NewPaginationParams(1, 10, "PILOT"))
		require.NoError(t, err)
		assert.Len(t, users, 5)
		assert.Equal(t, int64(5), page.Total)

		total, err := store.CountUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(6), total)
	})

	t.Run("AuditLogs", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		now := time.Now()
		actor := uuid.New().String()

		logs := []*models.AuditLog{
			{
				ID:          uuid.New().String(),
				EventType:   models.EventLoginSuccess,
				EventTime:   now,
				Severity:    models.SeverityInfo,
				ActorUserID: actor,
				Success:     true,
				Details:     models.AuditDetails{"method": "password"},
				CreatedAt:   now,
			},
			{
				ID:          uuid.New().String(),
				EventType:   models.EventLoginFailure,
				EventTime:   now.Add(-time.Minute),
				Severity:    models.SeverityWarning,
				ActorUserID: actor,
				CreatedAt:   now.Add(-time.Minute),
			},
			{
				ID:        uuid.New().String(),
				EventType: models.EventRegister,
				EventTime: now.Add(-48 * time.Hour),
				Severity:  models.SeverityInfo,
				Success:   true,
				CreatedAt: now.Add(-48 * time.Hour),
			},
		}
		require.NoError(t, store.CreateAuditLogBatch(ctx, logs))

		all, page, err := store.GetAuditLogsPaginated(ctx, NewPaginationParams(1, 10, ""), AuditLogFilters{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		require.Len(t, all, 3)
		assert.Equal(t, models.EventLoginSuccess, all[0].EventType)
		assert.Equal(t, "password", all[0].Details["method"])

		failed := false
		filtered, _, err := store.GetAuditLogsPaginated(ctx, NewPaginationParams(1, 10, ""), AuditLogFilters{
			ActorUserID: actor,
			Success:     &failed,
		})
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		assert.Equal(t, models.EventLoginFailure, filtered[0].EventType)

		deleted, err := store.DeleteOldAuditLogs(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})

	t.Run("Health", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		assert.NoError(t, store.Health(ctx))
	})
}

// TestDriverFactory tests the driver factory pattern
func TestDriverFactory(t *testing.T) {
	tests := []struct {
		name        string
		driver      string
		dsn         string
		expectError bool
	}{
		{
			name:        "SQLite valid",
			driver:      "sqlite",
			dsn:         ":memory:",
			expectError: false,
		},
		{
			name:        "Unsupported driver",
			driver:      "mysql",
			dsn:         "user:pass@tcp(localhost:3306)/dbname",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialector, err := GetDialector(tt.driver, tt.dsn)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, dialector)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, dialector)
			}
		})
	}
}

func TestRegisterDriver(t *testing.T) {
	called := false
	RegisterDriver("custom", func(dsn string) gorm.Dialector {
		called = true
		return nil
	})

	dialector, err := GetDialector("custom", "test-dsn")
	assert.NoError(t, err)
	assert.True(t, called)
	assert.Nil(t, dialector)
}

func TestClassifyWriteError(t *testing.T) {
	sqliteErr := errors.New("UNIQUE constraint failed: users.provider, users.provider_id")
	err := classifyWriteError(sqliteErr)

	var uv *UniqueViolationError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, []string{"provider", "provider_id"}, uv.Fields)
	assert.ErrorIs(t, err, sqliteErr)

	other := errors.New("disk I/O error")
	assert.Same(t, other, classifyWriteError(other))
	assert.NoError(t, classifyWriteError(nil))
}

func TestCalculatePagination(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		page     int
		size     int
		expected PaginationResult
	}{
		{
			name:     "empty",
			total:    0,
			page:     1,
			size:     20,
			expected: PaginationResult{Total: 0, TotalPages: 0, CurrentPage: 1, PageSize: 20},
		},
		{
			name:  "middle page",
			total: 45,
			page:  2,
			size:  20,
			expected: PaginationResult{
				Total: 45, TotalPages: 3, CurrentPage: 2, PageSize: 20, HasPrev: true, HasNext: true,
			},
		},
		{
			name:     "page beyond range clamps",
			total:    5,
			page:     9,
			size:     5,
			expected: PaginationResult{Total: 5, TotalPages: 1, CurrentPage: 1, PageSize: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CalculatePagination(tt.total, tt.page, tt.size))
		})
	}
}

func TestNewPaginationParams(t *testing.T) {
	p := NewPaginationParams(0, 0, "q")
	assert.Equal(t, PaginationParams{Page: 1, PageSize: 20, Search: "q"}, p)
	assert.Equal(t, 0, p.Offset())

	p = NewPaginationParams(3, 500, "")
	assert.Equal(t, 100, p.PageSize)
	assert.Equal(t, 200, p.Offset())
}
