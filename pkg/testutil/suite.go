package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stockwise/stockwise-backend/pkg/database"
	"github.com/stockwise/stockwise-backend/pkg/logger"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (or reuses) the shared container and applies
// the given schema statements. Callers should skip in short mode first.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    testutil.SkipIfShort(t)
//	    suite := testutil.RequireIntegrationSuite(t, kvstore.Schema)
//	    // ... run tests against suite.DB
//	}
func NewIntegrationSuite(ctx context.Context, schema ...string) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	if err := ApplySchema(ctx, db, schema...); err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        database.Wrap(db, log),
		Logger:    log,
	}, nil
}

// RequireIntegrationSuite is NewIntegrationSuite failing the test on error
func RequireIntegrationSuite(t *testing.T, schema ...string) *IntegrationSuite {
	t.Helper()
	suite, err := NewIntegrationSuite(context.Background(), schema...)
	if err != nil {
		t.Fatalf("failed to create integration suite: %v", err)
	}
	return suite
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// Truncate empties tables and registers the same for test cleanup
func (s *IntegrationSuite) Truncate(t *testing.T, tables ...string) {
	t.Helper()
	if len(tables) == 0 {
		return
	}

	stmt := fmt.Sprintf("TRUNCATE %s CASCADE", strings.Join(tables, ", "))
	if _, err := s.RawDB.Exec(stmt); err != nil {
		t.Fatalf("failed to truncate %v: %v", tables, err)
	}
	t.Cleanup(func() {
		if _, err := s.RawDB.Exec(stmt); err != nil {
			t.Logf("warning: failed to truncate %v: %v", tables, err)
		}
	})
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}
