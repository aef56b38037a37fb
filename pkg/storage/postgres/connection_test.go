package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/persona-insights/pkg/observability"
	"github.com/platinummonkey/persona-insights/pkg/storage"
)

func newPingMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	return db, mock
}

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, nil)
}

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"single URL", "postgres://localhost:5432/db", []string{"postgres://localhost:5432/db"}},
		{
			"URLs with whitespace",
			" postgres://host1:5432/db , postgres://host2:5432/db ",
			[]string{"postgres://host1:5432/db", "postgres://host2:5432/db"},
		},
		{
			"URLs with empty entries",
			"postgres://host1:5432/db,,postgres://host2:5432/db,",
			[]string{"postgres://host1:5432/db", "postgres://host2:5432/db"},
		},
		{"only commas and whitespace", " , , , ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func TestConnectionConfigFrom(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		cfg := storage.DefaultConfig()
		cfg.PostgresURL = "postgres://primary/db"
		cfg.PostgresReplicaURLs = []string{"postgres://replica/db"}

		cc := ConnectionConfigFrom(cfg)
		assert.Equal(t, DialectPostgres, cc.Dialect)
		assert.Equal(t, "postgres://primary/db", cc.PrimaryURL)
		assert.Equal(t, []string{"postgres://replica/db"}, cc.ReplicaURLs)
		assert.Equal(t, cfg.PostgresMaxConns, cc.MaxConns)
		assert.Equal(t, time.Hour, cc.MaxLifetime)
	})

	t.Run("sqlite uses a single connection", func(t *testing.T) {
		cfg := storage.DefaultConfig()
		cfg.Type = storage.TypeSQLite
		cfg.SQLitePath = "/tmp/insights.db"

		cc := ConnectionConfigFrom(cfg)
		assert.Equal(t, DialectSQLite, cc.Dialect)
		assert.Equal(t, "/tmp/insights.db", cc.PrimaryURL)
		assert.Equal(t, 1, cc.MaxConns)
		assert.Empty(t, cc.ReplicaURLs)
	})
}

func TestNewConnectionManager_SQLite(t *testing.T) {
	cm, err := NewConnectionManager(ConnectionConfig{
		Dialect:     DialectSQLite,
		PrimaryURL:  ":memory:",
		ReplicaURLs: []string{"ignored.db"},
		MaxConns:    1,
	}, quietLogger())
	require.NoError(t, err)
	defer cm.Close()

	assert.Equal(t, DialectSQLite, cm.Dialect())
	assert.Equal(t, 0, cm.ReplicaCount())
	assert.Same(t, cm.Primary(), cm.Replica())
	assert.NoError(t, cm.HealthCheck(context.Background()))
}

func TestNewConnectionManager_UnreachablePrimary(t *testing.T) {
	cm, err := NewConnectionManager(ConnectionConfig{
		Dialect:    DialectPostgres,
		PrimaryURL: "postgres://nonexistent.invalid:9999/testdb?connect_timeout=1&sslmode=disable",
		MaxConns:   2,
		Timeout:    2 * time.Second,
	}, quietLogger())
	assert.Error(t, err)
	assert.Nil(t, cm)
	assert.Contains(t, err.Error(), "failed to open primary")
}

func TestConnectionManager_Replica(t *testing.T) {
	t.Run("no replicas falls back to primary", func(t *testing.T) {
		primary, _ := newPingMock(t)
		cm := &ConnectionManager{primary: primary}
		assert.Same(t, primary, cm.Replica())
	})

	t.Run("round robin", func(t *testing.T) {
		primary, _ := newPingMock(t)
		r1, _ := newPingMock(t)
		r2, _ := newPingMock(t)
		cm := &ConnectionManager{primary: primary, replicas: []*sql.DB{r1, r2}}

		assert.Same(t, r2, cm.Replica())
		assert.Same(t, r1, cm.Replica())
		assert.Same(t, r2, cm.Replica())
	})
}

func TestConnectionManager_HealthCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy", func(t *testing.T) {
		primary, pm := newPingMock(t)
		replica, rm := newPingMock(t)
		pm.ExpectPing()
		rm.ExpectPing()

		cm := &ConnectionManager{primary: primary, replicas: []*sql.DB{replica}}
		assert.NoError(t, cm.HealthCheck(ctx))
	})

	t.Run("primary down", func(t *testing.T) {
		primary, pm := newPingMock(t)
		pm.ExpectPing().WillReturnError(errors.New("connection refused"))

		cm := &ConnectionManager{primary: primary}
		err := cm.HealthCheck(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "primary unhealthy")
	})

	t.Run("all replicas down", func(t *testing.T) {
		primary, pm := newPingMock(t)
		r1, m1 := newPingMock(t)
		r2, m2 := newPingMock(t)
		pm.ExpectPing()
		m1.ExpectPing().WillReturnError(errors.New("down"))
		m2.ExpectPing().WillReturnError(errors.New("down"))

		cm := &ConnectionManager{primary: primary, replicas: []*sql.DB{r1, r2}}
		err := cm.HealthCheck(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "replica-0, replica-1")
	})

	t.Run("some replicas down", func(t *testing.T) {
		primary, pm := newPingMock(t)
		r1, m1 := newPingMock(t)
		r2, m2 := newPingMock(t)
		pm.ExpectPing()
		m1.ExpectPing().WillReturnError(errors.New("down"))
		m2.ExpectPing()

		cm := &ConnectionManager{primary: primary, replicas: []*sql.DB{r1, r2}}
		assert.NoError(t, cm.HealthCheck(ctx))
	})
}

func TestConnectionManager_RemoveUnhealthyReplicas(t *testing.T) {
	primary, _ := newPingMock(t)
	r1, m1 := newPingMock(t)
	r2, m2 := newPingMock(t)
	m1.ExpectPing().WillReturnError(errors.New("down"))
	m1.ExpectClose()
	m2.ExpectPing()

	cm := &ConnectionManager{primary: primary, replicas: []*sql.DB{r1, r2}}
	removed := cm.RemoveUnhealthyReplicas(context.Background())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, cm.ReplicaCount())
	assert.Same(t, r2, cm.Replica())
	assert.NoError(t, m1.ExpectationsWereMet())
}

func TestConnectionManager_Close(t *testing.T) {
	primary, pm := newPingMock(t)
	replica, rm := newPingMock(t)
	pm.ExpectClose()
	rm.ExpectClose().WillReturnError(errors.New("close failed"))

	cm := &ConnectionManager{primary: primary, replicas: []*sql.DB{replica}}
	err := cm.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replica-0 close error")
	assert.Equal(t, 0, cm.ReplicaCount())
	assert.NoError(t, pm.ExpectationsWereMet())
}

func TestConnectionManager_StartHealthCheckRoutine(t *testing.T) {
	primary, _ := newPingMock(t)
	cm := &ConnectionManager{primary: primary, logger: quietLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	cm.StartHealthCheckRoutine(ctx, 10*time.Millisecond, nil)
	time.Sleep(35 * time.Millisecond)
	cancel()

	assert.Equal(t, 0, cm.ReplicaCount())
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "postgres", DialectPostgres.DriverName())
	assert.Equal(t, "sqlite3", DialectSQLite.DriverName())
	assert.Equal(t, "TIMESTAMPTZ", DialectPostgres.timestampType())
	assert.Equal(t, "TIMESTAMP", DialectSQLite.timestampType())
}
