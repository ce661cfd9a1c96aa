package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureHandler records log records for assertion in tests.
type captureHandler struct {
	mu    sync.Mutex
	attrs []map[string]slog.Value
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := make(map[string]slog.Value)
	m["msg"] = slog.StringValue(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value
		return true
	})
	h.attrs = append(h.attrs, m)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(name string) slog.Handler { return h }

func (h *captureHandler) recordsFor(t *testing.T, msg string) []map[string]slog.Value {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []map[string]slog.Value
	for _, m := range h.attrs {
		if m["msg"].String() == msg {
			out = append(out, m)
		}
	}
	return out
}

func (h *captureHandler) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attrs = nil
}

// eachDriver runs fn once per supported SQLite driver.
func eachDriver(t *testing.T, fn func(t *testing.T, drv driver.Driver)) {
	for _, name := range []string{DriverMattn, DriverModernc} {
		t.Run(name, func(t *testing.T) {
			drv, err := driverFor(name)
			require.NoError(t, err, "driverFor(%q)", name)
			fn(t, drv)
		})
	}
}

func openLogged(t *testing.T, drv driver.Driver, logger *slog.Logger) *sql.DB {
	t.Helper()
	connector, err := NewLoggingConnector(drv, ":memory:", logger)
	require.NoError(t, err)
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewLoggingConnector_nilLoggerUsesDefault(t *testing.T) {
	drv, _ := driverFor(DriverMattn)
	conn, err := NewLoggingConnector(drv, ":memory:", nil)
	require.NoError(t, err)
	assert.NotNil(t, conn.(*loggingConnector).logger)
}

func TestNewLoggingConnector_nilDriver(t *testing.T) {
	_, err := NewLoggingConnector(nil, ":memory:", nil)
	assert.Error(t, err)
}

func TestLoggingConnector_ExecAndQueryLogged(t *testing.T) {
	eachDriver(t, func(t *testing.T, drv driver.Driver) {
		handler := &captureHandler{}
		db := openLogged(t, drv, slog.New(handler))

		_, err := db.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY)`)
		require.NoError(t, err)
		recs := handler.recordsFor(t, "sql")
		require.NotEmpty(t, recs, "expected at least one sql log record for Exec")
		got := recs[len(recs)-1]
		assert.Equal(t, "exec", got["op"].String())
		assert.Equal(t, `CREATE TABLE t (id INTEGER PRIMARY KEY)`, got["sql"].String())

		handler.reset()
		var one int
		require.NoError(t, db.QueryRow(`SELECT 1`).Scan(&one))
		recs = handler.recordsFor(t, "sql")
		require.NotEmpty(t, recs, "expected sql log record for QueryRow")
		got = recs[len(recs)-1]
		assert.Equal(t, "query", got["op"].String())
		assert.Equal(t, `SELECT 1`, got["sql"].String())
	})
}

func TestLoggingConnector_ArgsLogged(t *testing.T) {
	eachDriver(t, func(t *testing.T, drv driver.Driver) {
		handler := &captureHandler{}
		db := openLogged(t, drv, slog.New(handler))

		_, err := db.Exec(`CREATE TABLE soil (zone TEXT, moisture REAL)`)
		require.NoError(t, err)
		handler.reset()

		_, err = db.Exec(`INSERT INTO soil (zone, moisture) VALUES (?, ?)`, "2동", 31.5)
		require.NoError(t, err)
		recs := handler.recordsFor(t, "sql")
		require.NotEmpty(t, recs, "expected sql log for Exec with args")
		got := recs[len(recs)-1]
		assert.Equal(t, `INSERT INTO soil (zone, moisture) VALUES (?, ?)`, got["sql"].String())
		assert.Equal(t, []any{"2동", "31.5"}, got["args"].Any())
	})
}

func TestLoggingConnector_TransactionCommits(t *testing.T) {
	eachDriver(t, func(t *testing.T, drv driver.Driver) {
		handler := &captureHandler{}
		db := openLogged(t, drv, slog.New(handler))

		_, err := db.Exec(`CREATE TABLE t (id INTEGER)`)
		require.NoError(t, err)
		tx, err := db.Begin()
		require.NoError(t, err)
		_, err = tx.Exec(`INSERT INTO t (id) VALUES (1)`)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
		assert.Equal(t, 1, n)

		var begins int
		for _, rec := range handler.recordsFor(t, "sql") {
			if rec["op"].String() == "begin" {
				begins++
			}
		}
		assert.Equal(t, 1, begins)
	})
}

func TestFormatArg(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{[]byte("raw"), "raw"},
		{int64(7), "7"},
		{12.25, "12.25"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatArg(tt.in), "formatArg(%v)", tt.in)
	}
}

func TestSQLLogger_DriverMethodsDocumented(t *testing.T) {
	f, err := parser.ParseFile(token.NewFileSet(), "sqllogger.go", nil, parser.ParseComments)
	require.NoError(t, err)

	var methods int
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || !fn.Name.IsExported() {
			continue
		}
		methods++
		assert.NotNil(t, fn.Doc, "%s has no doc comment", fn.Name.Name)
	}
	assert.Equal(t, 14, methods)
}
