package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kingdombarber/insight/internal/testutil"
	"github.com/kingdombarber/insight/pkg/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLProvider_FetchDataset(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"Nombre_Sede", "Fecha", "Precio"}).
		AddRow("Centro", "2024-05-01", int64(25000)).
		AddRow([]byte("Norte"), "2024-05-02", nil)
	mock.ExpectQuery("SELECT \\* FROM vista_citas_completa").WillReturnRows(rows)
	mock.ExpectClose()

	p := NewSQLProvider(db, "", testutil.NewTestLogger(t))
	ds, err := p.FetchDataset(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Nombre_Sede", "Fecha", "Precio"}, ds.ColumnNames())
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, "Norte", ds.Row(1)["Nombre_Sede"])
	assert.Nil(t, ds.Row(1)["Precio"])
	col, _ := ds.Column("Fecha")
	assert.Equal(t, dataset.TypeDate, col.Type)

	require.NoError(t, p.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLProvider_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("relation does not exist"))

	_, err = NewSQLProvider(db, "SELECT 1", nil).FetchDataset(context.Background())
	assert.ErrorContains(t, err, "relation does not exist")
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "oracle", "x", "", testutil.NewTestLogger(t))
	assert.ErrorContains(t, err, "unsupported sql driver")
}

func TestDemoDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "demo.db")

	require.NoError(t, CreateDemoDatabase(ctx, path))
	require.NoError(t, CreateDemoDatabase(ctx, path), "idempotent")

	p, err := OpenSQL(ctx, "sqlite", path, "", testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	ds, err := p.FetchDataset(ctx)
	require.NoError(t, err)

	assert.Equal(t, 600, ds.Len())
	for _, c := range dataset.DefaultFields().Columns() {
		assert.True(t, ds.HasColumn(c), "column %s", c)
	}
	col, _ := ds.Column("Fecha")
	assert.Equal(t, dataset.TypeDate, col.Type)
	col, _ = ds.Column("Precio")
	assert.Equal(t, dataset.TypeInt, col.Type)

	sites, err := ds.Unique("Nombre_Sede")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sede Centro", "Sede Norte", "Sede Sur"}, sites)
}

func TestOpen_Demo(t *testing.T) {
	p, err := Open(context.Background(), Config{Kind: "demo", Path: filepath.Join(t.TempDir(), "demo.db"), Cache: true}, nil)
	require.NoError(t, err)
	defer func() { _ = p.(Closer).Close() }()

	ds, err := p.FetchDataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 600, ds.Len())
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open(context.Background(), Config{Kind: "ftp"}, nil)
	assert.ErrorContains(t, err, "unknown source kind")
}

func TestFileProvider_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citas.csv")
	require.NoError(t, os.WriteFile(path, []byte("Nombre_Sede,Fecha,Precio\nCentro,2024-05-01,25000\nNorte,2024-05-02,15000\n"), 0o600))

	p, err := NewFileProvider(path, testutil.NewTestLogger(t))
	require.NoError(t, err)

	ds, err := p.FetchDataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"Nombre_Sede", "Fecha", "Precio"}, ds.ColumnNames())
	col, _ := ds.Column("Fecha")
	assert.Equal(t, dataset.TypeDate, col.Type)
	assert.Equal(t, int64(25000), ds.Row(0)["Precio"])
}

func TestFileProvider_Errors(t *testing.T) {
	_, err := NewFileProvider("", nil)
	assert.Error(t, err)

	_, err = NewFileProvider("data.xlsx", nil)
	assert.ErrorContains(t, err, "unsupported file type")

	p, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.csv"), nil)
	require.NoError(t, err)
	_, err = p.FetchDataset(context.Background())
	assert.ErrorContains(t, err, "dataset file")
}

func TestHTTPProvider(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"array", `[{"Nombre_Sede":"Centro","Precio":25000},{"Nombre_Sede":"Norte","Precio":15000.5}]`, 2},
		{"envelope", `{"data":[{"Nombre_Sede":"Centro","Precio":25000}]}`, 1},
		{"empty", `[]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p, err := NewHTTPProvider(srv.URL, map[string]string{"X-API-Key": "secret"}, 0, 0)
			require.NoError(t, err)

			ds, err := p.FetchDataset(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ds.Len())
		})
	}
}

func TestHTTPProvider_Numbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"Precio":25000},{"Precio":15000}]`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(srv.URL, nil, time.Second, 0)
	require.NoError(t, err)
	ds, err := p.FetchDataset(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(25000), ds.Row(0)["Precio"])
	col, _ := ds.Column("Precio")
	assert.Equal(t, dataset.TypeInt, col.Type)
}

func TestHTTPProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"status", http.StatusServiceUnavailable, "down", "status 503"},
		{"not json", http.StatusOK, "<html>", "decode"},
		{"no data field", http.StatusOK, `{"items":[]}`, "no data field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p, err := NewHTTPProvider(srv.URL, nil, 0, 0)
			require.NoError(t, err)
			_, err = p.FetchDataset(context.Background())
			assert.ErrorContains(t, err, tt.wantMsg)
		})
	}

	_, err := NewHTTPProvider(" ", nil, 0, 0)
	assert.Error(t, err)
}

func TestHTTPProvider_ResponseLimit(t *testing.T) {
	body := `[{"Nombre_Sede":"Centro","Precio":25000}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(srv.URL, nil, 0, int64(len(body)))
	require.NoError(t, err)
	ds, err := p.FetchDataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())

	p, err = NewHTTPProvider(srv.URL, nil, 0, int64(len(body)-1))
	require.NoError(t, err)
	_, err = p.FetchDataset(context.Background())
	assert.ErrorContains(t, err, "exceeds")

	p, err = NewHTTPProvider(srv.URL, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxResponseBytes, p.maxBytes)
}

func TestStaticProvider(t *testing.T) {
	ds, err := dataset.New([]string{"a"}, [][]any{{1}})
	require.NoError(t, err)

	got, err := StaticProvider{Dataset: ds}.FetchDataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ds.Records(), got.Records())

	got, err = StaticProvider{}.FetchDataset(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

type countingProvider struct {
	calls atomic.Int32
	ds    *dataset.Dataset
}

func (c *countingProvider) FetchDataset(context.Context) (*dataset.Dataset, error) {
	c.calls.Add(1)
	return c.ds, nil
}

func TestCachedProvider(t *testing.T) {
	ds, err := dataset.New([]string{"a"}, [][]any{{1}, {2}})
	require.NoError(t, err)
	next := &countingProvider{ds: ds}
	c := NewCachedProvider(next, testutil.NewTestLogger(t))

	assert.True(t, c.LoadedAt().IsZero())
	for range 3 {
		got, err := c.FetchDataset(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, got.Len())
	}
	assert.Equal(t, int32(1), next.calls.Load())
	assert.False(t, c.LoadedAt().IsZero())

	c.Invalidate()
	_, err = c.FetchDataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
	assert.NoError(t, c.Close())
}

func TestCachedProvider_WatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citas.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0o600))

	ds, err := dataset.New([]string{"a"}, [][]any{{1}})
	require.NoError(t, err)
	next := &countingProvider{ds: ds}
	c := NewCachedProvider(next, testutil.NewTestLogger(t))
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.WatchFile(ctx, path))
	assert.Error(t, c.WatchFile(ctx, path), "second watch")

	_, err = c.FetchDataset(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("a\n1\n2\n"), 0o600))
	assert.Eventually(t, func() bool { return c.LoadedAt().IsZero() }, 5*time.Second, 20*time.Millisecond)
}
