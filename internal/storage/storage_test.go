package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportKey(t *testing.T) {
	key, err := ReportKey("2b0c", "report.md")
	require.NoError(t, err)
	assert.Equal(t, "reports/2b0c/report.md", key)

	_, err = ReportKey("../x", "report.md")
	assert.Error(t, err)
	_, err = ReportKey("abc", "a/b")
	assert.Error(t, err)
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "/reports/a/report.md", want: "reports/a/report.md"},
		{key: "reports//a/./b", want: "reports/a/b"},
		{key: "", wantErr: true},
		{key: "..", wantErr: true},
		{key: "../secrets", wantErr: true},
		{key: "a/../../b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := CleanKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	info, err := store.Put(ctx, "reports/a/report.md", strings.NewReader("# hola"), 6, PutOptions{ContentType: "text/markdown"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), info.Size)
	assert.Equal(t, "reports/a/report.md", info.Key)

	rc, err := store.Get(ctx, "reports/a/report.md")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "# hola", string(body))

	require.NoError(t, store.Delete(ctx, "reports/a/report.md"))
	require.NoError(t, store.Delete(ctx, "reports/a/report.md"), "missing is fine")

	_, err = store.Stat(ctx, "reports/a/report.md")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, err = store.Get(ctx, "reports/a/report.md")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = store.Put(ctx, "../escape", strings.NewReader("x"), 1, PutOptions{})
	assert.Error(t, err)
}

func TestNewDirStore_RequiresRoot(t *testing.T) {
	_, err := NewDirStore(" ")
	assert.Error(t, err)
}
