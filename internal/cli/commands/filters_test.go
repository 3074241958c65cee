package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    FilterOptions
		wantErr string
		check   func(t *testing.T, o FilterOptions)
	}{
		{
			name: "empty",
			opts: FilterOptions{},
		},
		{
			name: "full",
			opts: FilterOptions{Site: "Centro", Barber: "Ana Gómez", Service: "Corte", From: "2024-05-01", To: " 2024-05-31 "},
			check: func(t *testing.T, o FilterOptions) {
				f, err := o.Filter()
				require.NoError(t, err)
				assert.Equal(t, "Centro", f.Site)
				assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), f.From)
				assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), f.To)
			},
		},
		{
			name: "same day range",
			opts: FilterOptions{From: "2024-05-01", To: "2024-05-01"},
		},
		{
			name:    "bad to",
			opts:    FilterOptions{To: "31/05/2024"},
			wantErr: "invalid --to",
		},
		{
			name:    "reversed",
			opts:    FilterOptions{From: "2024-06-01", To: "2024-05-01"},
			wantErr: "is before --from",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Filter()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, tt.opts)
			}
		})
	}
}

func TestFormatDay(t *testing.T) {
	assert.Equal(t, "-", formatDay(time.Time{}))
	assert.Equal(t, "2024-05-01", formatDay(time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)))
}
