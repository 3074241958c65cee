package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFilter_Apply(t *testing.T) {
	ds, err := New(
		[]string{"Nombre_Sede", "Fecha", "Nombre_Completo_Barbero", "Nombre_Servicio", "Precio"},
		[][]any{
			{"Centro", "2024-05-01", "Ana Gómez", "Corte", 25000},
			{"Centro", "2024-05-02", "Luis Pardo", "Barba", 15000},
			{"Norte", "2024-05-03", "Ana Gómez", "Corte", 25000},
			{"Norte", nil, "Luis Pardo", "Corte", 25000},
		},
	)
	require.NoError(t, err)
	fields := DefaultFields()

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"zero filter keeps everything", Filter{}, 4},
		{"all sentinels", Filter{Site: "Todas", Barber: "Todos", Service: "all"}, 4},
		{"site", Filter{Site: "Centro"}, 2},
		{"site case insensitive", Filter{Site: "  norte "}, 2},
		{"barber and service", Filter{Barber: "Ana Gómez", Service: "Corte"}, 2},
		{"unknown service", Filter{Service: "Tinte"}, 0},
		{"from drops undated", Filter{From: day(2024, 5, 2)}, 2},
		{"to is inclusive", Filter{To: day(2024, 5, 2)}, 2},
		{"range", Filter{From: day(2024, 5, 2), To: day(2024, 5, 2)}, 1},
		{"site and range", Filter{Site: "Norte", From: day(2024, 5, 1), To: day(2024, 5, 31)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(ds, fields)
			assert.Equal(t, tt.want, got.Len())
			assert.Equal(t, 4, ds.Len(), "source dataset must not change")
		})
	}
}

func TestFilter_IsZero(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.True(t, Filter{Site: "Todas"}.IsZero())
	assert.False(t, Filter{Site: "Centro"}.IsZero())
	assert.False(t, Filter{From: day(2024, 1, 1)}.IsZero())
}

func TestFilterOptions(t *testing.T) {
	ds, err := New(
		[]string{"Nombre_Sede", "Fecha", "Nombre_Completo_Barbero", "Nombre_Servicio"},
		[][]any{
			{"Norte", "2024-05-03", "Ana", "Corte"},
			{"Centro", "2024-04-01", "Luis", "Barba"},
			{"Centro", "2024-06-10", "Ana", "Corte"},
		},
	)
	require.NoError(t, err)

	opts := FilterOptions(ds, DefaultFields())
	assert.Equal(t, []string{"Centro", "Norte"}, opts.Sites)
	assert.Equal(t, []string{"Ana", "Luis"}, opts.Barbers)
	assert.Equal(t, []string{"Barba", "Corte"}, opts.Services)
	assert.Equal(t, day(2024, 4, 1), opts.MinDate)
	assert.Equal(t, day(2024, 6, 10), opts.MaxDate)
}

func TestFilterOptions_MissingColumns(t *testing.T) {
	ds, err := New([]string{"x"}, [][]any{{1}})
	require.NoError(t, err)

	opts := FilterOptions(ds, DefaultFields())
	assert.Empty(t, opts.Sites)
	assert.True(t, opts.MinDate.IsZero())
}
