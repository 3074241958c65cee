package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderText(t *testing.T) {
	out := RenderText(sampleDataset(t).Head(2))

	assert.Contains(t, out, "Precio")
	assert.Contains(t, out, "25000")
	assert.Contains(t, out, "2024-05-02")
	assert.NotContains(t, out, "Norte")
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown(sampleDataset(t))
	lines := strings.Split(out, "\n")

	assert.Len(t, lines, 5, "header, separator and three rows")
	assert.True(t, strings.HasPrefix(lines[0], "| Nombre_Sede |"))
	assert.Contains(t, lines[4], "| Norte |")
}

func TestRenderCSV(t *testing.T) {
	out := RenderCSV(sampleDataset(t))
	lines := strings.Split(out, "\n")

	assert.Len(t, lines, 4)
	assert.Equal(t, "Nombre_Sede,Fecha,Nombre_Completo_Barbero,Nombre_Servicio,Precio", lines[0])
	assert.True(t, strings.HasPrefix(lines[3], "Norte,"))
}
