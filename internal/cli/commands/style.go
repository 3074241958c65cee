package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/cli/output"
	"github.com/kingdombarber/insight/internal/insights"
	"github.com/kingdombarber/insight/internal/llm"
)

// NewStyleCommand creates the style command.
func NewStyleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "style <image>",
		Short: "Recommend haircuts for a photo",
		Long: `Send a JPEG or PNG photo of a face to the language model and get haircut
recommendations for it. Use - to read the image from stdin.`,
		Example: `  insight style cara.jpg`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStyle(cmd, args[0])
		},
	}
	return cmd
}

func runStyle(cmd *cobra.Command, path string) error {
	image, err := readImage(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cc.Renderer
	stop := r.Spinner("Analizando imagen...")
	advice, err := cc.Service.StyleAdvice(cmd.Context(), image)
	if err != nil {
		stop(false, "No se pudo analizar la imagen")
		return presentError(err)
	}
	stop(true, "")

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]string{"advice": advice})
	}
	return r.Markdown(advice)
}

// readImage reads at most one byte past the size limit so oversized files are
// rejected without reading them fully.
func readImage(stdin io.Reader, path string) (llm.Media, error) {
	var src io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path) //nolint:gosec // user-supplied path
		if err != nil {
			return llm.Media{}, fmt.Errorf("failed to open image: %w", err)
		}
		defer func() { _ = f.Close() }()
		src = f
	}
	data, err := io.ReadAll(io.LimitReader(src, insights.MaxImageBytes+1))
	if err != nil {
		return llm.Media{}, fmt.Errorf("failed to read image: %w", err)
	}

	var mime string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".png":
		mime = "image/png"
	}
	return llm.Media{MIMEType: mime, Data: data}, nil
}
