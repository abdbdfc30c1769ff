package cmd

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mou514/FinanceMate-sub000/internal/imagecheck"
)

func TestFitDimensions(t *testing.T) {
	w, h := fitDimensions(4000, 3000, 2000)
	require.Equal(t, 2000, w)
	require.Equal(t, 1500, h)

	w, h = fitDimensions(800, 600, 2000)
	require.Equal(t, 800, w)
	require.Equal(t, 600, h)

	w, h = fitDimensions(1000, 4001, 2000)
	require.LessOrEqual(t, w, 2000)
	require.Equal(t, 2000, h)
}

func TestFittedPath(t *testing.T) {
	require.Equal(t, "/out/receipt.fit.jpg", fittedPath("/out", "receipt.png", "fit", "jpeg"))
	require.Equal(t, "/out/receipt.fit.png", fittedPath("/out", "receipt.webp", "fit", "png"))
}

func TestWriteFittedPassesValidation(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.png")
	outPath := filepath.Join(dir, "out.png")

	img := image.NewRGBA(image.Rect(0, 0, 300, 120))
	f, err := os.Create(inPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	validator := imagecheck.NewValidator(100)
	data, err := os.ReadFile(inPath)
	require.NoError(t, err)
	_, err = validator.Validate(data)
	require.Error(t, err)

	require.NoError(t, writeFitted(inPath, outPath, 100, "png", 80))

	data, err = os.ReadFile(outPath)
	require.NoError(t, err)
	info, err := validator.Validate(data)
	require.NoError(t, err)
	require.Equal(t, 100, info.Width)
	require.Equal(t, 40, info.Height)
}
