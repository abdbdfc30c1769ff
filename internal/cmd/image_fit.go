package cmd

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/mou514/FinanceMate-sub000/internal/imagecheck"
	"github.com/mou514/FinanceMate-sub000/internal/observability"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Receipt image utilities",
}

var imageFitCmd = &cobra.Command{
	Use:   "fit <file>...",
	Short: "Downscale receipt images to fit the upload limit",
	Long: `Check receipt images against the configured maximum dimension and write
downscaled copies of any that exceed it. Images already within the limit are
reported and left alone.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImageFit,
}

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.AddCommand(imageFitCmd)

	imageFitCmd.Flags().String("out-dir", "", "Output directory for resized images (defaults to each input's directory)")
	imageFitCmd.Flags().Int("max-dimension", 0, "Max width/height in pixels (default receipts.max_dimension)")
	imageFitCmd.Flags().String("format", "jpeg", "Output format: jpeg or png")
	imageFitCmd.Flags().Int("jpeg-quality", 85, "JPEG quality (1-100)")
	imageFitCmd.Flags().String("suffix", "fit", "Filename suffix (e.g. 'fit' -> name.fit.jpg)")
}

func runImageFit(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out-dir")
	maxDimension, _ := cmd.Flags().GetInt("max-dimension")
	format, _ := cmd.Flags().GetString("format")
	jpegQuality, _ := cmd.Flags().GetInt("jpeg-quality")
	suffix, _ := cmd.Flags().GetString("suffix")

	format = strings.ToLower(strings.TrimSpace(format))
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		suffix = "fit"
	}
	if format != "jpeg" && format != "jpg" && format != "png" {
		return fmt.Errorf("unsupported format: %s", format)
	}

	if maxDimension <= 0 {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		maxDimension = cfg.Receipts.MaxDimension
	}
	validator := imagecheck.NewValidator(maxDimension)

	if strings.TrimSpace(outDir) != "" {
		absOut, err := prepareOutDir(outDir)
		if err != nil {
			return err
		}
		outDir = absOut
	}

	for _, inPath := range args {
		data, err := os.ReadFile(inPath)
		if err != nil {
			return err
		}

		info, err := validator.Validate(data)
		var dimErr *imagecheck.DimensionError
		if err == nil {
			observability.CLILogger.Info("Image within limit",
				zap.String("path", inPath),
				zap.String("format", string(info.Format)),
				zap.Int("width", info.Width),
				zap.Int("height", info.Height))
			continue
		}
		if !errors.As(err, &dimErr) {
			return fmt.Errorf("%s: %w", inPath, err)
		}

		dir := outDir
		if dir == "" {
			dir = filepath.Dir(inPath)
		}
		outPath := fittedPath(dir, filepath.Base(inPath), suffix, format)
		if err := writeFitted(inPath, outPath, maxDimension, format, jpegQuality); err != nil {
			return fmt.Errorf("resize %s: %w", inPath, err)
		}
		observability.CLILogger.Info("Wrote resized image",
			zap.String("path", outPath),
			zap.Int("original_width", dimErr.Info.Width),
			zap.Int("original_height", dimErr.Info.Height))
	}

	return nil
}

func fittedPath(outDir, filename, suffix, format string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	ext := "jpg"
	if format == "png" {
		ext = "png"
	}
	return filepath.Join(outDir, fmt.Sprintf("%s.%s.%s", base, suffix, ext))
}

// fitDimensions scales width and height so neither exceeds maxDimension,
// preserving aspect ratio. Images already within bounds are unchanged.
func fitDimensions(width, height, maxDimension int) (int, int) {
	longest := width
	if height > longest {
		longest = height
	}
	if longest <= maxDimension {
		return width, height
	}
	scale := float64(maxDimension) / float64(longest)
	newW := int(float64(width) * scale)
	newH := int(float64(height) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	if newW > maxDimension {
		newW = maxDimension
	}
	if newH > maxDimension {
		newH = maxDimension
	}
	return newW, newH
}

func writeFitted(inPath, outPath string, maxDimension int, format string, jpegQuality int) error {
	inFile, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer inFile.Close() // nolint:errcheck

	srcImg, _, err := image.Decode(inFile)
	if err != nil {
		return err
	}

	bounds := srcImg.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return errors.New("invalid image dimensions")
	}

	newW, newH := fitDimensions(bounds.Dx(), bounds.Dy(), maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), srcImg, bounds, draw.Over, nil)

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close() // nolint:errcheck

	return encodeImage(outFile, dst, format, jpegQuality)
}

func encodeImage(w io.Writer, img image.Image, format string, jpegQuality int) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "jpeg", "jpg", "":
		q := jpegQuality
		if q < 1 {
			q = 1
		}
		if q > 100 {
			q = 100
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
