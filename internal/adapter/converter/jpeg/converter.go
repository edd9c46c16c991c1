// Package jpeg re-encodes downloaded images as JPEG at a fixed quality.
package jpeg

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	stdjpeg "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
	"github.com/bnema/imgbatch/internal/validation"
)

const DefaultQuality = 50

type Compressor struct {
	scratchDir string
	quality    int
}

func NewCompressor(scratchDir string, quality int) *Compressor {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Compressor{
		scratchDir: scratchDir,
		quality:    quality,
	}
}

// Compress decodes data, encodes it as JPEG and writes the result to
// scratchName inside the scratch directory. The encoded bytes are returned
// for upload.
func (c *Compressor) Compress(data []byte, scratchName string) ([]byte, error) {
	if _, err := validation.ValidateImage(data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCompress, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrCompress, err)
	}

	var buf bytes.Buffer
	if err := stdjpeg.Encode(&buf, img, &stdjpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", domain.ErrCompress, format, err)
	}

	if err := os.MkdirAll(c.scratchDir, 0750); err != nil {
		return nil, fmt.Errorf("%w: scratch dir: %v", domain.ErrCompress, err)
	}
	path := filepath.Join(c.scratchDir, validation.SanitizeFilename(scratchName))
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return nil, fmt.Errorf("%w: write scratch: %v", domain.ErrCompress, err)
	}

	return buf.Bytes(), nil
}

func (c *Compressor) ScratchDir() string {
	return c.scratchDir
}

var _ port.ImageCompressor = (*Compressor)(nil)
