package media

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/straysafe/straysafebackend/logging"
)

const (
	PostImageMaxWidth    = 1600
	PostImageJpegQuality = 85

	ThumbnailJpegQuality = 90
	JpegFileExtension    = ".jpg"
)

// Processor resizes images and saves the results through a Store.
type Processor struct {
	store Store
}

func NewProcessor(store Store) *Processor {
	return &Processor{store: store}
}

// fitWithin scales w x h so the longest side is at most maxSize.
func fitWithin(w, h, maxSize int) (int, int) {
	if w <= maxSize && h <= maxSize {
		return w, h
	}
	if w >= h {
		return maxSize, max(1, int(math.Round(float64(h)*float64(maxSize)/float64(w))))
	}
	return max(1, int(math.Round(float64(w)*float64(maxSize)/float64(h)))), maxSize
}

// encodeAndSave streams a JPEG encoding of img into the store.
func (p *Processor) encodeAndSave(img image.Image, quality int, assetType AssetType, relDir, filename string) (string, error) {
	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, img, imaging.JPEG, imaging.JPEGQuality(quality))
		if err != nil {
			writer.CloseWithError(fmt.Errorf("jpeg encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	rel, err := p.store.Save(assetType, relDir, filename, reader)
	if err != nil {
		reader.CloseWithError(err)
		return "", err
	}
	return rel, nil
}

// GenerateThumbnail saves a JPEG whose longest side is maxSize and returns its
// relative path.
func (p *Processor) GenerateThumbnail(src image.Image, srcRelPath string, maxSize int) (string, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return "", fmt.Errorf("invalid source image dimensions: %dx%d", b.Dx(), b.Dy())
	}

	w, h := fitWithin(b.Dx(), b.Dy(), maxSize)
	thumb := imaging.Resize(src, w, h, imaging.Lanczos)

	rel, err := p.encodeAndSave(thumb, ThumbnailJpegQuality, AssetTypeThumbnail, "", uuid.NewString()+JpegFileExtension)
	if err != nil {
		return "", fmt.Errorf("failed to save thumbnail via store: %w", err)
	}

	logging.Debug().Str("source", srcRelPath).Str("thumbnail", rel).Msg("thumbnail generated")
	return rel, nil
}

// ThumbnailFromAsset opens a stored image and thumbnails it.
func (p *Processor) ThumbnailFromAsset(relPath string, maxSize int) (string, error) {
	rc, _, err := p.store.Get(relPath)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", relPath, err)
	}
	return p.GenerateThumbnail(img, relPath, maxSize)
}

// RemoveAsset deletes a stored file, typically a thumbnail nobody references.
func (p *Processor) RemoveAsset(relPath string) error {
	return p.store.Delete(relPath)
}

// ProcessUpload decodes an uploaded image, narrows it to opts.MaxWidth and
// stores it as JPEG under <assetType>/<uuid>/.
func (p *Processor) ProcessUpload(data io.Reader, assetType AssetType, opts ImageOptions) (string, error) {
	img, format, err := image.Decode(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode uploaded image: %w", err)
	}

	if opts.MaxWidth > 0 && img.Bounds().Dx() > opts.MaxWidth {
		img = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
	}
	quality := opts.Quality
	if quality == 0 {
		quality = PostImageJpegQuality
	}

	id := uuid.NewString()
	rel, err := p.encodeAndSave(img, quality, assetType, id, id+JpegFileExtension)
	if err != nil {
		return "", fmt.Errorf("failed to save upload via store: %w", err)
	}

	logging.Debug().Str("format", format).Str("path", rel).Msg("upload processed")
	return rel, nil
}
