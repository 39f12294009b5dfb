package utils

import (
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/straysafe/straysafebackend/logging"
)

// Metadata is what uploads keep from an image's header and EXIF block.
type Metadata struct {
	Width       *int       `json:"width,omitempty"`
	Height      *int       `json:"height,omitempty"`
	CameraMake  *string    `json:"camera_make,omitempty"`
	CameraModel *string    `json:"camera_model,omitempty"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
}

func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		val = tag.String()
	}
	val = strings.TrimSpace(strings.Trim(strings.TrimRight(val, "\x00"), `"`))
	if val == "" {
		return nil
	}
	return &val
}

// ReadImageMetadata reads dimensions and EXIF from r, rewinding it first and
// afterwards. Missing EXIF is not an error.
func ReadImageMetadata(r io.ReadSeeker) (*Metadata, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("metadata: failed to seek: %w", err)
	}
	defer r.Seek(0, io.SeekStart)

	meta := &Metadata{}
	if cfg, _, err := image.DecodeConfig(r); err == nil {
		w, h := cfg.Width, cfg.Height
		meta.Width, meta.Height = &w, &h
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("metadata: failed to seek: %w", err)
	}
	exifData, err := exif.Decode(r)
	if err != nil {
		logging.Debug().Err(err).Msg("metadata: no exif block")
		return meta, nil
	}

	meta.CameraMake = getString(exifData, exif.Make)
	meta.CameraModel = getString(exifData, exif.Model)
	if dt, err := exifData.DateTime(); err == nil {
		meta.TakenAt = &dt
	}
	return meta, nil
}
