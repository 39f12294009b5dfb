package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/media"
	"github.com/straysafe/straysafebackend/utils"
	"github.com/straysafe/straysafebackend/validation"
)

const (
	maxMultipartMemory = 8 << 20
	maxUploadRequest   = 64 << 20
	sniffLen           = 512
)

// savedImage is one processed upload.
type savedImage struct {
	Filename string
	Path     string
	TakenAt  *time.Time
}

// parseMultipart bounds the request body and parses the form.
func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadRequest)
	return r.ParseMultipartForm(maxMultipartMemory)
}

// formFiles returns the files posted as name[] or name.
func formFiles(r *http.Request, name string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	if files := r.MultipartForm.File[name+"[]"]; len(files) > 0 {
		return files
	}
	return r.MultipartForm.File[name]
}

// checkImages validates size and sniffed type of every file before anything
// is written, keyed as field.N.
func checkImages(files []*multipart.FileHeader, field string, verr *validation.RequestValidationError) {
	for i, fh := range files {
		key := fmt.Sprintf("%s.%d", field, i)
		if fh.Size > media.MaxUploadImageBytes {
			verr.Add(key, fmt.Sprintf("The %s may not be greater than 2048 kilobytes.", key))
			continue
		}
		f, err := fh.Open()
		if err != nil {
			verr.Add(key, fmt.Sprintf("The %s failed to upload.", key))
			continue
		}
		head := make([]byte, sniffLen)
		n, _ := io.ReadFull(f, head)
		f.Close()
		if !media.IsUploadImage(fh.Filename, head[:n]) {
			verr.Add(key, fmt.Sprintf("The %s must be a file of type: jpeg, png, jpg, gif.", key))
		}
	}
}

// processImages resizes and stores each file. On failure everything saved so
// far is removed.
func processImages(proc *media.Processor, store media.Store, files []*multipart.FileHeader) ([]savedImage, error) {
	saved := make([]savedImage, 0, len(files))
	cleanup := func() {
		for _, s := range saved {
			if err := store.Delete(s.Path); err != nil {
				logging.Warn().Err(err).Str("path", s.Path).Msg("failed to clean up upload")
			}
		}
	}

	for _, fh := range files {
		img, err := processImage(proc, fh)
		if err != nil {
			cleanup()
			return nil, err
		}
		saved = append(saved, img)
	}
	return saved, nil
}

func processImage(proc *media.Processor, fh *multipart.FileHeader) (savedImage, error) {
	f, err := fh.Open()
	if err != nil {
		return savedImage{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	out := savedImage{Filename: fh.Filename}
	if meta, err := utils.ReadImageMetadata(f); err == nil {
		out.TakenAt = meta.TakenAt
	} else {
		logging.Debug().Err(err).Str("file", fh.Filename).Msg("no usable image metadata")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return savedImage{}, fmt.Errorf("failed to rewind upload %s: %w", fh.Filename, err)
	}

	rel, err := proc.ProcessUpload(f, media.AssetTypeImage, media.ImageOptions{
		MaxWidth: media.PostImageMaxWidth,
		Quality:  media.PostImageJpegQuality,
	})
	if err != nil {
		return savedImage{}, err
	}
	out.Path = rel
	return out, nil
}
