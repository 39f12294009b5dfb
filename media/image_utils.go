package media

import (
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxUploadImageBytes caps a single post or registry image.
const MaxUploadImageBytes = 2 << 20

var uploadImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// IsUploadImage sniffs the first bytes of an upload and reports whether it is
// a jpeg, png or gif matching the filename extension.
func IsUploadImage(filename string, head []byte) bool {
	want, ok := uploadImageTypes[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return false
	}
	return mimetype.Detect(head).Is(want)
}
