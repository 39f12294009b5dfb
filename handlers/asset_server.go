package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/media"
)

const assetCacheDuration = 24 * time.Hour

// AssetServer serves stored media. The request path minus routePrefix is the
// store-relative path, so
//
//	r.Get("/media/*", AssetServer(store, "/media/"))      // /media/snapshots/a.jpg -> snapshots/a.jpg
//	r.Get("/snapshots/*", AssetServer(store, "/"))        // /snapshots/a.jpg -> snapshots/a.jpg
func AssetServer(store media.Store, routePrefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)
		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		f, info, err := store.Get(relativePath)
		if err != nil {
			switch {
			case errors.Is(err, media.ErrAssetNotFound):
				http.NotFound(w, r)
			case errors.Is(err, media.ErrPathEscapes):
				logging.Warn().Str("path", r.URL.Path).Msg("asset request outside storage root")
				http.Error(w, "Forbidden", http.StatusForbidden)
			default:
				logging.Err(err).Str("path", relativePath).Msg("failed to open asset")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
			return
		}
		defer f.Close()

		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(assetCacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(assetCacheDuration).UTC().Format(http.TimeFormat))

		if rs, ok := f.(io.ReadSeeker); ok {
			http.ServeContent(w, r, info.Name(), info.ModTime(), rs)
			return
		}
		io.Copy(w, f)
	}
}
