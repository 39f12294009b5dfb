package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/straysafe/straysafebackend/logging"
)

var (
	ErrAssetNotFound = errors.New("media: asset not found")
	ErrPathEscapes   = errors.New("media: path resolves outside storage root")
)

// Store saves, opens and removes media assets addressed by a path relative to
// the storage root.
type Store interface {
	// Save writes data under the asset type's directory, optionally nested in
	// relDir, and returns the slash-separated path relative to the root.
	Save(assetType AssetType, relDir string, filename string, data io.Reader) (string, error)
	Get(relativePath string) (io.ReadCloser, os.FileInfo, error)
	// Delete is a no-op for missing files.
	Delete(relativePath string) error
	GetFullPath(relativePath string) (string, error)
	EnsureDir(assetType AssetType) (string, error)
}

// LocalStorage keeps assets on the local filesystem.
type LocalStorage struct {
	basePath string
	dirs     map[AssetType]string // absolute directory per asset type
}

// NewLocalStorage creates basePath and validates the asset type subdirectories.
func NewLocalStorage(basePath string, subDirs map[AssetType]string) (*LocalStorage, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}
	if err := os.MkdirAll(absBase, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBase, err)
	}

	ls := &LocalStorage{basePath: absBase, dirs: make(map[AssetType]string, len(subDirs))}
	for assetType, subDir := range subDirs {
		full := filepath.Join(absBase, subDir)
		if !ls.within(full) {
			return nil, fmt.Errorf("subdirectory '%s' for %s: %w", subDir, assetType, ErrPathEscapes)
		}
		ls.dirs[assetType] = full
	}

	logging.Info().Str("path", absBase).Int("asset_types", len(ls.dirs)).Msg("media store initialized")
	return ls, nil
}

func (ls *LocalStorage) within(p string) bool {
	clean := filepath.Clean(p)
	return clean == ls.basePath || strings.HasPrefix(clean, ls.basePath+string(filepath.Separator))
}

func (ls *LocalStorage) dirFor(assetType AssetType) (string, error) {
	dir, ok := ls.dirs[assetType]
	if !ok {
		return "", fmt.Errorf("media: asset type %q is not configured", assetType)
	}
	return dir, nil
}

func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dir, err := ls.dirFor(assetType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dir, err)
	}
	return dir, nil
}

func (ls *LocalStorage) Save(assetType AssetType, relDir string, filename string, data io.Reader) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("media: invalid filename %q", filename)
	}

	targetDir, err := ls.EnsureDir(assetType)
	if err != nil {
		return "", err
	}
	if relDir != "" {
		nested := filepath.Join(targetDir, relDir)
		if !strings.HasPrefix(filepath.Clean(nested), targetDir+string(filepath.Separator)) {
			return "", fmt.Errorf("directory hint '%s': %w", relDir, ErrPathEscapes)
		}
		if err := os.MkdirAll(nested, 0755); err != nil {
			return "", fmt.Errorf("failed to create sub-directory '%s': %w", nested, err)
		}
		targetDir = nested
	}

	fullPath := filepath.Join(targetDir, filename)
	out, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullPath, err)
	}

	if _, err := io.Copy(out, data); err != nil {
		out.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to close '%s': %w", fullPath, err)
	}

	rel, err := filepath.Rel(ls.basePath, fullPath)
	if err != nil {
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}

	logging.Debug().Str("asset_type", string(assetType)).Str("path", rel).Msg("asset saved")
	return filepath.ToSlash(rel), nil
}

func (ls *LocalStorage) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrAssetNotFound, relativePath)
		}
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrAssetNotFound, relativePath)
	}
	return f, info, nil
}

func (ls *LocalStorage) Delete(relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	if err == nil {
		logging.Debug().Str("path", relativePath).Msg("asset deleted")
	}
	return nil
}

// GetFullPath resolves relativePath against the root and rejects traversal.
func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	full, err := filepath.Abs(filepath.Join(ls.basePath, filepath.FromSlash(relativePath)))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}
	if !ls.within(full) || full == ls.basePath {
		return "", fmt.Errorf("'%s': %w", relativePath, ErrPathEscapes)
	}
	return full, nil
}
