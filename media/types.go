package media

type AssetType string

const (
	AssetTypeSnapshot  AssetType = "snapshot"  // sighting photos posted by cameras and the mobile app
	AssetTypeThumbnail AssetType = "thumbnail" // map marker previews
	AssetTypeImage     AssetType = "image"     // post and registry uploads
	AssetTypeVideo     AssetType = "video"     // processed detection output
)

// ImageOptions controls resize and encode of an uploaded image.
type ImageOptions struct {
	MaxWidth int // 0 keeps the original width
	Quality  int
}
