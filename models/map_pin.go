package models

import (
	"time"

	"github.com/straysafe/straysafebackend/geo"
)

const (
	CameraAnimalType  = "Camera"
	CameraStrayStatus = "Active"
)

// MapPin is a point on the map: an animal sighting or a fixed camera.
type MapPin struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	AnimalType  string    `json:"animal_type" gorm:"not null;index"`
	StrayStatus string    `json:"stray_status" gorm:"not null"`
	Latitude    float64   `json:"latitude" gorm:"not null"`
	Longitude   float64   `json:"longitude" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time `json:"updated_at"`

	// relative media store path of a sighting photo
	SnapshotPath  *string `json:"snapshot_path,omitempty"`
	ThumbnailPath *string `json:"thumbnail_path,omitempty"`

	IsCamera   bool    `json:"is_camera" gorm:"not null;default:false;index"`
	CameraID   *string `json:"camera_id,omitempty" gorm:"index"`
	CameraName *string `json:"camera_name,omitempty"`
	HLSURL     *string `json:"hls_url,omitempty" gorm:"column:hls_url"`
	RTMPKey    *string `json:"rtmp_key,omitempty" gorm:"column:rtmp_key"`
	OriginalID *string `json:"original_id,omitempty"`
	Location   *string `json:"location,omitempty"`

	ViewingDirection *float64 `json:"viewing_direction,omitempty"`
	ViewingAngle     *float64 `json:"viewing_angle,omitempty"`
	PerceptionRange  *float64 `json:"perception_range,omitempty"`
	ConicalView      bool     `json:"conical_view" gorm:"not null;default:false"`

	ConeCoordinates geo.Polygon `json:"cone_coordinates,omitempty" gorm:"serializer:json"`
	ConeCenter      *geo.Point  `json:"cone_center,omitempty" gorm:"serializer:json"`
	ConeRadius      *float64    `json:"cone_radius,omitempty"` // degrees
	ConeDirection   *float64    `json:"cone_direction,omitempty"`
	ConeAngle       *float64    `json:"cone_angle,omitempty"`

	UserMapID *uint `json:"user_map_id,omitempty" gorm:"index"`
}

// Coordinates returns the pin position as [lng, lat].
func (p *MapPin) Coordinates() geo.Point {
	return geo.Point{p.Longitude, p.Latitude}
}

// HasCone reports whether the pin carries stored vision cone geometry.
func (p *MapPin) HasCone() bool {
	return p.IsCamera && p.ConicalView && len(p.ConeCoordinates) > 0 && p.ConeCenter != nil
}

// SetCone stores a computed or accepted cone on the pin.
func (p *MapPin) SetCone(c geo.Cone) {
	center := c.Center
	radius, dir, angle := c.Radius, c.Direction, c.Angle
	p.ConeCoordinates = c.Coordinates
	p.ConeCenter = &center
	p.ConeRadius = &radius
	p.ConeDirection = &dir
	p.ConeAngle = &angle
}

// ClearCone nulls every cone field.
func (p *MapPin) ClearCone() {
	p.ConeCoordinates = nil
	p.ConeCenter = nil
	p.ConeRadius = nil
	p.ConeDirection = nil
	p.ConeAngle = nil
}
