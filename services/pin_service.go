package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/database"
	"github.com/straysafe/straysafebackend/geo"
	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/media"
	"github.com/straysafe/straysafebackend/metrics"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/realtime"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/validation"
	"github.com/straysafe/straysafebackend/workers"
)

var (
	ErrPinNotFound     = errors.New("pin not found")
	ErrInvalidSnapshot = errors.New("invalid base64 image data")
)

const (
	// JitterRadius bounds the privacy offset applied to report coordinates.
	JitterRadius = 0.0005

	DefaultReportLimit = 10
	SnapshotTimeLayout = "2006-01-02 15:04:05"
	UnknownLocation    = "Unknown Location"
)

// SightingInput is the body of a sighting pin request.
type SightingInput struct {
	AnimalType  string        `json:"animal_type" validate:"required,max=255"`
	StrayStatus string        `json:"stray_status" validate:"required,max=255"`
	Coordinates []interface{} `json:"coordinates" validate:"required"`
	Snapshot    *string       `json:"snapshot"`
	UserMapID   *uint         `json:"user_map_id"`
}

// CameraInput is the body of a camera pin request. Everything except the
// coordinates has a default.
type CameraInput struct {
	Coordinates []interface{} `json:"coordinates" validate:"required"`
	CameraID    *string       `json:"camera_id" validate:"omitempty,max=255"`
	CameraName  *string       `json:"camera_name" validate:"omitempty,max=255"`
	HLSURL      *string       `json:"hls_url" validate:"omitempty,max=2048"`
	RTMPKey     *string       `json:"rtmp_key" validate:"omitempty,max=255"`
	OriginalID  *string       `json:"original_id" validate:"omitempty,max=255"`
	Location    *string       `json:"location" validate:"omitempty,max=255"`

	ConicalView      interface{} `json:"conical_view"`
	ViewingDirection interface{} `json:"viewing_direction"`
	ViewingAngle     interface{} `json:"viewing_angle"`
	PerceptionRange  interface{} `json:"perception_range"`

	ConeCoordinates geo.Polygon `json:"cone_coordinates"`
	ConeCenter      *geo.Point  `json:"cone_center"`

	UserMapID *uint `json:"user_map_id"`
}

// SightingReader runs the read-only report queries.
type SightingReader interface {
	Sightings(ctx context.Context, q database.SightingQuery) ([]database.SightingRow, error)
}

// SnapshotQueue accepts background thumbnail jobs.
type SnapshotQueue interface {
	QueueJob(job workers.SnapshotJob) bool
}

// SightingReport is a jittered, display-ready sighting.
type SightingReport struct {
	ID           uint      `json:"-"`
	AnimalType   string    `json:"animal_type"`
	StrayStatus  string    `json:"stray_status"`
	Location     string    `json:"location"`
	Latitude     float64   `json:"-"`
	Longitude    float64   `json:"-"`
	SnapshotPath string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Timestamp formats CreatedAt the way the snapshot feeds expect.
func (r SightingReport) Timestamp() string {
	return r.CreatedAt.Format(SnapshotTimeLayout)
}

type PinServiceOptions struct {
	Projection geo.Projection
	Tolerance  float64
	// Jitter returns a value in [-1, 1]. Nil uses a uniform random step of 1/1000.
	Jitter func() float64
}

// PinService is the single pin creation and deletion contract shared by the
// web, mobile and machine endpoints.
type PinService struct {
	pins    repository.PinRepository
	maps    repository.UserMapRepository
	reports SightingReader
	store   media.Store
	queue   SnapshotQueue
	hub     realtime.Broadcaster

	projection geo.Projection
	tolerance  float64
	jitter     func() float64
	titler     cases.Caser
}

func NewPinService(
	pins repository.PinRepository,
	maps repository.UserMapRepository,
	reports SightingReader,
	store media.Store,
	queue SnapshotQueue,
	hub realtime.Broadcaster,
	opts PinServiceOptions,
) *PinService {
	if opts.Projection == "" {
		opts.Projection = geo.ProjectionCorrected
	}
	if opts.Jitter == nil {
		opts.Jitter = func() float64 { return float64(mrand.IntN(2001)-1000) / 1000 }
	}
	return &PinService{
		pins:       pins,
		maps:       maps,
		reports:    reports,
		store:      store,
		queue:      queue,
		hub:        hub,
		projection: opts.Projection,
		tolerance:  opts.Tolerance,
		jitter:     opts.Jitter,
		titler:     cases.Title(language.Und),
	}
}

func (s *PinService) checkUserMap(id *uint, verr *validation.RequestValidationError) error {
	if id == nil {
		return nil
	}
	ok, err := s.maps.Exists(*id)
	if err != nil {
		return fmt.Errorf("failed to look up user map %d: %w", *id, err)
	}
	if !ok {
		verr.Add("user_map_id", "The selected user map id is invalid.")
	}
	return nil
}

// validationResult converts collected failures into an error, avoiding a
// typed nil.
func validationResult(verr *validation.RequestValidationError) error {
	if len(verr.Fields()) == 0 {
		return nil
	}
	return verr
}

func structErrors(in interface{}) *validation.RequestValidationError {
	if verr := validation.ValidateStruct(in); verr != nil {
		return verr
	}
	return &validation.RequestValidationError{}
}

// decodeSnapshot accepts raw base64 or a data: URI.
func decodeSnapshot(raw string) ([]byte, error) {
	payload := strings.TrimSpace(raw)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, ErrInvalidSnapshot
		}
		payload = payload[comma+1:]
	}
	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return nil, ErrInvalidSnapshot
	}
	return data, nil
}

// CreateSighting validates and stores an animal sighting, writing the optional
// snapshot first.
func (s *PinService) CreateSighting(ctx context.Context, in SightingInput) (*models.MapPin, error) {
	verr := structErrors(in)
	origin, _ := parseCoordinates(in.Coordinates, verr)
	if err := s.checkUserMap(in.UserMapID, verr); err != nil {
		return nil, err
	}
	if err := validationResult(verr); err != nil {
		return nil, err
	}

	pin := &models.MapPin{
		AnimalType:  strings.TrimSpace(in.AnimalType),
		StrayStatus: strings.TrimSpace(in.StrayStatus),
		Longitude:   origin.Lng(),
		Latitude:    origin.Lat(),
		UserMapID:   in.UserMapID,
	}

	if in.Snapshot != nil && strings.TrimSpace(*in.Snapshot) != "" {
		data, err := decodeSnapshot(*in.Snapshot)
		if err != nil {
			return nil, err
		}
		rel, err := s.store.Save(media.AssetTypeSnapshot, "", "snapshot_"+uuid.NewString()+media.JpegFileExtension, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to save snapshot: %w", err)
		}
		pin.SnapshotPath = &rel
	}

	if err := s.pins.Create(pin); err != nil {
		if pin.SnapshotPath != nil {
			s.store.Delete(*pin.SnapshotPath)
		}
		return nil, fmt.Errorf("failed to create sighting pin: %w", err)
	}

	if pin.SnapshotPath != nil && s.queue != nil {
		s.queue.QueueJob(workers.SnapshotJob{PinID: pin.ID, MapID: pin.UserMapID, SnapshotPath: *pin.SnapshotPath})
	}

	s.created(ctx, pin, "sighting")
	return pin, nil
}

func randomCameraID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "cam-" + uuid.NewString()[:8]
	}
	return "cam-" + hex.EncodeToString(b)
}

// CreateCamera validates and stores a camera pin, computing or checking its
// vision cone when the conical view is on.
func (s *PinService) CreateCamera(ctx context.Context, in CameraInput) (*models.MapPin, error) {
	verr := structErrors(in)
	origin, originOK := parseCoordinates(in.Coordinates, verr)

	direction := optionalFloat("viewing_direction", in.ViewingDirection, verr)
	angle := optionalFloat("viewing_angle", in.ViewingAngle, verr)
	rng := optionalFloat("perception_range", in.PerceptionRange, verr)
	conical := toBool(in.ConicalView)

	if conical {
		for field, v := range map[string]*float64{"viewing_direction": direction, "viewing_angle": angle, "perception_range": rng} {
			if v == nil && !fieldFailed(verr, field) {
				verr.Add(field, fmt.Sprintf("The %s field is required when conical view is enabled.", strings.ReplaceAll(field, "_", " ")))
			}
		}
	}
	if direction != nil && (*direction < 0 || *direction >= 360) {
		verr.Add("viewing_direction", "The viewing direction must be at least 0 and less than 360.")
	}
	if angle != nil && (*angle <= 0 || *angle > 360) {
		verr.Add("viewing_angle", "The viewing angle must be greater than 0 and at most 360.")
	}
	if rng != nil && *rng <= 0 {
		verr.Add("perception_range", "The perception range must be greater than 0.")
	}
	if err := s.checkUserMap(in.UserMapID, verr); err != nil {
		return nil, err
	}
	if err := validationResult(verr); err != nil {
		return nil, err
	}

	cameraID := stringOr(in.CameraID, randomCameraID())
	pin := &models.MapPin{
		AnimalType:       models.CameraAnimalType,
		StrayStatus:      models.CameraStrayStatus,
		Longitude:        origin.Lng(),
		Latitude:         origin.Lat(),
		IsCamera:         true,
		CameraID:         &cameraID,
		CameraName:       strPtr(stringOr(in.CameraName, "Camera "+cameraID)),
		HLSURL:           strPtr(stringOr(in.HLSURL, "/stream/"+cameraID+"/index.m3u8")),
		RTMPKey:          strPtr(stringOr(in.RTMPKey, cameraID)),
		OriginalID:       strPtr(stringOr(in.OriginalID, cameraID)),
		Location:         strPtr(stringOr(in.Location, UnknownLocation)),
		ViewingDirection: direction,
		ViewingAngle:     angle,
		PerceptionRange:  rng,
		ConicalView:      conical,
		UserMapID:        in.UserMapID,
	}

	if conical && originOK {
		params := geo.ConeParams{Origin: origin, Direction: *direction, Angle: *angle, Range: *rng}
		cone, err := s.resolveCone(params, in.ConeCoordinates, in.ConeCenter)
		if err != nil {
			return nil, err
		}
		pin.SetCone(cone)
	} else {
		pin.ClearCone()
	}

	if err := s.pins.Create(pin); err != nil {
		return nil, fmt.Errorf("failed to create camera pin: %w", err)
	}

	s.created(ctx, pin, "camera")
	return pin, nil
}

// resolveCone accepts client geometry that agrees with the parameters and
// computes the cone otherwise.
func (s *PinService) resolveCone(params geo.ConeParams, coords geo.Polygon, center *geo.Point) (geo.Cone, error) {
	if len(coords) > 0 && center != nil {
		if err := geo.ValidateCone(coords, *center, params, s.projection, s.tolerance); err != nil {
			logging.Debug().Err(err).Msg("rejected client cone geometry")
			return geo.Cone{}, validation.NewFieldError("cone_coordinates",
				"The cone coordinates do not match the viewing direction, angle and perception range.")
		}
		return geo.Cone{
			Coordinates: coords,
			Center:      *center,
			Radius:      params.RadiusDegrees(),
			Direction:   params.Direction,
			Angle:       params.Angle,
		}, nil
	}

	cone, err := geo.ComputeCone(params, s.projection)
	if err != nil {
		return geo.Cone{}, validation.NewFieldError("viewing_direction", err.Error())
	}
	return cone, nil
}

func (s *PinService) created(ctx context.Context, pin *models.MapPin, kind string) {
	metrics.PinsCreated.WithLabelValues(kind).Inc()
	logging.Info().Uint("pin_id", pin.ID).Str("kind", kind).Msg("pin created")
	if s.hub != nil {
		s.hub.Broadcast(realtime.Event{Type: realtime.EventPinCreated, PinID: pin.ID, MapID: pin.UserMapID, Pin: pin})
	}
}

func (s *PinService) List(ctx context.Context, filter repository.PinFilter) ([]models.MapPin, error) {
	pins, err := s.pins.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	return pins, nil
}

func (s *PinService) get(id uint) (*models.MapPin, error) {
	pin, err := s.pins.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPinNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pin %d: %w", id, err)
	}
	return pin, nil
}

// Delete removes the pin and its stored images.
func (s *PinService) Delete(ctx context.Context, id uint) error {
	pin, err := s.get(id)
	if err != nil {
		return err
	}

	if err := s.pins.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPinNotFound
		}
		return fmt.Errorf("failed to delete pin %d: %w", id, err)
	}

	for _, p := range []*string{pin.SnapshotPath, pin.ThumbnailPath} {
		if p == nil {
			continue
		}
		if err := s.store.Delete(*p); err != nil {
			logging.Warn().Err(err).Str("path", *p).Msg("failed to remove pin image")
		}
	}

	metrics.PinsDeleted.Inc()
	logging.Info().Uint("pin_id", id).Msg("pin deleted")
	if s.hub != nil {
		s.hub.Broadcast(realtime.Event{Type: realtime.EventPinDeleted, PinID: id, MapID: pin.UserMapID})
	}
	return nil
}

// DeleteCamera deletes only camera pins; other ids report ErrPinNotFound.
func (s *PinService) DeleteCamera(ctx context.Context, id uint) error {
	pin, err := s.get(id)
	if err != nil {
		return err
	}
	if !pin.IsCamera {
		return ErrPinNotFound
	}
	return s.Delete(ctx, id)
}

func (s *PinService) report(rows []database.SightingRow) []SightingReport {
	out := make([]SightingReport, 0, len(rows))
	for _, row := range rows {
		lat := row.Latitude + s.jitter()*JitterRadius
		lng := row.Longitude + s.jitter()*JitterRadius
		r := SightingReport{
			ID:          row.ID,
			AnimalType:  s.titler.String(row.AnimalType),
			StrayStatus: s.titler.String(row.StrayStatus),
			Latitude:    lat,
			Longitude:   lng,
			Location:    strconv.FormatFloat(lat, 'f', -1, 64) + ", " + strconv.FormatFloat(lng, 'f', -1, 64),
			CreatedAt:   row.CreatedAt,
		}
		if row.SnapshotPath != nil {
			r.SnapshotPath = *row.SnapshotPath
		}
		out = append(out, r)
	}
	return out
}

func (s *PinService) sightings(ctx context.Context, q database.SightingQuery) ([]SightingReport, error) {
	if q.Limit == 0 {
		q.Limit = DefaultReportLimit
	}
	rows, err := s.reports.Sightings(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.report(rows), nil
}

// RecentSightings returns the latest sightings with jittered locations.
func (s *PinService) RecentSightings(ctx context.Context, limit int) ([]SightingReport, error) {
	return s.sightings(ctx, database.SightingQuery{Limit: uint64(max(limit, 0))})
}

// Snapshots returns sightings whose animal type contains name.
func (s *PinService) Snapshots(ctx context.Context, name string, limit int) ([]SightingReport, error) {
	return s.sightings(ctx, database.SightingQuery{NameLike: name, Limit: uint64(max(limit, 0))})
}

// RecentSnapshots returns the latest sightings that carry a snapshot.
func (s *PinService) RecentSnapshots(ctx context.Context, limit int) ([]SightingReport, error) {
	return s.sightings(ctx, database.SightingQuery{WithSnapshot: true, Limit: uint64(max(limit, 0))})
}

func strPtr(s string) *string { return &s }
