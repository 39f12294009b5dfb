package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/straysafe/straysafebackend/geo"
	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/services"
	"github.com/straysafe/straysafebackend/validation"
)

// PinHandler serves pin creation, listing and deletion plus the public
// sighting reports.
type PinHandler struct {
	Pins          *services.PinService
	PublicBaseURL string
}

func NewPinHandler(pins *services.PinService, publicBaseURL string) *PinHandler {
	return &PinHandler{Pins: pins, PublicBaseURL: publicBaseURL}
}

// mediaURL points at the /media/* asset route.
func (h *PinHandler) mediaURL(rel string) string {
	return assetURL(h.PublicBaseURL, "media", rel)
}

// PinView is the map rendering of a pin. Camera fields appear only for cameras.
type PinView struct {
	ID          uint      `json:"id"`
	AnimalType  string    `json:"animal_type"`
	StrayStatus string    `json:"stray_status"`
	Coordinates geo.Point `json:"coordinates"` // [lng, lat]
	Snapshot    string    `json:"snapshot,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	UserMapID   *uint     `json:"user_map_id,omitempty"`

	IsCamera         bool        `json:"isCamera,omitempty"`
	CameraID         *string     `json:"camera_id,omitempty"`
	CameraName       *string     `json:"cameraName,omitempty"`
	HLSURL           *string     `json:"hls_url,omitempty"`
	ViewingDirection *float64    `json:"viewingDirection,omitempty"`
	ViewingAngle     *float64    `json:"viewingAngle,omitempty"`
	ConicalView      *bool       `json:"conicalView,omitempty"`
	PerceptionRange  *float64    `json:"perceptionRange,omitempty"`
	ConeCoordinates  geo.Polygon `json:"coneCoordinates,omitempty"`
	ConeCenter       *geo.Point  `json:"coneCenter,omitempty"`
}

func (h *PinHandler) toPinView(p *models.MapPin) PinView {
	v := PinView{
		ID:          p.ID,
		AnimalType:  p.AnimalType,
		StrayStatus: p.StrayStatus,
		Coordinates: p.Coordinates(),
		UserMapID:   p.UserMapID,
	}
	if p.SnapshotPath != nil {
		v.Snapshot = h.mediaURL(*p.SnapshotPath)
	}
	if p.ThumbnailPath != nil {
		v.Thumbnail = h.mediaURL(*p.ThumbnailPath)
	}
	// older rows marked cameras only through the animal type
	if p.IsCamera || strings.EqualFold(p.AnimalType, models.CameraAnimalType) {
		conical := p.ConicalView
		v.IsCamera = true
		v.CameraID = p.CameraID
		v.CameraName = p.CameraName
		v.HLSURL = p.HLSURL
		v.ViewingDirection = p.ViewingDirection
		v.ViewingAngle = p.ViewingAngle
		v.ConicalView = &conical
		v.PerceptionRange = p.PerceptionRange
		if p.HasCone() {
			v.ConeCoordinates = p.ConeCoordinates
			v.ConeCenter = p.ConeCenter
		}
	}
	return v
}

func (h *PinHandler) writeCreateError(w http.ResponseWriter, err error, kind string) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		writePinValidation(w, verr)
	case errors.Is(err, services.ErrInvalidSnapshot):
		writePin(w, http.StatusBadRequest, "Invalid Base64 image data", nil)
	default:
		logging.Err(err).Str("kind", kind).Msg("failed to create pin")
		writePin(w, http.StatusInternalServerError, "Failed to add pin", nil)
	}
}

// CreateSighting handles POST /pin and POST /api/pin.
func (h *PinHandler) CreateSighting(w http.ResponseWriter, r *http.Request) {
	var in services.SightingInput
	if err := decodeJSON(r, &in); err != nil {
		writePin(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	pin, err := h.Pins.CreateSighting(r.Context(), in)
	if err != nil {
		h.writeCreateError(w, err, "sighting")
		return
	}
	writePin(w, http.StatusCreated, "Pin added successfully", pin)
}

// CreateCamera handles POST /camera-pin and POST /api/camera-pin.
func (h *PinHandler) CreateCamera(w http.ResponseWriter, r *http.Request) {
	var in services.CameraInput
	if err := decodeJSON(r, &in); err != nil {
		writePin(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	pin, err := h.Pins.CreateCamera(r.Context(), in)
	if err != nil {
		h.writeCreateError(w, err, "camera")
		return
	}
	writePin(w, http.StatusCreated, "Camera pin added successfully", pin)
}

// ListPins returns every pin, optionally narrowed by ?map_id= and ?cameras=1.
func (h *PinHandler) ListPins(w http.ResponseWriter, r *http.Request) {
	var filter repository.PinFilter
	if raw := r.URL.Query().Get("map_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writePin(w, http.StatusBadRequest, "Invalid map_id", nil)
			return
		}
		mapID := uint(id)
		filter.UserMapID = &mapID
	}
	if c := r.URL.Query().Get("cameras"); c == "1" || c == "true" {
		filter.CameraOnly = true
	}

	pins, err := h.Pins.List(r.Context(), filter)
	if err != nil {
		logging.Err(err).Msg("failed to fetch pins")
		writePin(w, http.StatusInternalServerError, "Failed to fetch pins", nil)
		return
	}
	views := make([]PinView, 0, len(pins))
	for i := range pins {
		views = append(views, h.toPinView(&pins[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *PinHandler) writeDeleteResult(w http.ResponseWriter, err error, id uint) {
	switch {
	case err == nil:
		writePin(w, http.StatusOK, "Pin deleted successfully", nil)
	case errors.Is(err, services.ErrPinNotFound):
		writePin(w, http.StatusNotFound, "Pin not found", nil)
	default:
		logging.Err(err).Uint("pin_id", id).Msg("failed to delete pin")
		writePin(w, http.StatusInternalServerError, "Failed to delete pin", nil)
	}
}

// DeletePin handles DELETE /pins/{id}.
func (h *PinHandler) DeletePin(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writePin(w, http.StatusNotFound, "Pin not found", nil)
		return
	}
	h.writeDeleteResult(w, h.Pins.Delete(r.Context(), id), id)
}

// DeleteCameraPin handles DELETE /camera-pins/{id}; non-camera ids are 404.
func (h *PinHandler) DeleteCameraPin(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writePin(w, http.StatusNotFound, "Pin not found", nil)
		return
	}
	h.writeDeleteResult(w, h.Pins.DeleteCamera(r.Context(), id), id)
}

type sightingView struct {
	Timestamp   string `json:"timestamp"`
	AnimalType  string `json:"animal_type"`
	StrayStatus string `json:"stray_status"`
	Location    string `json:"location"`
	Snapshot    string `json:"snapshot"`
}

type snapshotView struct {
	Timestamp   string `json:"timestamp"`
	StrayStatus string `json:"stray_status"`
	ImageURL    string `json:"image_url"`
	Location    string `json:"location"`
}

func reportLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n > 100 {
		return services.DefaultReportLimit
	}
	return n
}

// RecentSightings handles GET /api/recent-sightings.
func (h *PinHandler) RecentSightings(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Pins.RecentSightings(r.Context(), reportLimit(r))
	if err != nil {
		logging.Err(err).Msg("failed to fetch recent sightings")
		writePin(w, http.StatusInternalServerError, "Failed to fetch recent sightings", nil)
		return
	}
	out := make([]sightingView, 0, len(reports))
	for _, s := range reports {
		out = append(out, sightingView{
			Timestamp:   s.Timestamp(),
			AnimalType:  s.AnimalType,
			StrayStatus: s.StrayStatus,
			Location:    s.Location,
			Snapshot:    h.mediaURL(s.SnapshotPath),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PinHandler) writeSnapshots(w http.ResponseWriter, reports []services.SightingReport) {
	out := make([]snapshotView, 0, len(reports))
	for _, s := range reports {
		out = append(out, snapshotView{
			Timestamp:   s.Timestamp(),
			StrayStatus: s.StrayStatus,
			ImageURL:    h.mediaURL(s.SnapshotPath),
			Location:    s.Location,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": out})
}

// Snapshots handles GET /api/snapshots?cctvName=.
func (h *PinHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Pins.Snapshots(r.Context(), r.URL.Query().Get("cctvName"), reportLimit(r))
	if err != nil {
		logging.Err(err).Msg("failed to fetch snapshots")
		writePin(w, http.StatusInternalServerError, "Failed to fetch snapshots", nil)
		return
	}
	h.writeSnapshots(w, reports)
}

// RecentSnapshots handles GET /api/snapshots/recent.
func (h *PinHandler) RecentSnapshots(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Pins.RecentSnapshots(r.Context(), reportLimit(r))
	if err != nil {
		logging.Err(err).Msg("failed to fetch recent snapshots")
		writePin(w, http.StatusInternalServerError, "Failed to fetch recent snapshots", nil)
		return
	}
	h.writeSnapshots(w, reports)
}
