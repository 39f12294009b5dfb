package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/straysafe/straysafebackend/database"
	"github.com/straysafe/straysafebackend/geo"
	"github.com/straysafe/straysafebackend/media"
	"github.com/straysafe/straysafebackend/realtime"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/services"
	"github.com/straysafe/straysafebackend/workers"
)

type discardQueue struct{}

func (discardQueue) QueueJob(workers.SnapshotJob) bool { return true }

type discardHub struct{}

func (discardHub) Broadcast(realtime.Event) {}

func newPinRouter(t *testing.T, env *testEnv) http.Handler {
	t.Helper()
	store, err := media.NewLocalStorage(t.TempDir(), map[media.AssetType]string{
		media.AssetTypeSnapshot:  "snapshots",
		media.AssetTypeThumbnail: "thumbnails",
	})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	reports, err := database.NewReports(env.db)
	if err != nil {
		t.Fatalf("NewReports: %v", err)
	}
	svc := services.NewPinService(
		repository.NewGormPinRepository(env.db),
		repository.NewGormUserMapRepository(env.db),
		reports, store, discardQueue{}, discardHub{},
		services.PinServiceOptions{Jitter: func() float64 { return 0 }},
	)
	h := NewPinHandler(svc, "http://localhost:8000")

	r := chi.NewRouter()
	r.With(StaticTokenMiddleware([]string{"machine-token"})).Post("/api/pin", h.CreateSighting)
	r.With(StaticTokenMiddleware([]string{"machine-token"})).Post("/api/camera-pin", h.CreateCamera)
	r.Get("/pins", h.ListPins)
	r.Delete("/pins/{id}", h.DeletePin)
	r.Delete("/camera-pins/{id}", h.DeleteCameraPin)
	return r
}

type pinEnvelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Pin     struct{ ID uint }   `json:"pin"`
	Errors  map[string][]string `json:"errors"`
}

func TestPinLifecycle(t *testing.T) {
	env := newTestEnv(t)
	router := newPinRouter(t, env)
	const machine = "Bearer machine-token"

	rec := doRequest(t, router, http.MethodPost, "/api/pin", map[string]interface{}{
		"animal_type":  "dog",
		"stray_status": "stray",
		"coordinates":  []interface{}{"120.98", 14.6},
	}, machine)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sighting = %d (%s)", rec.Code, rec.Body.String())
	}
	var sighting pinEnvelope
	decodeResponse(t, rec, &sighting)
	if !sighting.Success || sighting.Pin.ID == 0 {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/api/camera-pin", map[string]interface{}{
		"coordinates":       []float64{121.0, 14.7},
		"camera_name":       "Gate",
		"conical_view":      "1",
		"viewing_direction": 90,
		"viewing_angle":     60,
		"perception_range":  30,
	}, machine)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create camera = %d (%s)", rec.Code, rec.Body.String())
	}
	var camera pinEnvelope
	decodeResponse(t, rec, &camera)

	rec = doRequest(t, router, http.MethodGet, "/pins", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	var pins []PinView
	decodeResponse(t, rec, &pins)
	if len(pins) != 2 {
		t.Fatalf("len(pins) = %d, want 2", len(pins))
	}
	for _, p := range pins {
		switch p.ID {
		case sighting.Pin.ID:
			if p.IsCamera || p.Coordinates != (geo.Point{120.98, 14.6}) {
				t.Errorf("sighting view = %+v", p)
			}
		case camera.Pin.ID:
			if !p.IsCamera || len(p.ConeCoordinates) == 0 || p.ConeCenter == nil {
				t.Errorf("camera view missing cone: %+v", p)
			}
		}
	}

	rec = doRequest(t, router, http.MethodGet, "/pins?cameras=1", nil, "")
	decodeResponse(t, rec, &pins)
	if len(pins) != 1 || pins[0].ID != camera.Pin.ID {
		t.Errorf("camera filter returned %+v", pins)
	}

	// the camera delete route refuses sightings
	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/camera-pins/%d", sighting.Pin.ID), nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("camera delete of sighting = %d, want 404", rec.Code)
	}
	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/pins/%d", sighting.Pin.ID), nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete sighting = %d", rec.Code)
	}
	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/pins/%d", sighting.Pin.ID), nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rec.Code)
	}
	rec = doRequest(t, router, http.MethodDelete, "/pins/abc", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("non-numeric id = %d, want 404", rec.Code)
	}
}

func TestCreatePinErrors(t *testing.T) {
	env := newTestEnv(t)
	router := newPinRouter(t, env)

	tests := []struct {
		name   string
		body   interface{}
		header string
		want   int
		field  string
	}{
		{"no token", map[string]interface{}{"animal_type": "dog"}, "", http.StatusUnauthorized, ""},
		{"missing fields", map[string]interface{}{"coordinates": []float64{1, 2}}, "Bearer machine-token", http.StatusUnprocessableEntity, "animal_type"},
		{"latitude out of range", map[string]interface{}{"animal_type": "dog", "stray_status": "stray", "coordinates": []float64{1, 95}}, "Bearer machine-token", http.StatusUnprocessableEntity, "coordinates"},
		{"bad snapshot", map[string]interface{}{"animal_type": "dog", "stray_status": "stray", "coordinates": []float64{1, 2}, "snapshot": "data:image/jpeg;base64,%%%"}, "Bearer machine-token", http.StatusBadRequest, ""},
		{"unknown map", map[string]interface{}{"animal_type": "dog", "stray_status": "stray", "coordinates": []float64{1, 2}, "user_map_id": 999}, "Bearer machine-token", http.StatusUnprocessableEntity, "user_map_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/pin", tt.body, tt.header)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			var body pinEnvelope
			decodeResponse(t, rec, &body)
			if body.Success {
				t.Error("success flag set on failure")
			}
			if tt.field != "" {
				if _, ok := body.Errors[tt.field]; !ok {
					t.Errorf("missing %s error: %v", tt.field, body.Errors)
				}
			}
		})
	}
}

func TestCreatePinRejectsBadGeometry(t *testing.T) {
	env := newTestEnv(t)
	router := newPinRouter(t, env)

	tests := []struct {
		name string
		path string
		body map[string]interface{}
		want string
	}{
		{"sighting with empty coordinates", "/api/pin",
			map[string]interface{}{"animal_type": "dog", "stray_status": "stray", "coordinates": []float64{}}, "coordinates"},
		{"camera with empty coordinates", "/api/camera-pin",
			map[string]interface{}{"coordinates": []float64{}}, "coordinates"},
		{"camera with forged cone", "/api/camera-pin",
			map[string]interface{}{
				"coordinates": []float64{120.98, 14.6}, "conical_view": true,
				"viewing_direction": 90, "viewing_angle": 60, "perception_range": 30,
				"cone_coordinates": [][]float64{{120.98, 14.6}, {125, 20}, {100, 0}, {120.98, 14.6}},
				"cone_center":      []float64{120.98028, 14.6},
			}, "cone_coordinates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, tt.path, tt.body, "Bearer machine-token")
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
			}
			var body pinEnvelope
			decodeResponse(t, rec, &body)
			if _, ok := body.Errors[tt.want]; !ok {
				t.Errorf("missing %s error: %v", tt.want, body.Errors)
			}
		})
	}

	rec := doRequest(t, router, http.MethodGet, "/pins", nil, "")
	var listed []PinView
	decodeResponse(t, rec, &listed)
	if len(listed) != 0 {
		t.Errorf("rejected requests stored %d pins", len(listed))
	}
}
