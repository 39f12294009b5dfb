package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/media"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/validation"
)

// AnimalHandler serves the registered animal registry for the web dashboard
// and the mobile app.
type AnimalHandler struct {
	AnimalRepo    repository.AnimalRepository
	Store         media.Store
	Processor     *media.Processor
	PublicBaseURL string
	Now           func() time.Time
}

func NewAnimalHandler(animalRepo repository.AnimalRepository, store media.Store, proc *media.Processor, publicBaseURL string) *AnimalHandler {
	return &AnimalHandler{AnimalRepo: animalRepo, Store: store, Processor: proc, PublicBaseURL: publicBaseURL, Now: time.Now}
}

type AnimalPayload struct {
	Owner      string  `json:"owner" validate:"required,max=255"`
	Contact    string  `json:"contact" validate:"required,max=255"`
	AnimalType string  `json:"animal_type" validate:"required,oneof=dog cat"`
	PetName    *string `json:"pet_name" validate:"omitempty,max=255"`
	Breed      *string `json:"breed" validate:"omitempty,max=255"`
	Picture    *string `json:"picture" validate:"omitempty,url"`
	Status     string  `json:"status" validate:"omitempty,oneof=caught free claimed"`
}

func (p *AnimalPayload) normalize() {
	p.Owner = strings.TrimSpace(p.Owner)
	p.Contact = strings.TrimSpace(p.Contact)
	p.AnimalType = strings.ToLower(strings.TrimSpace(p.AnimalType))
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	p.PetName = trimmedOrNil(p.PetName)
	p.Breed = trimmedOrNil(p.Breed)
	p.Picture = trimmedOrNil(p.Picture)
}

func (p AnimalPayload) apply(a *models.RegisteredAnimal) {
	a.Owner = p.Owner
	a.Contact = p.Contact
	a.AnimalType = p.AnimalType
	a.PetName = p.PetName
	a.Breed = p.Breed
	if p.Picture != nil {
		a.Picture = p.Picture
	}
	a.Status = p.Status
	if a.Status == "" {
		a.Status = models.AnimalStatusFree
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func formOptional(r *http.Request, key string) *string {
	if _, ok := r.MultipartForm.Value[key]; !ok {
		return nil
	}
	v := r.FormValue(key)
	return &v
}

func animalPayloadFromForm(r *http.Request) AnimalPayload {
	return AnimalPayload{
		Owner:      r.FormValue("owner"),
		Contact:    r.FormValue("contact"),
		AnimalType: r.FormValue("animal_type"),
		PetName:    formOptional(r, "pet_name"),
		Breed:      formOptional(r, "breed"),
		Status:     r.FormValue("status"),
	}
}

type animalImageView struct {
	models.AnimalImage
	URL string `json:"url"`
}

type animalView struct {
	*models.RegisteredAnimal
	Images []animalImageView `json:"images"`
}

func (h *AnimalHandler) toAnimalView(a *models.RegisteredAnimal) animalView {
	images := make([]animalImageView, 0, len(a.Images))
	for _, img := range a.Images {
		images = append(images, animalImageView{AnimalImage: img, URL: assetURL(h.PublicBaseURL, "media", img.FilePath)})
	}
	return animalView{RegisteredAnimal: a, Images: images}
}

func (h *AnimalHandler) toAnimalViews(animals []models.RegisteredAnimal) []animalView {
	out := make([]animalView, 0, len(animals))
	for i := range animals {
		out = append(out, h.toAnimalView(&animals[i]))
	}
	return out
}

func (h *AnimalHandler) loadAnimal(w http.ResponseWriter, r *http.Request) *models.RegisteredAnimal {
	id, err := uintParam(r, "id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid animal ID format")
		return nil
	}
	a, err := h.AnimalRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Registered animal not found")
		} else {
			logging.Err(err).Uint("animal_id", id).Msg("failed to load registered animal")
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve registered animal")
		}
		return nil
	}
	return a
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Index returns the registry with its total and today's registrations.
func (h *AnimalHandler) Index(w http.ResponseWriter, r *http.Request) {
	animals, err := h.AnimalRepo.ListAll()
	if err != nil {
		logging.Err(err).Msg("failed to list registered animals")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve registered animals")
		return
	}
	today, err := h.AnimalRepo.CountCreatedSince(startOfDay(h.Now()))
	if err != nil {
		logging.Err(err).Msg("failed to count today's registrations")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve registered animals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"animals": h.toAnimalViews(animals),
		"total":   len(animals),
		"today":   today,
	})
}

// validateForm parses and validates a multipart registry form, writing the
// response itself when ok is false.
func (h *AnimalHandler) validateForm(w http.ResponseWriter, r *http.Request) (AnimalPayload, []savedImage, bool) {
	if err := parseMultipart(w, r); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart form")
		return AnimalPayload{}, nil, false
	}
	payload := animalPayloadFromForm(r)
	payload.normalize()

	verr := validation.ValidateStruct(payload)
	if verr == nil {
		verr = &validation.RequestValidationError{}
	}
	files := formFiles(r, "images")
	checkImages(files, "images", verr)
	if len(verr.Fields()) > 0 {
		writeValidationError(w, verr)
		return AnimalPayload{}, nil, false
	}

	saved, err := processImages(h.Processor, h.Store, files)
	if err != nil {
		logging.Err(err).Msg("failed to process animal images")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to process images")
		return AnimalPayload{}, nil, false
	}
	return payload, saved, true
}

func animalImages(saved []savedImage) []models.AnimalImage {
	out := make([]models.AnimalImage, 0, len(saved))
	for _, s := range saved {
		out = append(out, models.AnimalImage{FileName: s.Filename, FilePath: s.Path})
	}
	return out
}

func (h *AnimalHandler) discard(saved []savedImage) {
	for _, s := range saved {
		if err := h.Store.Delete(s.Path); err != nil {
			logging.Warn().Err(err).Str("path", s.Path).Msg("failed to clean up animal image")
		}
	}
}

// Create handles the multipart web registration form.
func (h *AnimalHandler) Create(w http.ResponseWriter, r *http.Request) {
	payload, saved, ok := h.validateForm(w, r)
	if !ok {
		return
	}
	animal := &models.RegisteredAnimal{}
	payload.apply(animal)
	animal.Images = animalImages(saved)

	if err := h.AnimalRepo.Create(animal); err != nil {
		h.discard(saved)
		logging.Err(err).Msg("failed to register animal")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to register animal")
		return
	}
	logging.Info().Uint("animal_id", animal.ID).Str("type", animal.AnimalType).Msg("animal registered")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Animal registered successfully",
		"animal":  h.toAnimalView(animal),
	})
}

// Update replaces the registry fields and appends any new images.
func (h *AnimalHandler) Update(w http.ResponseWriter, r *http.Request) {
	animal := h.loadAnimal(w, r)
	if animal == nil {
		return
	}
	payload, saved, ok := h.validateForm(w, r)
	if !ok {
		return
	}
	payload.apply(animal)

	if err := h.AnimalRepo.Update(animal); err != nil {
		h.discard(saved)
		logging.Err(err).Uint("animal_id", animal.ID).Msg("failed to update registered animal")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update registered animal")
		return
	}
	images := animalImages(saved)
	if err := h.AnimalRepo.AddImages(animal.ID, images); err != nil {
		h.discard(saved)
		logging.Err(err).Uint("animal_id", animal.ID).Msg("failed to attach animal images")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update registered animal")
		return
	}
	animal.Images = append(animal.Images, images...)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Registered animal updated successfully",
		"animal":  h.toAnimalView(animal),
	})
}

func (h *AnimalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	animal := h.loadAnimal(w, r)
	if animal == nil {
		return
	}
	if err := h.AnimalRepo.Delete(animal.ID); err != nil {
		logging.Err(err).Uint("animal_id", animal.ID).Msg("failed to delete registered animal")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to delete registered animal")
		return
	}
	for _, img := range animal.Images {
		if err := h.Store.Delete(img.FilePath); err != nil && !errors.Is(err, media.ErrAssetNotFound) {
			logging.Warn().Err(err).Str("path", img.FilePath).Msg("failed to remove animal image")
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Registered animal deleted successfully"})
}

// MobileStore takes a JSON registration whose photo was uploaded elsewhere.
func (h *AnimalHandler) MobileStore(w http.ResponseWriter, r *http.Request) {
	var payload AnimalPayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.normalize()
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	animal := &models.RegisteredAnimal{}
	payload.apply(animal)
	if err := h.AnimalRepo.Create(animal); err != nil {
		logging.Err(err).Msg("failed to register animal from mobile")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "Failed to register animal"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"status": "success", "data": h.toAnimalView(animal)})
}

func (h *AnimalHandler) MobileIndex(w http.ResponseWriter, r *http.Request) {
	animals, err := h.AnimalRepo.ListAll()
	if err != nil {
		logging.Err(err).Msg("failed to list registered animals for mobile")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "Failed to fetch registered animals"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": h.toAnimalViews(animals)})
}
