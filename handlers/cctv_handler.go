package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/media"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/validation"
)

const (
	processVideoPath  = "/process-video/"
	maxDetectUpload   = 200 << 20
	maxProcessedVideo = 500 << 20
)

// CCTVHandler manages custom camera feeds and forwards clips to the external
// detection service.
type CCTVHandler struct {
	CCTVRepo          repository.CCTVRepository
	Store             media.Store
	VideoProcessorURL string
	PublicBaseURL     string
	Client            *http.Client
}

func NewCCTVHandler(cctvRepo repository.CCTVRepository, store media.Store, videoProcessorURL, publicBaseURL string) *CCTVHandler {
	return &CCTVHandler{
		CCTVRepo:          cctvRepo,
		Store:             store,
		VideoProcessorURL: strings.TrimRight(videoProcessorURL, "/"),
		PublicBaseURL:     publicBaseURL,
		Client:            &http.Client{Timeout: 10 * time.Minute},
	}
}

type CCTVCreatePayload struct {
	CameraName       string  `json:"camera_name" validate:"required,max=255"`
	Location         string  `json:"location" validate:"required,max=255"`
	StreamURL        string  `json:"stream_url" validate:"required,url"`
	OriginalStreamID *string `json:"original_stream_id" validate:"omitempty,max=255"`
	Status           string  `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (h *CCTVHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.CCTVRepo.ListAll()
	if err != nil {
		logging.Err(err).Msg("failed to list cctvs")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve CCTV feeds")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CCTVHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload CCTVCreatePayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.CameraName = strings.TrimSpace(payload.CameraName)
	payload.Location = strings.TrimSpace(payload.Location)
	payload.StreamURL = strings.TrimSpace(payload.StreamURL)
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}
	if payload.Status == "" {
		payload.Status = "active"
	}

	c := &models.CCTV{
		CameraName:       payload.CameraName,
		Location:         payload.Location,
		StreamURL:        payload.StreamURL,
		OriginalStreamID: payload.OriginalStreamID,
		Status:           payload.Status,
		IsCustom:         true,
	}
	if err := h.CCTVRepo.Create(c); err != nil {
		logging.Err(err).Msg("failed to create cctv")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create CCTV feed")
		return
	}
	logging.Info().Uint("cctv_id", c.ID).Str("camera", c.CameraName).Msg("cctv feed added")
	writeJSON(w, http.StatusCreated, c)
}

func (h *CCTVHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid CCTV ID format")
		return
	}
	if err := h.CCTVRepo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "CCTV feed not found")
			return
		}
		logging.Err(err).Uint("cctv_id", id).Msg("failed to delete cctv")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to delete CCTV feed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "CCTV feed deleted successfully"})
}

// Detect sends the uploaded clip to the video processor and stores the
// annotated result.
func (h *CCTVHandler) Detect(w http.ResponseWriter, r *http.Request) {
	if h.VideoProcessorURL == "" {
		WriteAPIError(w, http.StatusServiceUnavailable, CodeUpstream, "Video processing is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxDetectUpload)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		writeValidationError(w, validation.NewFieldError("video", "The video field is required."))
		return
	}
	defer file.Close()

	body, err := h.forward(r, file, header)
	if err != nil {
		logging.Err(err).Str("file", header.Filename).Msg("video processing failed")
		WriteAPIError(w, http.StatusBadGateway, CodeUpstream, "Failed to process video")
		return
	}
	defer body.Close()

	rel, err := h.Store.Save(media.AssetTypeVideo, "", fmt.Sprintf("processed_%s.mp4", uuid.NewString()), io.LimitReader(body, maxProcessedVideo))
	if err != nil {
		logging.Err(err).Msg("failed to store processed video")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to store processed video")
		return
	}
	logging.Info().Str("path", rel).Msg("processed video stored")
	writeJSON(w, http.StatusOK, map[string]string{"video_url": assetURL(h.PublicBaseURL, "media", rel)})
}

func (h *CCTVHandler) forward(r *http.Request, file multipart.File, header *multipart.FileHeader) (io.ReadCloser, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video", header.Filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.VideoProcessorURL+processVideoPath, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("video processor returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
