package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/media"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/permissions"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/validation"
)

const PostsPerPage = 5

type PostHandler struct {
	PostRepo      repository.PostRepository
	Store         media.Store
	Processor     *media.Processor
	PublicBaseURL string
}

func NewPostHandler(postRepo repository.PostRepository, store media.Store, proc *media.Processor, publicBaseURL string) *PostHandler {
	return &PostHandler{PostRepo: postRepo, Store: store, Processor: proc, PublicBaseURL: publicBaseURL}
}

type PostCreateForm struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
}

type PostUpdatePayload struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
}

type CommentPayload struct {
	Body string `json:"comments" validate:"required,max=2000"`
}

type postImageView struct {
	models.PostImage
	URL string `json:"url"`
}

type postView struct {
	*models.Post
	Images []postImageView `json:"images"`
}

func (h *PostHandler) toPostView(p *models.Post) postView {
	images := make([]postImageView, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, postImageView{PostImage: img, URL: assetURL(h.PublicBaseURL, "media", img.Path)})
	}
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	}
	return postView{Post: p, Images: images}
}

// loadPost resolves {id}, writing the error response when it returns nil.
func (h *PostHandler) loadPost(w http.ResponseWriter, r *http.Request) *models.Post {
	id, err := uintParam(r, "id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid post ID format")
		return nil
	}
	post, err := h.PostRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Post not found")
		} else {
			logging.Err(err).Uint("post_id", id).Msg("failed to load post")
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve post")
		}
		return nil
	}
	return post
}

// ListPosts returns one page of posts, newest first.
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	user := currentUser(r)

	posts, total, err := h.PostRepo.ListPage(user.ID, page, PostsPerPage)
	if err != nil {
		logging.Err(err).Msg("failed to list posts")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve posts")
		return
	}
	views := make([]postView, 0, len(posts))
	for i := range posts {
		views = append(views, h.toPostView(&posts[i]))
	}
	lastPage := int((total + PostsPerPage - 1) / PostsPerPage)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"posts": views,
		"meta": map[string]interface{}{
			"current_page": page,
			"last_page":    max(lastPage, 1),
			"per_page":     PostsPerPage,
			"total":        total,
		},
	})
}

// CreatePost takes a multipart form with title, description and images[].
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart form")
		return
	}
	form := PostCreateForm{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	verr := validation.ValidateStruct(form)
	if verr == nil {
		verr = &validation.RequestValidationError{}
	}
	files := formFiles(r, "images")
	checkImages(files, "images", verr)
	if len(verr.Fields()) > 0 {
		writeValidationError(w, verr)
		return
	}

	saved, err := processImages(h.Processor, h.Store, files)
	if err != nil {
		logging.Err(err).Msg("failed to process post images")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to process images")
		return
	}

	user := currentUser(r)
	post := &models.Post{UserID: user.ID, Title: form.Title, Description: &form.Description}
	for _, s := range saved {
		caption := s.Filename
		post.Images = append(post.Images, models.PostImage{Caption: &caption, Path: s.Path, TakenAt: s.TakenAt})
	}
	if err := h.PostRepo.Create(post); err != nil {
		for _, s := range saved {
			h.Store.Delete(s.Path)
		}
		logging.Err(err).Msg("failed to create post")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create post")
		return
	}

	logging.Info().Uint("post_id", post.ID).Int("images", len(saved)).Msg("post created")
	post.User = user
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Post created successfully",
		"post":    h.toPostView(post),
	})
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	post := h.loadPost(w, r)
	if post == nil {
		return
	}
	user := currentUser(r)
	if post.UserID != user.ID && !user.HasGlobalPermission(permissions.PostsEdit) {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "You cannot edit this post")
		return
	}

	var payload PostUpdatePayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.Title = strings.TrimSpace(payload.Title)
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	if err := h.PostRepo.UpdateFields(post.ID, payload.Title, payload.Description); err != nil {
		logging.Err(err).Uint("post_id", post.ID).Msg("failed to update post")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update post")
		return
	}
	post.Title = payload.Title
	post.Description = payload.Description
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Post updated successfully",
		"post":    h.toPostView(post),
	})
}

// DeletePost removes the post, its rows and its image files.
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	post := h.loadPost(w, r)
	if post == nil {
		return
	}
	user := currentUser(r)
	if post.UserID != user.ID && !user.HasGlobalPermission(permissions.PostsDelete) {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "You cannot delete this post")
		return
	}

	if err := h.PostRepo.Delete(post.ID); err != nil {
		logging.Err(err).Uint("post_id", post.ID).Msg("failed to delete post")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to delete post")
		return
	}
	for _, img := range post.Images {
		if err := h.Store.Delete(img.Path); err != nil {
			logging.Warn().Err(err).Str("path", img.Path).Msg("failed to remove post image")
		}
	}
	logging.Info().Uint("post_id", post.ID).Uint("by_user", user.ID).Msg("post deleted")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted successfully"})
}

func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	post := h.loadPost(w, r)
	if post == nil {
		return
	}
	liked, err := h.PostRepo.ToggleLike(post.ID, currentUser(r).ID)
	if err != nil {
		logging.Err(err).Uint("post_id", post.ID).Msg("failed to toggle like")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update like")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"liked": liked})
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	post := h.loadPost(w, r)
	if post == nil {
		return
	}
	var payload CommentPayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.Body = strings.TrimSpace(payload.Body)
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	user := currentUser(r)
	comment := &models.Comment{PostID: post.ID, UserID: user.ID, Body: payload.Body}
	if err := h.PostRepo.AddComment(comment); err != nil {
		logging.Err(err).Uint("post_id", post.ID).Msg("failed to add comment")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to add comment")
		return
	}
	comment.User = user
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Comment added successfully", "comment": comment})
}
