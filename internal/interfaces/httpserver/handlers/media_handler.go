package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/gallery-api/internal/config"
	domain "github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/infrastructure/auth"
	"github.com/janhq/gallery-api/internal/interfaces/httpserver/requests"
	"github.com/janhq/gallery-api/internal/interfaces/httpserver/responses"
	"github.com/janhq/gallery-api/internal/utils/platformerrors"
)

// MediaHandler exposes feed, media item and profile endpoints.
type MediaHandler struct {
	cfg     *config.Config
	service *domain.Service
	log     zerolog.Logger
}

func NewMediaHandler(cfg *config.Config, service *domain.Service, log zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		cfg:     cfg,
		service: service,
		log:     log.With().Str("component", "media-handler").Logger(),
	}
}

// Feed godoc
// @Summary      List the feed
// @Description  Returns one page of the public feed, or of the caller's uploads when mine=true.
// @Tags         feed
// @Produce      json
// @Param        sort  query     string  false  "LATEST, OLDEST or POPULAR"
// @Param        type  query     string  false  "ALL, IMAGE or VIDEO"
// @Param        tag   query     string  false  "Tag filter"
// @Param        q     query     string  false  "Keyword"
// @Param        page  query     int     false  "Page number, from 1"
// @Param        mine  query     bool    false  "Only the caller's uploads"
// @Success      200   {object}  domain.FeedPage
// @Failure      400   {object}  responses.ErrorResponse
// @Failure      401   {object}  responses.ErrorResponse
// @Router       /v1/feed [get]
func (h *MediaHandler) Feed(c *gin.Context) {
	var req requests.FeedRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid feed query", "9c1e3a57-2b4d-4f60-8e71-a2b3c4d5e6f7")
		return
	}

	page, err := h.service.Feed(c.Request.Context(), req.Query(), auth.ViewerFromContext(c))
	if err != nil {
		responses.HandleError(c, err, "failed to load feed")
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get godoc
// @Summary      Get a media item
// @Tags         media
// @Produce      json
// @Param        id   path      string  true  "Media ID"
// @Success      200  {object}  domain.MediaDetail
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/media/{id} [get]
func (h *MediaHandler) Get(c *gin.Context) {
	detail, err := h.service.Media(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c))
	if err != nil {
		responses.HandleError(c, err, "failed to load media")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Update godoc
// @Summary      Edit a media item
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Media ID"
// @Param        request  body      requests.PatchRequest  true  "Fields to change"
// @Success      200      {object}  responses.MediaResponse
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      403      {object}  responses.ErrorResponse
// @Router       /v1/media/{id} [patch]
func (h *MediaHandler) Update(c *gin.Context) {
	var req requests.PatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5e")
		return
	}

	item, err := h.service.UpdateMedia(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c), req.Patch())
	if err != nil {
		responses.HandleError(c, err, "failed to update media")
		return
	}
	c.JSON(http.StatusOK, responses.MediaResponse{Media: item})
}

// Delete godoc
// @Summary      Delete a media item
// @Tags         media
// @Param        id  path  string  true  "Media ID"
// @Success      204
// @Failure      403  {object}  responses.ErrorResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/media/{id} [delete]
func (h *MediaHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteMedia(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c)); err != nil {
		responses.HandleError(c, err, "failed to delete media")
		return
	}
	c.Status(http.StatusNoContent)
}

// Like godoc
// @Summary      Like a media item
// @Tags         media
// @Produce      json
// @Param        id   path      string  true  "Media ID"
// @Success      200  {object}  responses.LikeResponse
// @Failure      401  {object}  responses.ErrorResponse
// @Router       /v1/media/{id}/like [post]
func (h *MediaHandler) Like(c *gin.Context) {
	h.setLike(c, true)
}

// Unlike godoc
// @Summary      Remove a like from a media item
// @Tags         media
// @Produce      json
// @Param        id   path      string  true  "Media ID"
// @Success      200  {object}  responses.LikeResponse
// @Failure      401  {object}  responses.ErrorResponse
// @Router       /v1/media/{id}/like [delete]
func (h *MediaHandler) Unlike(c *gin.Context) {
	h.setLike(c, false)
}

func (h *MediaHandler) setLike(c *gin.Context, liked bool) {
	if err := h.service.SetMediaLike(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c), liked); err != nil {
		responses.HandleError(c, err, "failed to update like")
		return
	}
	c.JSON(http.StatusOK, responses.LikeResponse{Liked: liked})
}

// URL godoc
// @Summary      Get a download URL
// @Description  Returns a short-lived URL for one variant of a media item. Without a variant the best available asset is used.
// @Tags         media
// @Produce      json
// @Param        id       path      string  true   "Media ID"
// @Param        variant  query     string  false  "small, medium, large, preview or playback"
// @Success      200      {object}  responses.URLResponse
// @Failure      404      {object}  responses.ErrorResponse
// @Router       /v1/media/{id}/url [get]
func (h *MediaHandler) URL(c *gin.Context) {
	var req requests.URLRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "unknown variant", "2b3c4d5e-6f7a-4b8c-9d0e-1f2a3b4c5d6f")
		return
	}

	url, err := h.service.PresignURL(c.Request.Context(), c.Param("id"), domain.Variant(req.Variant))
	if err != nil {
		responses.HandleError(c, err, "failed to sign url")
		return
	}
	c.JSON(http.StatusOK, responses.URLResponse{URL: url, ExpiresIn: int64(h.cfg.S3PresignTTL.Seconds())})
}

// Profile godoc
// @Summary      Get a profile
// @Tags         profiles
// @Produce      json
// @Param        owner_id  path      string  true  "Owner ID"
// @Success      200       {object}  domain.Profile
// @Router       /v1/profiles/{owner_id} [get]
func (h *MediaHandler) Profile(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context(), c.Param("owner_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}
