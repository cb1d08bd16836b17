package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/gallery-api/internal/domain/archive"
	domain "github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/infrastructure/auth"
	"github.com/janhq/gallery-api/internal/interfaces/httpserver/requests"
	"github.com/janhq/gallery-api/internal/interfaces/httpserver/responses"
	"github.com/janhq/gallery-api/internal/utils/platformerrors"
)

// AlbumHandler exposes album endpoints, including the ZIP download.
type AlbumHandler struct {
	service  *domain.Service
	streamer *archive.Streamer
	log      zerolog.Logger
}

func NewAlbumHandler(service *domain.Service, streamer *archive.Streamer, log zerolog.Logger) *AlbumHandler {
	return &AlbumHandler{
		service:  service,
		streamer: streamer,
		log:      log.With().Str("component", "album-handler").Logger(),
	}
}

// Get godoc
// @Summary      Get an album
// @Tags         albums
// @Produce      json
// @Param        id   path      string  true  "Album ID"
// @Success      200  {object}  domain.AlbumDetail
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/albums/{id} [get]
func (h *AlbumHandler) Get(c *gin.Context) {
	detail, err := h.service.Album(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c))
	if err != nil {
		responses.HandleError(c, err, "failed to load album")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Update godoc
// @Summary      Edit an album
// @Tags         albums
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Album ID"
// @Param        request  body      requests.PatchRequest  true  "Fields to change"
// @Success      200      {object}  responses.AlbumResponse
// @Failure      403      {object}  responses.ErrorResponse
// @Router       /v1/albums/{id} [patch]
func (h *AlbumHandler) Update(c *gin.Context) {
	var req requests.PatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "3c4d5e6f-7a8b-4c9d-8e0f-1a2b3c4d5e6a")
		return
	}

	album, err := h.service.UpdateAlbum(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c), req.Patch())
	if err != nil {
		responses.HandleError(c, err, "failed to update album")
		return
	}
	c.JSON(http.StatusOK, responses.AlbumResponse{Album: album})
}

// Delete godoc
// @Summary      Delete an album and its items
// @Tags         albums
// @Param        id  path  string  true  "Album ID"
// @Success      204
// @Failure      403  {object}  responses.ErrorResponse
// @Router       /v1/albums/{id} [delete]
func (h *AlbumHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteAlbum(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c)); err != nil {
		responses.HandleError(c, err, "failed to delete album")
		return
	}
	c.Status(http.StatusNoContent)
}

// Like godoc
// @Summary      Like an album
// @Tags         albums
// @Produce      json
// @Param        id   path      string  true  "Album ID"
// @Success      200  {object}  responses.LikeResponse
// @Router       /v1/albums/{id}/like [post]
func (h *AlbumHandler) Like(c *gin.Context) {
	h.setLike(c, true)
}

// Unlike godoc
// @Summary      Remove a like from an album
// @Tags         albums
// @Produce      json
// @Param        id   path      string  true  "Album ID"
// @Success      200  {object}  responses.LikeResponse
// @Router       /v1/albums/{id}/like [delete]
func (h *AlbumHandler) Unlike(c *gin.Context) {
	h.setLike(c, false)
}

func (h *AlbumHandler) setLike(c *gin.Context, liked bool) {
	if err := h.service.SetAlbumLike(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c), liked); err != nil {
		responses.HandleError(c, err, "failed to update like")
		return
	}
	c.JSON(http.StatusOK, responses.LikeResponse{Liked: liked})
}

// Download godoc
// @Summary      Download an album
// @Description  Streams every active item of the album as a ZIP archive. Items whose file cannot be fetched are left out.
// @Tags         albums
// @Produce      application/zip
// @Param        id   path  string  true  "Album ID"
// @Success      200  {file}    binary
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/albums/{id}/download [get]
func (h *AlbumHandler) Download(c *gin.Context) {
	albumID := c.Param("id")
	opened := false

	summary, err := h.streamer.StreamAlbumArchive(c.Request.Context(), albumID, func(plan archive.Plan) (archive.Sink, error) {
		opened = true
		c.Header("Content-Type", "application/zip")
		c.Header("Content-Disposition", contentDisposition(plan.FileName))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Status(http.StatusOK)
		return archive.NewZipSink(c.Writer), nil
	})
	if err == nil {
		h.log.Debug().Str("album_id", albumID).Int("written", summary.Written).Int("skipped", summary.Skipped).Msg("album downloaded")
		return
	}
	if !opened {
		responses.HandleError(c, err, "failed to download album")
		return
	}

	// Headers are already sent; abort the connection.
	h.log.Warn().Err(err).Str("album_id", albumID).Msg("album download aborted")
	panic(http.ErrAbortHandler)
}

func contentDisposition(name string) string {
	fallback := strings.Map(func(r rune) rune {
		if r > 0x7e || r < 0x20 || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	value := fmt.Sprintf(`attachment; filename="%s"`, fallback)
	if fallback != name {
		value += "; filename*=UTF-8''" + url.PathEscape(name)
	}
	return value
}
