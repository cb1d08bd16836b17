package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/gallery-api/internal/config"
	"github.com/janhq/gallery-api/internal/domain/upload"
	"github.com/janhq/gallery-api/internal/infrastructure/auth"
	"github.com/janhq/gallery-api/internal/interfaces/httpserver/requests"
	"github.com/janhq/gallery-api/internal/interfaces/httpserver/responses"
	"github.com/janhq/gallery-api/internal/utils/platformerrors"
)

// UploadHandler accepts multipart batch uploads.
type UploadHandler struct {
	cfg         *config.Config
	coordinator *upload.Coordinator
	log         zerolog.Logger
}

func NewUploadHandler(cfg *config.Config, coordinator *upload.Coordinator, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		cfg:         cfg,
		coordinator: coordinator,
		log:         log.With().Str("component", "upload-handler").Logger(),
	}
}

// Upload godoc
// @Summary      Upload a batch of media
// @Description  Stores every file of the batch and records it, or stores nothing. Grouped batches become one album, or join album_id.
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Param        files[]            formData  file    true   "Files, in display order"
// @Param        metadata           formData  string  true   "JSON array of {width,height,title,description,tags}, one per file"
// @Param        grouped            formData  bool    false  "Store the batch as an album"
// @Param        album_title        formData  string  false  "Title of the new album"
// @Param        album_description  formData  string  false  "Description of the new album"
// @Param        album_id           formData  string  false  "Existing album to append to"
// @Success      201  {object}  upload.Result
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      401  {object}  responses.ErrorResponse
// @Failure      502  {object}  responses.ErrorResponse
// @Router       /v1/uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	viewer := auth.ViewerFromContext(c)
	if viewer.IsGuest() {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "authentication required", "4d5e6f7a-8b9c-4d0e-9f1a-2b3c4d5e6f7b")
		return
	}

	if limit := h.requestLimit(); limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "upload exceeds the allowed size", "5e6f7a8b-9c0d-4e1f-8a2b-3c4d5e6f7a8c")
			return
		}
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "expected a multipart form", "6f7a8b9c-0d1e-4f2a-9b3c-4d5e6f7a8b9d")
		return
	}
	release := func() {
		if err := form.RemoveAll(); err != nil {
			h.log.Warn().Err(err).Msg("failed to remove multipart temp files")
		}
	}

	var fields requests.UploadForm
	if err := c.ShouldBind(&fields); err != nil {
		release()
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid upload form", "7a8b9c0d-1e2f-4a3b-8c4d-5e6f7a8b9c0e")
		return
	}
	var metadata []upload.FileMeta
	if raw := strings.TrimSpace(fields.Metadata); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			release()
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "metadata must be a JSON array", "8b9c0d1e-2f3a-4b4c-9d5e-6f7a8b9c0d1f")
			return
		}
	}

	result, err := h.coordinator.Upload(c.Request.Context(), upload.Request{
		OwnerID:          viewer.ID,
		Files:            formFiles(form),
		Metadata:         metadata,
		Grouped:          fields.Grouped,
		AlbumTitle:       fields.AlbumTitle,
		AlbumDescription: fields.AlbumDescription,
		AlbumID:          strings.TrimSpace(fields.AlbumID),
		Release:          release,
	})
	if err != nil {
		responses.HandleError(c, err, "upload failed")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *UploadHandler) requestLimit() int64 {
	if h.cfg.UploadMaxBytes <= 0 || h.cfg.UploadMaxFiles <= 0 {
		return 0
	}
	return h.cfg.UploadMaxBytes*int64(h.cfg.UploadMaxFiles) + 1<<20
}

func formFiles(form *multipart.Form) []upload.File {
	headers := form.File["files[]"]
	if len(headers) == 0 {
		headers = form.File["files"]
	}
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, upload.File{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return files
}
