package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/janhq/gallery-api/internal/domain/media"
	"github.com/janhq/gallery-api/internal/utils/platformerrors"
	"github.com/janhq/gallery-api/utils/mediaid"
)

// Constraints are the batch limits handed to the coordinator.
type Constraints struct {
	MaxFiles     int
	MaxVideos    int
	MaxFileBytes int64
	AllowedMIMEs []string
}

func (c Constraints) allows(mimeType string) bool {
	if len(c.AllowedMIMEs) == 0 {
		return strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/")
	}
	for _, allowed := range c.AllowedMIMEs {
		if allowed == mimeType {
			return true
		}
	}
	return false
}

// sniff detects the content type of f from its leading bytes.
func sniff(f File) (*mimetype.MIME, error) {
	if f.Open == nil {
		return nil, errors.New("file is not readable")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return mimetype.DetectReader(io.LimitReader(rc, 3072))
}

// validate checks req against the constraints and builds the upload session.
// It performs no writes.
func (c *Coordinator) validate(ctx context.Context, req Request) (*Session, error) {
	invalid := func(message string, fields map[string]any) error {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			message, nil, "3f1e2d4c-5b6a-4789-8c0d-1e2f3a4b5c6d", fields)
	}

	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"authentication required", nil, "c1d2e3f4-5a6b-4c7d-9e8f-0a1b2c3d4e5f")
	}
	if len(req.Files) == 0 {
		return nil, invalid("no files in upload", nil)
	}
	if c.constraints.MaxFiles > 0 && len(req.Files) > c.constraints.MaxFiles {
		return nil, invalid(fmt.Sprintf("at most %d files per upload", c.constraints.MaxFiles), map[string]any{"files": len(req.Files)})
	}
	if len(req.Metadata) != len(req.Files) {
		return nil, invalid("metadata must have one entry per file", map[string]any{"files": len(req.Files), "metadata": len(req.Metadata)})
	}

	session := &Session{
		BatchID: mediaid.NewBatch(),
		OwnerID: req.OwnerID,
		Grouped: req.Grouped || req.AlbumID != "",
	}

	videos := 0
	for i, f := range req.Files {
		meta := req.Metadata[i]
		if err := c.validation.Struct(meta); err != nil {
			return nil, invalid(fmt.Sprintf("file %d: %s", i, describe(err)), map[string]any{"index": i})
		}
		if f.Size <= 0 {
			return nil, invalid(fmt.Sprintf("file %d: size is missing", i), map[string]any{"index": i})
		}
		if c.constraints.MaxFileBytes > 0 && f.Size > c.constraints.MaxFileBytes {
			return nil, invalid(fmt.Sprintf("file %d exceeds max size of %d bytes", i, c.constraints.MaxFileBytes), map[string]any{"index": i})
		}

		detected, err := sniff(f)
		if err != nil {
			return nil, invalid(fmt.Sprintf("file %d is not readable", i), map[string]any{"index": i})
		}
		mimeType := strings.ToLower(detected.String())
		if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
			mimeType = strings.TrimSpace(mimeType[:idx])
		}
		if !c.constraints.allows(mimeType) {
			return nil, invalid(fmt.Sprintf("file %d: unsupported mime type %s", i, mimeType), map[string]any{"index": i, "mime": mimeType})
		}

		kind := media.KindImage
		if strings.HasPrefix(mimeType, "video/") {
			kind = media.KindVideo
			videos++
		}

		session.Descriptors = append(session.Descriptors, &Descriptor{
			Index:    i,
			Name:     f.Name,
			MimeType: mimeType,
			Ext:      strings.TrimPrefix(detected.Extension(), "."),
			Kind:     kind,
			Bytes:    f.Size,
			Width:    meta.Width,
			Height:   meta.Height,
			Meta:     normalizeMeta(meta),
			file:     f,
		})
	}

	if len(req.Files) > 1 && videos > c.constraints.MaxVideos {
		return nil, invalid(fmt.Sprintf("at most %d video(s) allowed in a multi-file upload", c.constraints.MaxVideos), map[string]any{"videos": videos})
	}

	if req.AlbumID != "" {
		album, err := c.repo.GetAlbum(ctx, req.AlbumID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load album")
		}
		if album == nil || album.Status != media.StatusActive {
			return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
				"album not found", nil, "6b7c8d9e-0f1a-4b2c-9d3e-4f5a6b7c8d9e", map[string]any{"album_id": req.AlbumID})
		}
		if album.OwnerID != req.OwnerID {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
				"only the owner can add to this album", nil, "d4e5f6a7-8b9c-4d0e-a1f2-3b4c5d6e7f80")
		}
		session.AppendTo = album.ID
		session.GroupID = album.ID
	} else if session.Grouped {
		session.GroupID = mediaid.NewAlbum()
	}

	for _, d := range session.Descriptors {
		d.MediaID = mediaid.NewMedia()
		d.Key = objectKey(session.OwnerID, d.MediaID, "original", d.Ext)
	}
	return session, nil
}

func normalizeMeta(meta FileMeta) FileMeta {
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Description = strings.TrimSpace(meta.Description)
	tags := make([]string, 0, len(meta.Tags))
	seen := make(map[string]struct{}, len(meta.Tags))
	for _, tag := range meta.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	meta.Tags = tags
	return meta
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", strings.ToLower(fe.Field()), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", strings.ToLower(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
	}
}

func objectKey(ownerID, mediaID, variant, ext string) string {
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("media/%s/%s/%s.%s", ownerID, mediaID, variant, ext)
}
