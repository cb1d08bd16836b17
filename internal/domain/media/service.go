package media

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/gallery-api/internal/config"
	"github.com/janhq/gallery-api/internal/domain/cachekey"
	"github.com/janhq/gallery-api/internal/infrastructure/cache"
	"github.com/janhq/gallery-api/internal/utils/platformerrors"
)

// LikeTarget is the kind of entity a like points at.
type LikeTarget string

const (
	LikeTargetMedia LikeTarget = "media"
	LikeTargetAlbum LikeTarget = "album"
)

// Repository defines the relational queries the service needs. Lookups return
// (nil, nil) when the row does not exist or is not active.
type Repository interface {
	ListFeed(ctx context.Context, q cachekey.FeedQuery, viewerID string, limit, offset int) ([]FeedItem, error)
	GetMediaDetail(ctx context.Context, id, viewerID string) (*MediaDetail, error)
	GetAlbumDetail(ctx context.Context, id, viewerID string) (*AlbumDetail, error)
	GetProfile(ctx context.Context, ownerID string) (*Profile, error)
	GetMedia(ctx context.Context, id string) (*MediaItem, error)
	GetAlbum(ctx context.Context, id string) (*Album, error)
	SetLike(ctx context.Context, target LikeTarget, targetID, userID string, liked bool) (bool, error)
	UpdateMedia(ctx context.Context, id string, patch Patch) error
	UpdateAlbum(ctx context.Context, id string, patch Patch) error
	SoftDeleteMedia(ctx context.Context, id string) error
	// SoftDeleteAlbum marks the album and its items deleted and returns the item ids.
	SoftDeleteAlbum(ctx context.Context, id string) ([]string, error)
}

// URLSigner issues short-lived download URLs for stored objects.
type URLSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Service serves cached read projections and applies mutations with invalidation.
type Service struct {
	cfg    *config.Config
	repo   Repository
	signer URLSigner
	cache  *cache.Layer
	keys   cachekey.Builder
	log    zerolog.Logger
}

func NewService(cfg *config.Config, repo Repository, signer URLSigner, layer *cache.Layer, log zerolog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		repo:   repo,
		signer: signer,
		cache:  layer,
		keys:   cachekey.NewBuilder(cfg.CacheNamespace),
		log:    log.With().Str("component", "media-service").Logger(),
	}
}

// Feed returns one feed page. Own-upload feeds require an authenticated viewer.
func (s *Service) Feed(ctx context.Context, q cachekey.FeedQuery, viewer cachekey.Viewer) (*FeedPage, error) {
	q = q.Normalize()
	if q.Mine && viewer.IsGuest() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"sign in to list your uploads", nil, "0f7f5a8e-3c21-4d0b-9a55-1b7e0d2c9e41")
	}

	pageSize := s.cfg.FeedPageSize
	page, err := cache.GetOrCompute(ctx, s.cache, s.keys.Feed(q, viewer), s.cfg.CacheFeedTTL, func(ctx context.Context) (*FeedPage, error) {
		items, err := s.repo.ListFeed(ctx, q, viewer.ID, pageSize+1, (q.Page-1)*pageSize)
		if err != nil {
			return nil, err
		}
		hasMore := len(items) > pageSize
		if hasMore {
			items = items[:pageSize]
		}
		return &FeedPage{Items: items, Page: q.Page, PageSize: pageSize, HasMore: hasMore}, nil
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load feed")
	}
	if page.Items == nil {
		page.Items = []FeedItem{}
	}
	return page, nil
}

// Media returns a media item detail as seen by viewer.
func (s *Service) Media(ctx context.Context, id string, viewer cachekey.Viewer) (*MediaDetail, error) {
	detail, err := cache.GetOrCompute(ctx, s.cache, s.keys.MediaDetail(id, viewer), s.cfg.CacheDetailTTL, func(ctx context.Context) (*MediaDetail, error) {
		return s.repo.GetMediaDetail(ctx, id, viewer.ID)
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load media")
	}
	if detail == nil {
		return nil, mediaNotFound(ctx, id)
	}
	return detail, nil
}

// Album returns an album and its active items as seen by viewer.
func (s *Service) Album(ctx context.Context, id string, viewer cachekey.Viewer) (*AlbumDetail, error) {
	detail, err := cache.GetOrCompute(ctx, s.cache, s.keys.AlbumDetail(id, viewer), s.cfg.CacheDetailTTL, func(ctx context.Context) (*AlbumDetail, error) {
		return s.repo.GetAlbumDetail(ctx, id, viewer.ID)
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load album")
	}
	if detail == nil {
		return nil, albumNotFound(ctx, id)
	}
	if detail.Items == nil {
		detail.Items = []MediaItem{}
	}
	return detail, nil
}

// Profile returns the public profile of ownerID. Owners without activity get an
// empty profile.
func (s *Service) Profile(ctx context.Context, ownerID string) (*Profile, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"owner id is required", nil, "5e0c1d2b-8a3f-4e6d-b7c9-2f1a0e9d8c7b")
	}
	profile, err := cache.GetOrCompute(ctx, s.cache, s.keys.Profile(ownerID), s.cfg.CacheProfileTTL, func(ctx context.Context) (*Profile, error) {
		return s.repo.GetProfile(ctx, ownerID)
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load profile")
	}
	if profile == nil {
		profile = &Profile{OwnerID: ownerID}
	}
	if profile.Recent == nil {
		profile.Recent = []MediaItem{}
	}
	return profile, nil
}

// SetMediaLike likes or unlikes a media item for viewer.
func (s *Service) SetMediaLike(ctx context.Context, id string, viewer cachekey.Viewer, liked bool) error {
	if err := requireViewer(ctx, viewer); err != nil {
		return err
	}
	item, err := s.loadMedia(ctx, id)
	if err != nil {
		return err
	}

	changed, err := s.repo.SetLike(ctx, LikeTargetMedia, id, viewer.ID, liked)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update like")
	}
	if !changed {
		return nil
	}

	patterns := []string{
		s.keys.MediaDetailPattern(id),
		s.keys.ProfilePattern(item.OwnerID),
		s.keys.ProfilePattern(viewer.ID),
	}
	if item.AlbumID != nil {
		patterns = append(patterns, s.keys.AlbumDetailPattern(*item.AlbumID))
	}
	s.cache.Invalidate(ctx, patterns...)
	return nil
}

// SetAlbumLike likes or unlikes an album for viewer.
func (s *Service) SetAlbumLike(ctx context.Context, id string, viewer cachekey.Viewer, liked bool) error {
	if err := requireViewer(ctx, viewer); err != nil {
		return err
	}
	album, err := s.loadAlbum(ctx, id)
	if err != nil {
		return err
	}

	changed, err := s.repo.SetLike(ctx, LikeTargetAlbum, id, viewer.ID, liked)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update like")
	}
	if changed {
		s.cache.Invalidate(ctx,
			s.keys.AlbumDetailPattern(id),
			s.keys.ProfilePattern(album.OwnerID),
			s.keys.ProfilePattern(viewer.ID),
		)
	}
	return nil
}

// UpdateMedia edits the title and description of a media item owned by viewer.
func (s *Service) UpdateMedia(ctx context.Context, id string, viewer cachekey.Viewer, patch Patch) (*MediaItem, error) {
	if err := requireViewer(ctx, viewer); err != nil {
		return nil, err
	}
	if err := validatePatch(ctx, patch); err != nil {
		return nil, err
	}
	item, err := s.loadMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(ctx, item.OwnerID, viewer); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return item, nil
	}

	if err := s.repo.UpdateMedia(ctx, id, patch); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update media")
	}
	s.cache.Invalidate(ctx, s.mediaPatterns(item)...)

	applyPatch(&item.Title, &item.Description, patch)
	return item, nil
}

// DeleteMedia soft-deletes a media item owned by viewer.
func (s *Service) DeleteMedia(ctx context.Context, id string, viewer cachekey.Viewer) error {
	if err := requireViewer(ctx, viewer); err != nil {
		return err
	}
	item, err := s.loadMedia(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOwner(ctx, item.OwnerID, viewer); err != nil {
		return err
	}

	if err := s.repo.SoftDeleteMedia(ctx, id); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete media")
	}
	s.cache.Invalidate(ctx, s.mediaPatterns(item)...)
	s.log.Info().Str("media_id", id).Str("owner_id", item.OwnerID).Msg("media deleted")
	return nil
}

// UpdateAlbum edits the title and description of an album owned by viewer.
func (s *Service) UpdateAlbum(ctx context.Context, id string, viewer cachekey.Viewer, patch Patch) (*Album, error) {
	if err := requireViewer(ctx, viewer); err != nil {
		return nil, err
	}
	if err := validatePatch(ctx, patch); err != nil {
		return nil, err
	}
	album, err := s.loadAlbum(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(ctx, album.OwnerID, viewer); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return album, nil
	}

	if err := s.repo.UpdateAlbum(ctx, id, patch); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update album")
	}
	s.cache.Invalidate(ctx, s.keys.AlbumDetailPattern(id), s.keys.ProfilePattern(album.OwnerID))

	applyPatch(&album.Title, &album.Description, patch)
	return album, nil
}

// DeleteAlbum soft-deletes an album and every item in it.
func (s *Service) DeleteAlbum(ctx context.Context, id string, viewer cachekey.Viewer) error {
	if err := requireViewer(ctx, viewer); err != nil {
		return err
	}
	album, err := s.loadAlbum(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOwner(ctx, album.OwnerID, viewer); err != nil {
		return err
	}

	itemIDs, err := s.repo.SoftDeleteAlbum(ctx, id)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete album")
	}

	patterns := make([]string, 0, len(itemIDs)+2)
	patterns = append(patterns, s.keys.AlbumDetailPattern(id), s.keys.ProfilePattern(album.OwnerID))
	for _, itemID := range itemIDs {
		patterns = append(patterns, s.keys.MediaDetailPattern(itemID))
	}
	s.cache.Invalidate(ctx, patterns...)
	s.log.Info().Str("album_id", id).Int("items", len(itemIDs)).Msg("album deleted")
	return nil
}

// PresignURL returns a short-lived URL for one variant of a media item. An empty
// variant selects the highest fidelity asset.
func (s *Service) PresignURL(ctx context.Context, id string, variant Variant) (string, error) {
	item, err := s.loadMedia(ctx, id)
	if err != nil {
		return "", err
	}

	key := item.Assets.Best(item.Kind)
	if variant != "" {
		key = item.Assets.Key(variant)
	}
	if key == "" {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"variant not available for this media", nil, "a3c4e5f6-1b2d-4a8e-9c0f-7d6e5b4a3c21")
	}

	signed, err := s.signer.PresignGet(ctx, key, s.cfg.S3PresignTTL)
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeStorage,
			"failed to sign media url", err, "b8d9e0f1-2a3b-4c5d-8e7f-6a5b4c3d2e10")
	}
	return s.externalizeURL(signed), nil
}

func (s *Service) mediaPatterns(item *MediaItem) []string {
	patterns := []string{s.keys.MediaDetailPattern(item.ID), s.keys.ProfilePattern(item.OwnerID)}
	if item.AlbumID != nil {
		patterns = append(patterns, s.keys.AlbumDetailPattern(*item.AlbumID))
	}
	return patterns
}

func (s *Service) loadMedia(ctx context.Context, id string) (*MediaItem, error) {
	item, err := s.repo.GetMedia(ctx, id)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load media")
	}
	if item == nil || item.Status != StatusActive {
		return nil, mediaNotFound(ctx, id)
	}
	return item, nil
}

func (s *Service) loadAlbum(ctx context.Context, id string) (*Album, error) {
	album, err := s.repo.GetAlbum(ctx, id)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load album")
	}
	if album == nil || album.Status != StatusActive {
		return nil, albumNotFound(ctx, id)
	}
	return album, nil
}

func (s *Service) externalizeURL(raw string) string {
	publicEndpoint := strings.TrimSpace(s.cfg.S3PublicEndpoint)
	if publicEndpoint == "" || strings.TrimSpace(raw) == "" {
		return raw
	}

	target, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	external, err := url.Parse(publicEndpoint)
	if err != nil || external.Scheme == "" || external.Host == "" {
		return raw
	}

	target.Scheme = external.Scheme
	target.Host = external.Host
	if base := strings.TrimSuffix(strings.TrimSpace(external.Path), "/"); base != "" {
		target.Path = base + "/" + strings.TrimPrefix(target.Path, "/")
	}
	return target.String()
}

func requireViewer(ctx context.Context, viewer cachekey.Viewer) error {
	if viewer.IsGuest() {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"authentication required", nil, "c1d2e3f4-5a6b-4c7d-9e8f-0a1b2c3d4e5f")
	}
	return nil
}

func requireOwner(ctx context.Context, ownerID string, viewer cachekey.Viewer) error {
	if ownerID != viewer.ID {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"only the owner can change this resource", nil, "d4e5f6a7-8b9c-4d0e-a1f2-3b4c5d6e7f80")
	}
	return nil
}

func validatePatch(ctx context.Context, patch Patch) error {
	if patch.Title != nil && len(*patch.Title) > 200 {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"title must be at most 200 characters", nil, "e7f8a9b0-1c2d-4e3f-8a5b-6c7d8e9f0a1b")
	}
	if patch.Description != nil && len(*patch.Description) > 2000 {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"description must be at most 2000 characters", nil, "f0a1b2c3-4d5e-4f6a-9b7c-8d9e0f1a2b3c")
	}
	return nil
}

func applyPatch(title, description *string, patch Patch) {
	if patch.Title != nil {
		*title = *patch.Title
	}
	if patch.Description != nil {
		*description = *patch.Description
	}
}

func mediaNotFound(ctx context.Context, id string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		"media not found", nil, "1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f", map[string]any{"media_id": id})
}

func albumNotFound(ctx context.Context, id string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		"album not found", nil, "6b7c8d9e-0f1a-4b2c-9d3e-4f5a6b7c8d9e", map[string]any{"album_id": id})
}
