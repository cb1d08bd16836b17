package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/janhq/gallery-api/internal/config"
	"github.com/janhq/gallery-api/internal/domain/cachekey"
)

const (
	viewerContextKey = "viewer"

	// GatewayUserHeader carries the user id injected by the API gateway when token
	// validation happens upstream.
	GatewayUserHeader = "X-User-ID"
)

var errNoToken = errors.New("no bearer token")

// Validator resolves the viewer of a request from its bearer token.
type Validator struct {
	cfg     *config.Config
	log     zerolog.Logger
	jwks    *keyfunc.JWKS
	keyFunc jwt.Keyfunc
	methods []string
}

// NewValidator initializes JWKS fetching when auth is enabled.
func NewValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Validator, error) {
	logger := log.With().Str("component", "auth").Logger()
	if !cfg.AuthEnabled {
		return &Validator{cfg: cfg, log: logger}, nil
	}

	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error().Err(err).Msg("jwks refresh error")
		},
	}

	jwks, err := keyfunc.Get(cfg.AuthJWKSURL, options)
	if err != nil {
		return nil, err
	}

	return &Validator{
		cfg:     cfg,
		log:     logger,
		jwks:    jwks,
		keyFunc: jwks.Keyfunc,
		methods: []string{"RS256", "RS384", "RS512"},
	}, nil
}

// NewStaticValidator validates tokens against a fixed key function.
func NewStaticValidator(cfg *config.Config, log zerolog.Logger, keyFunc jwt.Keyfunc, methods ...string) *Validator {
	return &Validator{cfg: cfg, log: log, keyFunc: keyFunc, methods: methods}
}

// Middleware attaches the viewer to the request. Requests without credentials
// continue as guests; requests with an invalid token are rejected.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer, err := v.viewer(c)
		if err != nil && !errors.Is(err, errNoToken) {
			v.log.Debug().Err(err).Str("path", c.FullPath()).Msg("rejected bearer token")
			abortUnauthorized(c, "invalid token")
			return
		}
		c.Set(viewerContextKey, viewer)
		c.Next()
	}
}

func (v *Validator) viewer(c *gin.Context) (cachekey.Viewer, error) {
	if v == nil || !v.enabled() {
		return cachekey.Viewer{ID: strings.TrimSpace(c.GetHeader(GatewayUserHeader))}, nil
	}

	tokenString := bearerToken(c.GetHeader("Authorization"))
	if tokenString == "" {
		return cachekey.Guest, errNoToken
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if len(v.methods) > 0 {
		opts = append(opts, jwt.WithValidMethods(v.methods))
	}
	if issuer := strings.TrimSpace(v.cfg.AuthIssuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(v.cfg.AuthAudience); audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, v.keyFunc, opts...)
	if err != nil {
		return cachekey.Guest, err
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return cachekey.Guest, errors.New("token has no subject")
	}
	return cachekey.Viewer{ID: claims.Subject}, nil
}

func (v *Validator) enabled() bool {
	return v.keyFunc != nil
}

// Ready indicates if the validator is prepared.
func (v *Validator) Ready() bool {
	if v == nil || v.cfg == nil || !v.cfg.AuthEnabled {
		return true
	}
	return v.jwks != nil
}

// ViewerFromContext returns the viewer set by Middleware, or a guest.
func ViewerFromContext(c *gin.Context) cachekey.Viewer {
	if val, ok := c.Get(viewerContextKey); ok {
		if viewer, ok := val.(cachekey.Viewer); ok {
			return viewer
		}
	}
	return cachekey.Guest
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}
