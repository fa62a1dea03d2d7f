// Package playback mints short-lived signed tokens that let a viewer play one
// video playback id. Tokens are never stored.
package playback

import (
	"crypto/rsa"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/openmarket/assetgate/internal/apperr"
	"github.com/openmarket/assetgate/internal/metrics"
)

// DefaultTTL is the fixed token lifetime.
const DefaultTTL = time.Hour

// Kind selects what the token may be used for.
type Kind string

const (
	KindVideo      Kind = "video"
	KindThumbnail  Kind = "thumbnail"
	KindGIF        Kind = "gif"
	KindStoryboard Kind = "storyboard"
)

var audiences = map[Kind]string{
	KindVideo:      "v",
	KindThumbnail:  "t",
	KindGIF:        "g",
	KindStoryboard: "s",
}

// Audience returns the audience claim for k.
func (k Kind) Audience() (string, bool) {
	aud, ok := audiences[k]
	return aud, ok
}

type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Config carries the signing key id and its secret: a base64-encoded PEM RSA
// private key, or the PEM itself.
type Config struct {
	KeyID     string
	KeySecret string
	TTL       time.Duration
}

type Issuer struct {
	keyID  string
	key    *rsa.PrivateKey
	keyErr error
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewIssuer(log *slog.Logger, cfg Config) *Issuer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	i := &Issuer{
		keyID:  cfg.KeyID,
		ttl:    ttl,
		now:    time.Now,
		logger: log.With(slog.String("service", "playback")),
	}
	if cfg.KeySecret != "" {
		i.key, i.keyErr = ParsePrivateKey(cfg.KeySecret)
		if i.keyErr != nil {
			i.logger.Error("video signing key could not be parsed", slog.String("key_id", cfg.KeyID), slog.Any("error", i.keyErr))
		}
	}
	return i
}

// Configured reports whether tokens can be signed.
func (i *Issuer) Configured() bool {
	return i.keyID != "" && i.key != nil
}

// Issue signs a token scoped to playbackID and kind. An empty kind means video.
func (i *Issuer) Issue(playbackID string, kind Kind) (Token, error) {
	token, err := i.issue(playbackID, kind)
	result := metrics.ResultOK
	switch {
	case apperr.Is(err, apperr.KindValidation):
		result = metrics.ResultRejected
	case err != nil:
		result = metrics.ResultFailed
	}
	metrics.CredentialsIssued.WithLabelValues(metrics.KindPlayback, result).Inc()
	return token, err
}

func (i *Issuer) issue(playbackID string, kind Kind) (Token, error) {
	playbackID = strings.TrimSpace(playbackID)
	if playbackID == "" {
		return Token{}, apperr.Validation("playbackId is required")
	}
	if kind == "" {
		kind = KindVideo
	}
	aud, ok := kind.Audience()
	if !ok {
		return Token{}, apperr.Validation("unsupported playback type %s", kind)
	}
	if i.keyErr != nil {
		return Token{}, apperr.Configuration("video signing key is invalid")
	}
	if !i.Configured() {
		return Token{}, apperr.Configuration("video signing credentials are not configured")
	}

	expiresAt := i.now().Add(i.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": playbackID,
		"aud": aud,
		"exp": expiresAt.Unix(),
		"kid": i.keyID,
		"jti": uuid.NewString(),
	})
	token.Header["kid"] = i.keyID
	signed, err := token.SignedString(i.key)
	if err != nil {
		i.logger.Error("sign playback token failed", slog.String("playback_id", playbackID), slog.Any("error", err))
		return Token{}, apperr.Upstream("failed to generate playback token", err)
	}
	return Token{Token: signed, ExpiresAt: expiresAt}, nil
}

// ParsePrivateKey accepts a PEM RSA key, optionally base64-encoded.
func ParsePrivateKey(secret string) (*rsa.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	pem := []byte(secret)
	if !strings.HasPrefix(secret, "-----BEGIN") {
		if decoded, err := base64.StdEncoding.DecodeString(secret); err == nil {
			pem = decoded
		}
	}
	return jwt.ParseRSAPrivateKeyFromPEM(pem)
}
