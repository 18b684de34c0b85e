package delivery

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
)

var signingMethod = jwt.SigningMethodHS256

const tokenIssuer = "chatwoot-scheduler"

// WebhookClaims identify the schedule and audience a webhook call was made for.
type WebhookClaims struct {
	Target enums.NotificationTarget `json:"target"`
	jwt.RegisteredClaims
}

// Signer mints short-lived bearer tokens the automation engine can verify.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns nil when no secret is configured so callers can skip signing.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign issues a token for scheduleID and target.
func (s *Signer) Sign(scheduleID string, target enums.NotificationTarget) (string, error) {
	now := s.now()
	claims := WebhookClaims{
		Target: target,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   scheduleID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing webhook token: %w", err)
	}
	return signed, nil
}

// verify parses a token minted by Sign.
func (s *Signer) verify(token string) (*WebhookClaims, error) {
	claims := &WebhookClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %s", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
