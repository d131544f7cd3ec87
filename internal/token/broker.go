package token

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/openoj/judgehub/internal/token")

// ErrNoToken means no credential is stored for the submission: either none
// was issued, it expired, or it was already consumed.
var ErrNoToken = errors.New("no token stored for submission")

//go:generate mockgen -destination ./mock/mock.go -package mock . Cache

// Cache is the ephemeral key-value backend holding issued tokens. There is no
// persistent storage; a lost cache just means the affected submissions need a
// rejudge.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

const (
	keyPrefix  = "judgehub-dispatch-token-"
	tokenBytes = 48
	// Tokens linger until a rejudge resets the dispatch; the TTL only bounds
	// cache growth for submissions whose worker never calls back.
	tokenTTL = 48 * time.Hour
)

// Broker issues one single-use credential per dispatch attempt and consumes
// it on the first successful verification.
type Broker struct {
	cache Cache
}

func NewBroker(cache Cache) *Broker {
	return &Broker{cache: cache}
}

// Issue mints a fresh URL-safe token for a dispatch attempt, replacing any
// token still stored for the submission.
func (b *Broker) Issue(ctx context.Context, submissionID string) (string, error) {
	ctx, span := tracer.Start(ctx, "Broker.Issue", trace.WithAttributes(
		attribute.String("submission.id", submissionID),
	))
	defer span.End()

	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read random bytes")
		return "", err
	}

	tok := base64.RawURLEncoding.EncodeToString(raw)

	if err := b.cache.Set(ctx, keyPrefix+submissionID, tok, tokenTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store token")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "issued token")
	return tok, nil
}

// Verify compares the presented token against the stored one in constant
// time. On success the stored token is deleted, so a second callback
// presenting the same token fails.
func (b *Broker) Verify(ctx context.Context, submissionID, presented string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Broker.Verify", trace.WithAttributes(
		attribute.String("submission.id", submissionID),
	))
	defer span.End()

	stored, err := b.cache.Get(ctx, keyPrefix+submissionID)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "no token stored")
			return false, nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load stored token")
		return false, err
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "token did not match")
		return false, nil
	}

	if err := b.cache.Delete(ctx, keyPrefix+submissionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to consume token")
		return false, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "verified and consumed token")
	return true, nil
}
