package tokens

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/e14n/pump2status/types"
)

var tracer = otel.Tracer("tokens")

const keyPrefix = "pump2status:rt:"

// Store keeps OAuth request tokens between the redirect to the foreign host
// and the callback. Each token can be taken once.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func key(hostname, token string) string {
	return keyPrefix + hostname + ":" + token
}

// Save stores rt under its hostname and token.
func (s *Store) Save(ctx context.Context, rt types.RequestToken) error {
	ctx, span := tracer.Start(ctx, "TokensSave")
	defer span.End()

	if rt.Hostname == "" || rt.Token == "" {
		return &types.ValidationError{Field: "token", Reason: "hostname and token are required"}
	}

	payload, err := json.Marshal(rt)
	if err != nil {
		return errors.Wrap(err, "marshal request token")
	}
	if err := s.rdb.Set(ctx, key(rt.Hostname, rt.Token), payload, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "save request token")
	}
	return nil
}

// Take returns and forgets the request token issued by hostname.
func (s *Store) Take(ctx context.Context, hostname, token string) (types.RequestToken, error) {
	ctx, span := tracer.Start(ctx, "TokensTake")
	defer span.End()

	payload, err := s.rdb.GetDel(ctx, key(hostname, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.RequestToken{}, types.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return types.RequestToken{}, errors.Wrap(err, "take request token")
	}

	var rt types.RequestToken
	if err := json.Unmarshal(payload, &rt); err != nil {
		return types.RequestToken{}, errors.Wrap(err, "unmarshal request token")
	}
	return rt, nil
}
