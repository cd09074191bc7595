package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// cartTTL bounds how long an abandoned cart survives.
const cartTTL = 7 * 24 * time.Hour

// RedisStore keeps carts in Redis, one hash per session keyed by product
// ID, mirroring the per-session ownership of the cart: no cross-session
// sharing, no concurrent-writer contention expected.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb}, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

func discountKey(sessionID string) string {
	return fmt.Sprintf("cart:%s:discount", sessionID)
}

// line is the stored form of an Item. The price snapshot is kept as a
// string to survive serialization without float rounding.
type line struct {
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

func (s *RedisStore) Add(ctx context.Context, sessionID string, productID int64, price decimal.Decimal, quantity int, override bool) error {
	key := cartKey(sessionID)
	field := strconv.FormatInt(productID, 10)

	cur := line{Quantity: 0, Price: price.String()}
	raw, err := s.rdb.HGet(ctx, key, field).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	if err == nil {
		if err := json.Unmarshal([]byte(raw), &cur); err != nil {
			return fmt.Errorf("corrupt cart line for product %d: %w", productID, err)
		}
	}

	if override {
		cur.Quantity = quantity
	} else {
		cur.Quantity += quantity
	}

	data, err := json.Marshal(cur)
	if err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, field, data)
	pipe.Expire(ctx, key, cartTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Remove(ctx context.Context, sessionID string, productID int64) error {
	// HDel on an absent field is a no-op, which gives Remove its
	// idempotency for free.
	return s.rdb.HDel(ctx, cartKey(sessionID), strconv.FormatInt(productID, 10)).Err()
}

func (s *RedisStore) Items(ctx context.Context, sessionID string) ([]Item, error) {
	raw, err := s.rdb.HGetAll(ctx, cartKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(raw))
	for field, value := range raw {
		productID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt cart key %q: %w", field, err)
		}
		var l line
		if err := json.Unmarshal([]byte(value), &l); err != nil {
			return nil, fmt.Errorf("corrupt cart line for product %d: %w", productID, err)
		}
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			return nil, fmt.Errorf("corrupt price for product %d: %w", productID, err)
		}
		items = append(items, Item{ProductID: productID, Quantity: l.Quantity, Price: price})
	}
	return items, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, cartKey(sessionID), discountKey(sessionID)).Err()
}

func (s *RedisStore) SetDiscountCode(ctx context.Context, sessionID, code string) error {
	return s.rdb.Set(ctx, discountKey(sessionID), code, cartTTL).Err()
}

func (s *RedisStore) DiscountCode(ctx context.Context, sessionID string) (string, error) {
	code, err := s.rdb.Get(ctx, discountKey(sessionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return code, err
}
