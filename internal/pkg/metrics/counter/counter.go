package counter

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	paymentCountersKey = "coursefox:counters:payments"
	courseSalesKey     = "coursefox:counters:course_sales"
)

// Names of the payment counters.
const (
	CheckoutInitiated = "checkout_initiated"
	CheckoutFailed    = "checkout_failed"
	WebhookEnrolled   = "webhook_enrolled"
	WebhookDuplicate  = "webhook_duplicate"
	WebhookIgnored    = "webhook_ignored"
	WebhookRejected   = "webhook_rejected"
)

// Counters keeps pipeline counters in Redis hashes so every app instance
// adds to the same totals.
type Counters struct {
	client *redis.Client
}

func New(client *redis.Client) *Counters {
	return &Counters{client: client}
}

// Incr adds one to the named payment counter
func (c *Counters) Incr(ctx context.Context, name string) error {
	return c.client.HIncrBy(ctx, paymentCountersKey, name, 1).Err()
}

// AddCourseSale counts a new enrollment created from a payment
func (c *Counters) AddCourseSale(ctx context.Context, courseID uint) error {
	field := strconv.FormatUint(uint64(courseID), 10)
	return c.client.HIncrBy(ctx, courseSalesKey, field, 1).Err()
}

// Snapshot returns the current payment counters
func (c *Counters) Snapshot(ctx context.Context) (map[string]int64, error) {
	return readHash(ctx, c.client, paymentCountersKey)
}

// CourseSales returns enrollments per course id
func (c *Counters) CourseSales(ctx context.Context) (map[uint]int64, error) {
	raw, err := readHash(ctx, c.client, courseSalesKey)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			continue
		}
		out[uint(id)] = v
	}
	return out, nil
}

func readHash(ctx context.Context, client *redis.Client, key string) (map[string]int64, error) {
	data, err := client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
