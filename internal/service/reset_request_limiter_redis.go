package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// resetRequestCountScript suma una solicitud de código y fija la ventana
// en milisegundos solo en la primera, para que reintentos no la extiendan.
const resetRequestCountScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

const resetRequestKeyPrefix = "auth:reset:req:"

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// resetRequestLimiter limita cuántos códigos de recuperación se envían a un
// mismo email por ventana, compartido entre réplicas. Si Redis falla se deja
// pasar la solicitud: el límite por IP sigue protegiendo el endpoint.
type resetRequestLimiter struct {
	client   redisEvaler
	windowMs int64
	max      int64
}

func NewRedisResetRequestLimiter(client *redis.Client, window time.Duration, max int) OTPRateLimiter {
	if client == nil {
		return nil
	}
	return newResetRequestLimiter(client, window, max)
}

func newResetRequestLimiter(client redisEvaler, window time.Duration, max int) *resetRequestLimiter {
	if window < time.Millisecond {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &resetRequestLimiter{
		client:   client,
		windowMs: window.Milliseconds(),
		max:      int64(max),
	}
}

func resetRequestKey(email string) string {
	return resetRequestKeyPrefix + normalizeEmail(email)
}

// Allow recibe el email tal como llegó en forgot-password.
func (l *resetRequestLimiter) Allow(ctx context.Context, email string) bool {
	if l == nil || l.client == nil {
		return true
	}
	if normalizeEmail(email) == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	sent, err := l.client.Eval(ctx, resetRequestCountScript, []string{resetRequestKey(email)}, l.windowMs).Int64()
	if err != nil {
		return true
	}
	return sent <= l.max
}
