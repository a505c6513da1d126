package outbox

import (
	"math/rand"
	"time"
)

const (
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 5 * time.Minute
	defaultJitter    = 0.2
)

// Backoff экспоненциальная задержка между попытками отправки элемента.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
	// Rand возвращает число в [0,1). Если nil, используется math/rand.
	Rand func() float64
}

// Delay возвращает задержку перед попыткой номер attempt (с единицы).
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxDelay := b.Max
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			delay = maxDelay
			break
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	if b.Jitter <= 0 {
		return delay
	}
	rnd := b.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	// смещение в пределах ±Jitter от задержки
	offset := (rnd()*2 - 1) * b.Jitter * float64(delay)
	return delay + time.Duration(offset)
}
