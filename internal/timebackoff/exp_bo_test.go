package timebackoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, 1*time.Second, ExponentialBackoff(0, time.Minute))
	assert.Equal(t, 2*time.Second, ExponentialBackoff(1, time.Minute))
	assert.Equal(t, 8*time.Second, ExponentialBackoff(3, time.Minute))
	assert.Equal(t, 30*time.Second, ExponentialBackoff(10, 30*time.Second))
	assert.Equal(t, 30*time.Second, ExponentialBackoff(200, 30*time.Second))
	assert.Equal(t, 1*time.Second, ExponentialBackoff(-3, time.Minute))
}

func TestWithJitter(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := WithJitter(10 * time.Second)
		assert.GreaterOrEqual(t, d, 10*time.Second)
		assert.LessOrEqual(t, d, 11*time.Second)
	}
}

func TestDelayStaysBelowCap(t *testing.T) {
	for i := 0; i < 50; i++ {
		assert.LessOrEqual(t, Delay(10, 30*time.Second), 30*time.Second)

		d := Delay(1, time.Minute)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 2200*time.Millisecond)
	}
}
