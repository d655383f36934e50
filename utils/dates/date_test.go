package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateFromUnixMilli(t *testing.T) {
	assert.Equal(t, "2023-11-14", DateFromUnixMilli(1700000000000))
	assert.Equal(t, "1970-01-01", DateFromUnixMilli(0))
	assert.Equal(t, "2024-02-29", DateFromUnixMilli(1709251199999))
	assert.Equal(t, "2024-03-01", DateFromUnixMilli(1709251200000))
}

func TestDateFromUnixMilliIgnoresLocalTimezone(t *testing.T) {
	previous := time.Local
	t.Cleanup(func() { time.Local = previous })

	for _, name := range []string{"Pacific/Kiritimati", "Pacific/Pago_Pago", "Europe/Paris"} {
		location, err := time.LoadLocation(name)
		require.NoError(t, err)
		time.Local = location

		assert.Equal(t, "2023-11-14", DateFromUnixMilli(1700000000000), name)
	}
}

func TestTrailingWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	start, end := TrailingWindow(now, 30)
	assert.Equal(t, "2024-02-09", start)
	assert.Equal(t, "2024-03-10", end)
}
