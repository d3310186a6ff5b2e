package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), d)

	ts, err := ParseDate("2024-06-03T09:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 9, ts.Hour())

	_, err = ParseDate("03/06/2024")
	assert.Error(t, err)
}

func TestDayStart(t *testing.T) {
	in := time.Date(2024, 6, 3, 17, 45, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), DayStart(in))
}
