package identifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	require.NoError(t, Name("sched-1.alpha_beta,gamma"))
	require.Error(t, Name(""))
	require.Error(t, Name("bad name"))
	require.Error(t, Name("bad/name"))
}

func TestUUID(t *testing.T) {
	_, err := UUID("not-a-uuid")
	require.Error(t, err)

	id, err := UUID("123e4567-e89b-12d3-a456-426614174000")
	require.NoError(t, err)
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", id.String())
}

func TestDateTimeRoundTrip(t *testing.T) {
	t1, err := DateTime("2024-03-05T09:00:00+01:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T09:00:00+01:00", FormatDateTime(t1))

	t2, err := DateTime("2024-03-05T09:00:00Z")
	require.NoError(t, err)
	assert.True(t, t2.Equal(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)))

	_, err = DateTime("2024-03-05 09:00:00")
	require.Error(t, err)
}

func TestBool(t *testing.T) {
	v, err := Bool("true")
	require.NoError(t, err)
	assert.True(t, v)

	_, err = Bool("yes")
	require.Error(t, err)
}

func TestBoundedUint32(t *testing.T) {
	v, err := BoundedUint32("604800", 0, 1<<31)
	require.NoError(t, err)
	assert.EqualValues(t, 604800, v)

	_, err = BoundedUint32("0", 1, 100)
	require.Error(t, err)
}

func TestTimezoneOffsetMinutes(t *testing.T) {
	require.NoError(t, TimezoneOffsetMinutes(0))
	require.NoError(t, TimezoneOffsetMinutes(-1439))
	require.NoError(t, TimezoneOffsetMinutes(1439))
	require.Error(t, TimezoneOffsetMinutes(1440))
	require.Error(t, TimezoneOffsetMinutes(-1440))
}

func TestUniqueNames(t *testing.T) {
	assert.Equal(t, "", UniqueNames([]string{"a", "b", "c"}))
	assert.Equal(t, "b", UniqueNames([]string{"a", "b", "b", "c"}))
}

func TestBitsetHelpers(t *testing.T) {
	assert.Equal(t, uint64(0xFFF), AllOnes(MonthsWidth))
	assert.True(t, IsAll(AllOnes(MonthsWidth), MonthsWidth))
	assert.False(t, IsAll(0x1, MonthsWidth))
	assert.True(t, HasBit(0b0101, 0))
	assert.False(t, HasBit(0b0101, 1))
}

func TestNormalizeWeekday(t *testing.T) {
	assert.EqualValues(t, 0, NormalizeWeekday(time.Monday))
	assert.EqualValues(t, 2, NormalizeWeekday(time.Wednesday))
	assert.EqualValues(t, 6, NormalizeWeekday(time.Sunday))
}

func TestParseDelimitedTags(t *testing.T) {
	tags, err := ParseDelimitedTags("red, blue ,green")
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue", "green"}, tags)

	_, err = ParseDelimitedTags("red,red")
	require.Error(t, err)

	tags, err = ParseDelimitedTags("")
	require.NoError(t, err)
	assert.Nil(t, tags)
}
