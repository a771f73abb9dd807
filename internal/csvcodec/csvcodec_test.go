package csvcodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterQuotesOnlyWhenNeeded(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, ';')
	require.NoError(t, w.Record("plain", "has;semi", `has"quote`, "has space"))
	assert.Equal(t, "plain;\"has;semi\";\"has\"\"quote\";\"has space\"\n", buf.String())
}

func TestKeyValueWrite(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, ';')
	require.NoError(t, w.KeyValue("schedule", "s1"))
	assert.Equal(t, "schedule;s1\n", buf.String())
}

func TestRoundTripFields(t *testing.T) {
	fields := []string{"plain", "has;semi", `has"quote`, "has space", ""}
	var buf bytes.Buffer
	w := NewWriter(&buf, ';')
	require.NoError(t, w.Record(fields...))

	r := NewReader(&buf, ';')
	var got []string
	for {
		v, more, err := r.Field()
		require.NoError(t, err)
		got = append(got, v)
		if !more {
			break
		}
	}
	assert.Equal(t, fields, got)
}

func TestReaderKeyValueSequence(t *testing.T) {
	input := "magic;product v1.0.0\nschedule;s1\n\naction;a1\n"
	r := NewReader(bytes.NewBufferString(input), ';')

	k, v, ok, err := r.KeyValue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "magic", k)
	assert.Equal(t, "product v1.0.0", v)

	k, v, ok, err = r.KeyValue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "schedule", k)
	assert.Equal(t, "s1", v)

	// blank line between records
	k, v, ok, err = r.KeyValue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", k)
	assert.Equal(t, "", v)

	k, v, ok, err = r.KeyValue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "action", k)
	assert.Equal(t, "a1", v)

	_, _, ok, err = r.KeyValue()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReaderLeniencyOnUnterminatedQuote(t *testing.T) {
	r := NewReader(bytes.NewBufferString(`"unterminated`), ';')
	v, more, err := r.Field()
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, "unterminated", v)
}

func TestReaderSkipsLeadingWhitespace(t *testing.T) {
	r := NewReader(bytes.NewBufferString("  value;next"), ';')
	v, more, err := r.Field()
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, "value", v)
}
