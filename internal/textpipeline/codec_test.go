package textpipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_RoundTrips(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 100)

	result, err := Encode(strings.NewReader(text), DefaultTokenizeOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Compressed)
	assert.Equal(t, len(text), result.DecodedLen)
	assert.Greater(t, result.WordScores["quick"], 0)

	decoded, err := Decode(result.Compressed)
	require.NoError(t, err)
	assert.Equal(t, text, decoded)
}

func TestEncode_StopsAtMaxIndexTextLength(t *testing.T) {
	text := strings.Repeat("a", MaxIndexTextLength*2)

	result, err := Encode(strings.NewReader(text), DefaultTokenizeOptions())
	require.NoError(t, err)
	assert.LessOrEqual(t, result.DecodedLen, MaxIndexTextLength+TextBufferSize)
}

func TestEncode_RejectsInvalidUTF8(t *testing.T) {
	bad := []byte{0xff, 0xfe, 0xfd}
	_, err := Encode(strings.NewReader(string(bad)), DefaultTokenizeOptions())
	assert.ErrorIs(t, err, ErrAborted)
}

func TestTokenize_DropsOutOfBoundsTokens(t *testing.T) {
	opts := TokenizeOptions{MinWordLength: 3, MaxWordLength: 5, MaxWordsToIndex: 100}
	tokens := Tokenize("a bb ccc dddd eeeee ffffffff", opts)
	assert.Equal(t, []string{"ccc", "dddd", "eeeee"}, tokens)
}

func TestTokenize_RespectsMaxWordsToIndex(t *testing.T) {
	opts := TokenizeOptions{MinWordLength: 1, MaxWordLength: 30, MaxWordsToIndex: 2}
	tokens := Tokenize("one two three four", opts)
	assert.Len(t, tokens, 2)
}

func TestThrottleDelay(t *testing.T) {
	assert.Equal(t, int64(0), int64(ThrottleDelay(0)))
	assert.Equal(t, int64(0), int64(ThrottleDelay(-5)))
	assert.Equal(t, int64(100000), int64(ThrottleDelay(1))) // 100µs in ns
	assert.Equal(t, int64(9900000), int64(ThrottleDelay(500)))
}
