package textpipeline

import (
	"bytes"
	"compress/flate"
	"errors"
	"io"
	"unicode/utf8"
)

// TextBufferSize is the chunk size read per iteration (§4.4 "TEXT_BUFFER ≈ 64 KiB").
const TextBufferSize = 64 * 1024

// MaxIndexTextLength caps the cumulative decoded input fed to the encoder
// (§4.4 "MAX_INDEX_TEXT_LENGTH ≈ 1 MiB").
const MaxIndexTextLength = 1024 * 1024

// ErrAborted is returned when the chunked encode loop bails out (encoder
// failure or invalid input) rather than completing cleanly — callers must
// store nothing for the content blob in that case (§4.4 "on abort ...
// store nothing").
var ErrAborted = errors.New("textpipeline: chunked encode aborted")

// EncodeResult is the product of a clean chunked-compression pass.
type EncodeResult struct {
	Compressed []byte
	WordScores map[string]int
	DecodedLen int
}

// Encode reads from src in TextBufferSize chunks, rewinding each chunk to
// its last newline so every chunk ends on a word boundary, tokenizing each
// chunk into the running word-score map, and feeding it to a streaming
// DEFLATE encoder. It stops cleanly at EOF or once DecodedLen reaches
// MaxIndexTextLength, and returns ErrAborted if the input isn't valid
// UTF-8 or the encoder fails.
func Encode(src io.Reader, opts TokenizeOptions) (*EncodeResult, error) {
	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]int)
	decodedLen := 0
	buf := make([]byte, TextBufferSize)
	var pending []byte

	for decodedLen < MaxIndexTextLength {
		n, readErr := src.Read(buf)
		if n > 0 {
			chunk := append(pending, buf[:n]...)
			pending = nil

			if readErr == nil {
				// Not EOF yet: rewind to the last newline so this chunk
				// ends on a word boundary; carry the remainder forward.
				if idx := bytes.LastIndexByte(chunk, '\n'); idx >= 0 && idx < len(chunk)-1 {
					pending = append(pending, chunk[idx+1:]...)
					chunk = chunk[:idx+1]
				}
			}

			if !utf8.Valid(chunk) {
				return nil, ErrAborted
			}

			for token, count := range ScoreMap(Tokenize(string(chunk), opts)) {
				scores[token] += count
			}

			if _, err := fw.Write(chunk); err != nil {
				return nil, ErrAborted
			}
			decodedLen += len(chunk)
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, ErrAborted
		}
	}

	if len(pending) > 0 {
		if !utf8.Valid(pending) {
			return nil, ErrAborted
		}
		for token, count := range ScoreMap(Tokenize(string(pending), opts)) {
			scores[token] += count
		}
		if _, err := fw.Write(pending); err != nil {
			return nil, ErrAborted
		}
		decodedLen += len(pending)
	}

	if err := fw.Close(); err != nil {
		return nil, ErrAborted
	}

	return &EncodeResult{
		Compressed: compressed.Bytes(),
		WordScores: scores,
		DecodedLen: decodedLen,
	}, nil
}

// Decode reverses Encode's DEFLATE stream back to UTF-8 text. This backs
// the dbengine `uncompress` SQL function (§4.2).
func Decode(compressed []byte) (string, error) {
	fr := flate.NewReader(bytes.NewReader(compressed))
	defer fr.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, fr); err != nil {
		return "", err
	}
	return out.String(), nil
}
