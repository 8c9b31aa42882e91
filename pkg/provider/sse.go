package provider

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/flowchat/engine/pkg/api"
)

// sseDecoder extracts the content delta and terminal marker from one
// event payload. Payloads the backend does not recognize decode to an
// empty delta and are skipped
type sseDecoder func(payload string) (delta string, done bool)

// readEventStream consumes newline-delimited "data:" events from an open
// response body, delivering each non-empty delta to onChunk in arrival
// order and returning the accumulated content. Multi-byte sequences that
// span network reads are handled by the buffered reader; decoding is
// line-at-a-time, never raw-chunk-at-a-time. A stream that ends at EOF
// without an explicit terminal marker is treated as a complete response.
// Exactly one terminal chunk is delivered on every successful return
func readEventStream(
	r io.Reader, p api.Provider, decode sseDecoder, onChunk StreamHandler,
) (string, error) {
	br := bufio.NewReader(r)
	var content strings.Builder

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return content.String(), newTransportError(p, err)
			}
			if delta, _ := decodeLine(line, decode); delta != "" {
				content.WriteString(delta)
				emit(onChunk, delta, false)
			}
			emit(onChunk, "", true)
			return content.String(), nil
		}

		delta, done := decodeLine(line, decode)
		if delta != "" {
			content.WriteString(delta)
			emit(onChunk, delta, false)
		}
		if done {
			emit(onChunk, "", true)
			return content.String(), nil
		}
	}
}

func decodeLine(line string, decode sseDecoder) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" {
		return "", false
	}
	return decode(payload)
}

func emit(onChunk StreamHandler, delta string, done bool) {
	if onChunk == nil {
		return
	}
	onChunk(api.StreamChunk{Content: delta, Done: done})
}
