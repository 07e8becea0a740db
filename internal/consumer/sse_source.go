package consumer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSESource dials a Server-Sent Events stream endpoint.
type SSESource struct {
	url    string
	client *http.Client
}

var _ Source = (*SSESource)(nil)

// NewSSESource creates a source for the given stream URL. The HTTP client
// carries no overall timeout: the stream is long-lived and cancellation
// comes from the dial context.
func NewSSESource(url string) *SSESource {
	return &SSESource{url: url, client: &http.Client{}}
}

// Dial opens the event stream. The returned connection stays bound to ctx
// through the request, so cancelling ctx unblocks pending reads.
func (s *SSESource) Dial(ctx context.Context) (Conn, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: unexpected status %d", resp.StatusCode)
	}

	return &sseConn{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

// sseConn reads SSE frames off a response body.
type sseConn struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

// Recv returns the data payload of the next frame. Comment lines
// (heartbeats) are skipped; multi-line data fields are joined with
// newlines.
func (c *sseConn) Recv() ([]byte, error) {
	var data []byte
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			// A blank line terminates a frame. Frames without data, such
			// as heartbeat comments, are not surfaced.
			if len(data) > 0 {
				return data, nil
			}
		case strings.HasPrefix(line, ":"):
			// Comment line.
		case strings.HasPrefix(line, "data:"):
			field := strings.TrimPrefix(line, "data:")
			field = strings.TrimPrefix(field, " ")
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, field...)
		}
	}
}

func (c *sseConn) Close() error {
	return c.body.Close()
}
