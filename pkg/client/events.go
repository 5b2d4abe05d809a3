package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/isbattery/isbattery/pkg/events"
)

// WatchEvents streams daemon events until ctx is done, the daemon closes
// the stream, or fn returns an error. A nil error means the stream ended.
func (c *Client) WatchEvents(ctx context.Context, fn func(events.Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream is long-lived: no client timeout applies.
	hc := *c.httpClient
	hc.Timeout = 0

	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrDaemonNotRunning) {
			return ErrDaemonNotRunning
		}
		if errors.Is(err, ErrPermissionDenied) {
			return ErrPermissionDenied
		}
		return pkgerrors.Wrap(err, "failed to subscribe to events")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		_, err := checkResponse(resp.StatusCode, string(b))
		if err == nil {
			err = pkgerrors.Errorf("got %d", resp.StatusCode)
		}
		return pkgerrors.Wrap(err, "failed to subscribe to events")
	}

	err = readEvents(resp.Body, fn)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// readEvents parses a text/event-stream body. Only the event and data
// fields are used; comments, ids and retry hints are ignored.
func readEvents(r io.Reader, fn func(events.Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name string
	var data bytes.Buffer
	dispatch := func() error {
		defer func() {
			name = ""
			data.Reset()
		}()
		if data.Len() == 0 {
			return nil
		}
		payload := bytes.TrimSuffix(data.Bytes(), []byte("\n"))
		ev := events.Event{Name: name, Data: append([]byte(nil), payload...)}
		if ev.Name == "" {
			ev.Name = "message"
		}
		logrus.WithField("event", ev.Name).Trace("received event")
		return fn(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return pkgerrors.Wrap(err, "failed to read event stream")
	}
	return dispatch()
}
