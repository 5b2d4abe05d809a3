package client

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"syscall"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client talks to the isbattery daemon over its unix socket.
type Client struct {
	socketPath string
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client for the daemon listening on socketPath.
func NewClient(socketPath string) *Client {
	return newClient(socketPath, "http://unix", &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				conn, err := d.DialContext(ctx, "unix", socketPath)
				if err != nil {
					if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
						return nil, ErrDaemonNotRunning
					}
					if errors.Is(err, fs.ErrPermission) {
						return nil, ErrPermissionDenied
					}
					logrus.Errorf("failed to connect to unix socket: %v", err)
					return nil, err
				}
				return conn, nil
			},
		},
	})
}

func newClient(socketPath, baseURL string, hc *http.Client) *Client {
	return &Client{
		socketPath: socketPath,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: hc,
	}
}

// Send sends a request to the daemon and returns the response body.
func (c *Client) Send(method string, path string, data string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"data":   data,
		"unix":   c.socketPath,
	}).Debug("sending request")

	var body io.Reader
	if data != "" {
		body = strings.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to create request")
	}
	if data != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrDaemonNotRunning) {
			return "", ErrDaemonNotRunning
		}
		if errors.Is(err, ErrPermissionDenied) {
			return "", ErrPermissionDenied
		}
		return "", pkgerrors.Wrap(err, "failed to send request")
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to read response body")
	}

	return checkResponse(resp.StatusCode, string(b))
}

func checkResponse(code int, body string) (string, error) {
	switch {
	case code == http.StatusNotFound:
		return "", pkgerrors.Wrap(ErrNotFound, strings.TrimSpace(body))
	case code == http.StatusServiceUnavailable:
		return body, pkgerrors.Wrap(ErrUnavailable, strings.TrimSpace(body))
	case code < 200 || code > 299:
		return "", pkgerrors.Errorf("got %d: %s", code, strings.TrimSpace(body))
	}
	return body, nil
}

// Get sends a GET request.
func (c *Client) Get(path string) (string, error) {
	return c.Send(http.MethodGet, path, "")
}

// Put sends a PUT request.
func (c *Client) Put(path string, data string) (string, error) {
	return c.Send(http.MethodPut, path, data)
}

// Post sends a POST request.
func (c *Client) Post(path string) (string, error) {
	return c.Send(http.MethodPost, path, "")
}
