package client

import (
	"encoding/json"
	"errors"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/isbattery/isbattery/pkg/config"
	"github.com/isbattery/isbattery/pkg/detect"
	"github.com/isbattery/isbattery/pkg/monitor"
)

// GetStatus returns the monitor status. When the daemon has not read the
// power status yet, the returned error wraps ErrUnavailable and the status
// is still filled in.
func (c *Client) GetStatus() (*monitor.Status, error) {
	ret, err := c.Get("/status")
	if err != nil && !errors.Is(err, ErrUnavailable) {
		return nil, pkgerrors.Wrapf(err, "failed to get status")
	}

	var st monitor.Status
	if jerr := json.Unmarshal([]byte(ret), &st); jerr != nil {
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to get status")
		}
		return nil, pkgerrors.Wrapf(jerr, "failed to unmarshal status")
	}
	if err != nil {
		return &st, pkgerrors.Wrapf(err, "no power status yet")
	}

	return &st, nil
}

func (c *Client) Pause() (string, error) {
	return c.Post("/pause")
}

func (c *Client) Resume() (string, error) {
	return c.Post("/resume")
}

func (c *Client) Refresh() (string, error) {
	return c.Post("/refresh")
}

func (c *Client) SetCheckInterval(secs int) (string, error) {
	return c.Put("/check-interval", strconv.Itoa(secs))
}

func (c *Client) SetLowBatteryThreshold(pct int) (string, error) {
	return c.Put("/low-battery-threshold", strconv.Itoa(pct))
}

// TestDetailedQuery asks the daemon to run the detailed battery query once.
func (c *Client) TestDetailedQuery() (*detect.DetailedQueryResult, error) {
	ret, err := c.Get("/detailed-query")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to run detailed query")
	}

	var r detect.DetailedQueryResult
	if err := json.Unmarshal([]byte(ret), &r); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal detailed query result")
	}
	return &r, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}

	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return v, nil
}

func (c *Client) GetMetrics() (string, error) {
	return c.Get("/metrics")
}
