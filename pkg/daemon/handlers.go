package daemon

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/isbattery/isbattery/pkg/config"
	"github.com/isbattery/isbattery/pkg/events"
	"github.com/isbattery/isbattery/pkg/version"
)

func (d *Daemon) getStatus(c *gin.Context) {
	st, err := d.loop.Status(c.Request.Context())
	if err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}

	// No snapshot yet: the power status has never been readable.
	if st.Snapshot == nil {
		c.IndentedJSON(http.StatusServiceUnavailable, st)
		return
	}
	c.IndentedJSON(http.StatusOK, st)
}

func (d *Daemon) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(d.conf)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func (d *Daemon) setCheckInterval(c *gin.Context) {
	var secs int
	if err := c.BindJSON(&secs); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if err := d.conf.SetCheckInterval(secs); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if err := d.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}
	d.apply()

	logrus.Infof("set check interval to %ds", secs)

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set check interval to %d seconds, effective after the next poll", secs))
}

func (d *Daemon) setLowBatteryThreshold(c *gin.Context) {
	var pct int
	if err := c.BindJSON(&pct); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if err := d.conf.SetLowBatteryThreshold(pct); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if err := d.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}
	d.apply()

	logrus.Infof("set low battery threshold to %d%%", pct)

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set low battery threshold to %d%%", pct))
}

func (d *Daemon) pause(c *gin.Context) {
	if err := d.loop.Pause(); err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "monitoring paused")
}

func (d *Daemon) resume(c *gin.Context) {
	if err := d.loop.Resume(); err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "monitoring resumed")
}

func (d *Daemon) refresh(c *gin.Context) {
	if err := d.loop.ForceRefresh(); err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "status will be published on the next poll")
}

func (d *Daemon) getDetailedQuery(c *gin.Context) {
	r, err := d.loop.TestDetailedQuery(c.Request.Context())
	if err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}
	c.IndentedJSON(http.StatusOK, r)
}

// streamEvents sends hub events as Server-Sent Events. The current status,
// if any, is sent first so that watchers do not wait for a change.
func (d *Daemon) streamEvents(c *gin.Context) {
	sub := d.hub.Subscribe("sse")
	defer d.hub.Unsubscribe(sub)

	ctx := c.Request.Context()
	if st, err := d.loop.Status(ctx); err == nil && st.Snapshot != nil {
		c.SSEvent(string(events.StatusUpdate), events.MonitorEvent{
			Kind:     events.StatusUpdate,
			Snapshot: *st.Snapshot,
		})
		c.Writer.Flush()
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
