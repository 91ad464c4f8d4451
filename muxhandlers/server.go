package muxhandlers

import (
	"os"

	"github.com/vitalvas/waypoint/mux"
)

// ServerConfig configures the Server stage.
type ServerConfig struct {
	// Hostname is written to the X-Server-Hostname response header.
	// Resolution order: Hostname, then HostnameEnv, then os.Hostname.
	Hostname string

	// HostnameEnv lists environment variables checked in order, e.g.
	// ["POD_NAME", "HOSTNAME"].
	HostnameEnv []string

	// PoweredBy, when set, is sent as X-Powered-By.
	PoweredBy string
}

// ServerStage returns a stage that sets server identification headers. The
// hostname is resolved once.
func ServerStage(cfg ServerConfig) (mux.StageFunc, error) {
	hostname := cfg.Hostname

	if hostname == "" {
		for _, env := range cfg.HostnameEnv {
			if v, ok := os.LookupEnv(env); ok && v != "" {
				hostname = v
				break
			}
		}
	}

	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, err
		}

		hostname = h
	}

	poweredBy := cfg.PoweredBy

	return func(c *mux.Context) mux.Result {
		h := c.Writer.Header()
		h.Set("X-Server-Hostname", hostname)
		if poweredBy != "" {
			h.Set("X-Powered-By", poweredBy)
		}

		return mux.Next()
	}, nil
}
