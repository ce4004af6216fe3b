package config

import (
	"kamstrupgateway/pkg/processor"
	"kamstrupgateway/pkg/sink/domoticz"
)

type Config struct {
	RunID    string
	Sink     *domoticz.Client
	Requests []*processor.Request
	// RequestErrors holds the parse failures of individual value
	// parameters; each fails its own output without aborting the run.
	RequestErrors []error
}
