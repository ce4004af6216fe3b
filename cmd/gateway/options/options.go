package options

import (
	"time"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"kamstrupgateway/cmd/gateway/config"
	baseoptions "kamstrupgateway/pkg/generic/options"
	"kamstrupgateway/pkg/processor"
	"kamstrupgateway/pkg/sink/domoticz"
	"kamstrupgateway/pkg/utils/uuidutil"
)

type Options struct {
	Device     string        `json:"device"`
	SinkHost   string        `json:"sinkHost"`
	SinkPort   int           `json:"sinkPort"`
	MeterName  string        `json:"meterName"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"maxRetries"`
	TraceFile  string        `json:"traceFile"`
	MQTTBroker string        `json:"mqttBroker"`
	Values     []string      `json:"values"`
	TestMeter  bool          `json:"-"`
	TestSink   bool          `json:"-"`
	baseoptions.BaseOptions
}

const (
	_defaultSinkHost   = "localhost"
	_defaultSinkPort   = 8080
	_defaultMeterName  = "multical402"
	_defaultTimeout    = 5 * time.Second
	_defaultMaxRetries = 3
)

func NewDefaultOptions() *Options {
	return &Options{
		SinkHost:    _defaultSinkHost,
		SinkPort:    _defaultSinkPort,
		MeterName:   _defaultMeterName,
		Timeout:     _defaultTimeout,
		MaxRetries:  _defaultMaxRetries,
		BaseOptions: baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Device, "device", "d", o.Device, "Serial device of the optical head - e.g. /dev/ttyUSB0")
	fs.StringVar(&o.SinkHost, "sink-host", o.SinkHost, "Domoticz host name or IP address")
	fs.IntVar(&o.SinkPort, "sink-port", o.SinkPort, "Domoticz port")
	fs.StringVar(&o.MeterName, "meter-name", o.MeterName, "Meter name used in the MQTT topic")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Read timeout per meter exchange - e.g. 5s")
	fs.IntVar(&o.MaxRetries, "max-retries", o.MaxRetries, "Additional attempts per meter exchange after a corrupted or timed-out reply")
	fs.StringVar(&o.TraceFile, "trace-file", o.TraceFile, "Append a raw Tx/Rx hex dump of the serial exchange to this file")
	fs.StringVar(&o.MQTTBroker, "mqtt-broker", o.MQTTBroker, "Publish the decoded catalog to this MQTT broker - e.g. tcp://broker:1883. Empty disables publishing.")
	fs.BoolVar(&o.TestMeter, "test-meter", o.TestMeter, "Read every known register from the meter, print the table and exit")
	fs.BoolVar(&o.TestSink, "test-sink", o.TestSink, "List every Domoticz device and exit")
}

func (o *Options) Config() (*config.Config, error) {
	c := &config.Config{
		RunID: uuidutil.UUID(),
		Sink:  domoticz.NewClient(o.SinkHost, o.SinkPort, o.Timeout),
	}
	for _, value := range o.Values {
		req, err := processor.ParseRequest(value)
		if err != nil {
			klog.ErrorS(err, "Skipping invalid value parameter", "value", value)
			c.RequestErrors = append(c.RequestErrors, err)
			continue
		}
		c.Requests = append(c.Requests, req)
	}
	return c, nil
}
