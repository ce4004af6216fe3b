package app

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
	"kamstrupgateway/cmd/gateway/options"
	"kamstrupgateway/pkg/gateway"
	baseoptions "kamstrupgateway/pkg/generic/options"
	"kamstrupgateway/pkg/protocol/multical"
	"kamstrupgateway/pkg/publisher"
)

const (
	ComponentGateway = "kamstrup-gateway"
)

func NewGatewayCmd() *cobra.Command {
	cleanFlagSet := pflag.NewFlagSet(ComponentGateway, pflag.ContinueOnError)
	o := options.NewDefaultOptions()
	cmd := &cobra.Command{
		Use: ComponentGateway + " [flags] [idx:CommandNr:mode[:idx2] ...]",
		Long: `Read a Kamstrup Multical 402 heat meter over its optical IR head and
submit the processed values to Domoticz.

Each positional parameter names one output: read register CommandNr,
apply the mode, store the result at Domoticz device idx. Mode 0
overwrites, mode 1 subtracts the value of device idx2, mode 2 adds the
delta against idx2 to the value already stored at idx.

Register numbers can be listed with --test-meter, device idx values
with --test-sink.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// initial flag parse, since cobra's own parsing is disabled
			if err := cleanFlagSet.Parse(args); err != nil {
				klog.ErrorS(err, "Failed to parse flag")
				_ = cmd.Usage()
				os.Exit(1)
			}

			// short-circuit on help
			baseoptions.PrintHelpAndExitIfRequested(cmd, cleanFlagSet)

			// short-circuit on defaultconfig
			baseoptions.PrintDefaultConfigAndExitIfRequested(options.NewDefaultOptions(), cleanFlagSet)

			if err := baseoptions.ParseAndApplyConfigFile(o, args); err != nil {
				return err
			}

			// non-flag arguments are the value parameters, they win
			// over a values list from the config file
			if values := cleanFlagSet.Args(); len(values) > 0 {
				o.Values = values
			}
			if errs := options.Validate(o); len(errs) != 0 {
				return utilerrors.NewAggregate(errs)
			}
			return run(o)
		},
	}

	o.AddFlags(cleanFlagSet)
	o.AddBaseFlags(cmd, cleanFlagSet)

	return cmd
}

func run(o *options.Options) error {
	c, err := o.Config()
	if err != nil {
		return err
	}

	if o.TestSink {
		return gateway.TestSink(c.Sink)
	}

	var tracer *multical.Tracer
	if len(o.TraceFile) > 0 {
		tracer, err = multical.NewTracer(o.TraceFile, c.RunID)
		if err != nil {
			klog.ErrorS(err, "Failed to open trace file", "file", o.TraceFile)
			return err
		}
		defer tracer.Close()
	}

	client, err := multical.Open(o.Device, o.Timeout, tracer)
	if err != nil {
		return err
	}
	defer client.Close()
	session := multical.NewSession(client, o.MaxRetries)

	if o.TestMeter {
		return gateway.TestMeter(session)
	}

	g := &gateway.Gateway{
		Session:  session,
		Sink:     c.Sink,
		Requests: c.Requests,
	}
	if len(o.MQTTBroker) > 0 {
		pub, err := publisher.Connect(o.MQTTBroker, o.MeterName, c.RunID)
		if err != nil {
			// the publish channel is diagnostic, the run proceeds
			klog.ErrorS(err, "Skipping catalog publish", "broker", o.MQTTBroker)
		} else {
			defer pub.Close()
			g.Publisher = pub
		}
	}

	errs := append([]error{}, c.RequestErrors...)
	if err := g.Run(); err != nil {
		errs = append(errs, err)
	}
	return utilerrors.NewAggregate(errs)
}
