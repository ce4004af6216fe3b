package gateway

import (
	"fmt"
	"strings"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
	"kamstrupgateway/pkg/processor"
	"kamstrupgateway/pkg/protocol/multical"
	multicalruntime "kamstrupgateway/pkg/protocol/multical/runtime"
	"kamstrupgateway/pkg/publisher"
	"kamstrupgateway/pkg/sink/domoticz"
)

// Gateway wires one meter session, the reporting sink and the parsed
// processing requests into a single run.
type Gateway struct {
	Session   *multical.Session
	Sink      *domoticz.Client
	Publisher *publisher.Publisher
	Requests  []*processor.Request
}

// Run performs one poll-process-report cycle. A failed meter query is
// fatal and writes nothing; afterwards each requested output fails or
// succeeds on its own, and the aggregated error reflects whether any
// output failed.
func (g *Gateway) Run() error {
	catalog := multicalruntime.NewCatalog()
	if ids := g.commandIDs(); len(ids) > 0 {
		queried, err := g.Session.Query(ids)
		if err != nil {
			klog.ErrorS(err, "Meter query failed, no outputs written")
			return err
		}
		catalog = queried
	} else {
		klog.ErrorS(nil, "No resolvable command ids, nothing to read")
	}

	var failures []error

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	printHeader(timestamp)
	defer printFooter(timestamp)

	proc := processor.NewProcessor(g.Sink)
	succeeded := 0
	for _, req := range g.Requests {
		if err := g.submit(proc, catalog, req); err != nil {
			klog.ErrorS(err, "Output failed", "targetId", req.TargetID, "commandId", req.CommandID, "mode", req.Mode.String())
			failures = append(failures, err)
			continue
		}
		succeeded++
	}

	if g.Publisher != nil {
		// diagnostic side channel, never fails the run
		if err := g.Publisher.Publish(catalog); err != nil {
			klog.ErrorS(err, "Catalog publish failed")
		}
	}

	if len(failures) > 0 {
		if succeeded == 0 {
			klog.ErrorS(nil, "All outputs failed", "failed", len(failures))
		} else {
			klog.InfoS("Partial success", "succeeded", succeeded, "failed", len(failures))
		}
		return utilerrors.NewAggregate(failures)
	}
	klog.V(1).InfoS("All outputs written", "succeeded", succeeded)
	return nil
}

// submit processes one request against the catalog and writes the
// result to the sink.
func (g *Gateway) submit(proc *processor.Processor, catalog *multicalruntime.Catalog, req *processor.Request) error {
	descriptor, err := multical.Lookup(req.CommandID)
	if err != nil {
		return fmt.Errorf("command %d: %w", req.CommandID, err)
	}
	reading, ok := catalog.Get(req.CommandID)
	if !ok {
		return fmt.Errorf("command %d (%s): no reading in meter reply", req.CommandID, descriptor.Name)
	}
	fmt.Printf("%-25s %v %s\n", reading.Name, reading.Value(), reading.Unit)

	result, err := proc.Process(req, reading.Value())
	if err != nil {
		return fmt.Errorf("device %d: %w", req.TargetID, err)
	}

	name := fmt.Sprintf("idx:%d", result.TargetID)
	if device, err := g.Sink.GetDevice(result.TargetID); err == nil {
		name = device.Name
	}
	fmt.Printf("  + mode %s: submit %v to %q (idx: %d)\n", req.Mode, result.Value, name, result.TargetID)

	if err := g.Sink.UpdateDevice(result.TargetID, result.Value); err != nil {
		return fmt.Errorf("device %d: %w", result.TargetID, err)
	}
	return nil
}

// commandIDs collects the unique registered command ids across all
// requests. Unregistered ids are excluded from the query; the requests
// naming them fail individually in Run.
func (g *Gateway) commandIDs() []int {
	seen := map[int]struct{}{}
	ids := make([]int, 0, len(g.Requests))
	for _, req := range g.Requests {
		if _, ok := seen[req.CommandID]; ok {
			continue
		}
		seen[req.CommandID] = struct{}{}
		if _, err := multical.Lookup(req.CommandID); err != nil {
			klog.V(1).InfoS("Skipping unregistered command id", "commandId", req.CommandID)
			continue
		}
		ids = append(ids, req.CommandID)
	}
	return ids
}

// TestMeter reads every registered command id and prints the result
// table, for probing the optical link.
func TestMeter(session *multical.Session) error {
	catalog, err := session.QueryAll()
	if err != nil {
		return err
	}
	fmt.Println("\n=== Meter interface test ===")
	for _, id := range multical.CommandIDs() {
		descriptor, _ := multical.Lookup(id)
		if reading, ok := catalog.Get(id); ok {
			fmt.Printf("CommandNr %4d: %-25s %v %s\n", id, descriptor.Name, reading.Value(), reading.Unit)
		} else {
			fmt.Printf("CommandNr %4d: %-25s (no response)\n", id, descriptor.Name)
		}
	}
	fmt.Println("=== Test complete ===")
	return nil
}

// TestSink lists every sink device, for finding device idx values.
func TestSink(sink *domoticz.Client) error {
	devices, err := sink.ListDevices()
	if err != nil {
		return err
	}
	fmt.Println("\n=== Reporting sink test ===")
	for _, device := range devices {
		fmt.Printf("idx: %5d, Name: %-60s Value: %s\n", device.Idx, device.Name, device.Data)
	}
	fmt.Printf("=== Found %d devices ===\n", len(devices))
	return nil
}

func printHeader(timestamp string) {
	fmt.Println(strings.Repeat("=", 87))
	fmt.Printf("Kamstrup Multical 402 optical data received: %s\n", timestamp)
	fmt.Println(strings.Repeat("-", 87))
}

func printFooter(timestamp string) {
	fmt.Println(strings.Repeat("-", 87))
	fmt.Printf("End data received: %s\n", timestamp)
	fmt.Println(strings.Repeat("=", 87))
}
