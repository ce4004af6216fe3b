package multical

import (
	"fmt"
	"os"

	"k8s.io/klog/v2"
)

// Tracer appends a raw Tx/Rx hex dump of one run to a trace file, for
// diagnosing the optical link. A nil Tracer is a no-op.
type Tracer struct {
	f    *os.File
	last string
}

func NewTracer(path, runID string) (*Tracer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(f, "\n\n=== session %s ===\n", runID); err != nil {
		f.Close()
		return nil, err
	}
	return &Tracer{f: f}, nil
}

func (t *Tracer) Tx(data []byte) { t.dump("Tx", data) }

func (t *Tracer) Rx(data []byte) { t.dump("Rx", data) }

func (t *Tracer) Msg(message string) {
	if t == nil {
		return
	}
	if t.last != "" {
		fmt.Fprintln(t.f)
	}
	t.last = "Msg"
	if _, err := fmt.Fprintf(t.f, "Msg\t%s\n", message); err != nil {
		klog.V(2).InfoS("Failed to write trace file", "error", err)
	}
	t.last = ""
}

func (t *Tracer) dump(direction string, data []byte) {
	if t == nil {
		return
	}
	if direction != t.last {
		if t.last != "" {
			fmt.Fprintln(t.f)
		}
		fmt.Fprintf(t.f, "%s\t", direction)
		t.last = direction
	}
	for _, b := range data {
		if _, err := fmt.Fprintf(t.f, " %02x ", b); err != nil {
			klog.V(2).InfoS("Failed to write trace file", "error", err)
			return
		}
	}
}

func (t *Tracer) Close() error {
	if t == nil {
		return nil
	}
	return t.f.Close()
}
