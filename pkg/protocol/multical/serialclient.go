package multical

import (
	"time"

	"go.bug.st/serial"
	"k8s.io/klog/v2"
	multicalruntime "kamstrupgateway/pkg/protocol/multical/runtime"
)

// Port is the slice of go.bug.st/serial.Port the session needs; tests
// substitute an in-memory fake.
type Port interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// SerialClient owns the optical head for the lifetime of one run. No
// other reader or writer may interleave on the port.
type SerialClient struct {
	Port    Port
	Timeout time.Duration
	Tracer  *Tracer
}

// Open configures the IR head with the fixed Multical line settings.
func Open(device string, timeout time.Duration, tracer *Tracer) (*SerialClient, error) {
	mode := &serial.Mode{
		BaudRate: multicalruntime.BaudRate,
		DataBits: multicalruntime.DataBits,
		Parity:   multicalruntime.Parity,
		StopBits: multicalruntime.StopBits,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		klog.V(2).InfoS("Failed to open serial port", "device", device, "error", err)
		return nil, err
	}
	klog.V(2).InfoS("Serial port opened", "device", device, "baudRate", multicalruntime.BaudRate)
	return &SerialClient{Port: port, Timeout: timeout, Tracer: tracer}, nil
}

// Ask writes one request frame and assembles one delimited reply, start
// marker through end marker. A response marker mid-stream restarts the
// frame; bytes ahead of it are discarded.
func (sc *SerialClient) Ask(request []byte) ([]byte, error) {
	if _, err := sc.Port.Write(request); err != nil {
		klog.V(2).InfoS("Failed to write to serial port", "error", err)
		return nil, multicalruntime.ErrPortClosed
	}
	sc.Tracer.Tx(request)

	if err := sc.Port.SetReadTimeout(sc.Timeout); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(sc.Timeout)

	buf := make([]byte, 64)
	frame := make([]byte, 0, 128)
	started := false
	for {
		n, err := sc.Port.Read(buf)
		if err != nil {
			klog.V(2).InfoS("Failed to read from serial port", "error", err)
			return nil, err
		}
		if n == 0 {
			sc.Tracer.Msg("Rx timeout")
			return nil, multicalruntime.ErrReadTimeout
		}
		sc.Tracer.Rx(buf[:n])

		for _, b := range buf[:n] {
			if b == multicalruntime.ResponseMarker {
				frame = frame[:0]
				started = true
			}
			if !started {
				continue
			}
			frame = append(frame, b)
			if b == multicalruntime.EndMarker {
				return frame, nil
			}
		}

		if time.Now().After(deadline) {
			sc.Tracer.Msg("Rx timeout")
			return nil, multicalruntime.ErrReadTimeout
		}
	}
}

func (sc *SerialClient) Close() error {
	return sc.Port.Close()
}
