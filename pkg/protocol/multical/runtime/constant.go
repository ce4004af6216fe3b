package runtime

import (
	"errors"

	"go.bug.st/serial"
)

// Wire constants of the Kamstrup Multical optical protocol.
// The meter talks a framed binary dialect of the IEC1107 family:
// request 0x80 <escaped payload> <crc16> 0x0d, reply 0x40 ... 0x0d.
const (
	RequestMarker  byte = 0x80
	ResponseMarker byte = 0x40
	EndMarker      byte = 0x0d
	EscapeMarker   byte = 0x1b
	EscapeMask     byte = 0xff

	DestinationAddress byte = 0x3f
	CIDGetRegister     byte = 0x10

	// One byte carries the register count of a batched request, but the
	// reply for a batch must also fit one frame.
	MaxBatchSize = 8
)

// EscapedBytes are reserved as frame delimiters and must never appear
// verbatim inside an escaped payload.
var EscapedBytes = map[byte]struct{}{
	0x06:           {},
	EndMarker:      {},
	EscapeMarker:   {},
	ResponseMarker: {},
	RequestMarker:  {},
}

var (
	ErrCRCMismatch      = errors.New("multical frame crc16 mismatch")
	ErrMalformedFrame   = errors.New("multical frame malformed")
	ErrInvalidCommandID = errors.New("multical command id out of range")
	ErrMeterUnreachable = errors.New("multical meter unreachable")
	ErrUnknownCommand   = errors.New("multical command id not registered")
	ErrUnknownUnit      = errors.New("multical unit code not registered")
	ErrReadTimeout      = errors.New("multical serial read timeout")
	ErrPortClosed       = errors.New("multical serial port closed")
)

// Serial line settings of the Multical 402 IR head.
const (
	BaudRate = 1200
	DataBits = 8
)

var (
	Parity   = serial.NoParity
	StopBits = serial.TwoStopBits
)
