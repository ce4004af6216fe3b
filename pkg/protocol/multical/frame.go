package multical

import (
	"github.com/sigurn/crc16"
	"k8s.io/klog/v2"
	multicalruntime "kamstrupgateway/pkg/protocol/multical/runtime"
	"kamstrupgateway/pkg/utils/binutil"
)

// The meter checksum is CRC-16/CCITT, polynomial 0x1021, init 0x0000,
// no reflection. CRC16_XMODEM carries exactly these parameters; the
// transmitted value is computed over the unescaped payload and appended
// big endian, matching the meter's own register loop bit for bit.
var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// EncodeRequest builds one framed GetRegister query for a batch of
// command ids: 0x80 <escaped: 0x3f 0x10 count (idHi idLo)* crc16> 0x0d.
func EncodeRequest(ids []int) ([]byte, error) {
	if len(ids) == 0 || len(ids) > multicalruntime.MaxBatchSize {
		return nil, multicalruntime.ErrInvalidCommandID
	}
	payload := make([]byte, 0, 3+2*len(ids)+2)
	payload = append(payload, multicalruntime.DestinationAddress, multicalruntime.CIDGetRegister, byte(len(ids)))
	for _, id := range ids {
		if id < 0 || id > 0xffff {
			return nil, multicalruntime.ErrInvalidCommandID
		}
		payload = append(payload, byte(id>>8), byte(id))
	}

	sum := crc16.Checksum(payload, crcTable)
	payload = append(payload, byte(sum>>8), byte(sum))

	frame := make([]byte, 0, 2*len(payload)+2)
	frame = append(frame, multicalruntime.RequestMarker)
	frame = append(frame, escape(payload)...)
	frame = append(frame, multicalruntime.EndMarker)
	return frame, nil
}

// DecodeResponse validates and parses one complete response frame, start
// marker through end marker, into its register fields.
func DecodeResponse(raw []byte) ([]multicalruntime.Field, error) {
	if len(raw) < 2 || raw[0] != multicalruntime.ResponseMarker || raw[len(raw)-1] != multicalruntime.EndMarker {
		return nil, multicalruntime.ErrMalformedFrame
	}

	message, err := unescape(raw[1 : len(raw)-1])
	if err != nil {
		return nil, err
	}
	// CID header + CRC at minimum
	if len(message) < 4 {
		return nil, multicalruntime.ErrMalformedFrame
	}

	payload, received := message[:len(message)-2], binutil.ParseUint16(message[len(message)-2:])
	if crc16.Checksum(payload, crcTable) != received {
		return nil, multicalruntime.ErrCRCMismatch
	}
	if payload[0] != multicalruntime.DestinationAddress || payload[1] != multicalruntime.CIDGetRegister {
		return nil, multicalruntime.ErrMalformedFrame
	}

	fields := make([]multicalruntime.Field, 0, 1)
	for i := 2; i < len(payload); {
		// id(2) unit(1) length(1) sigexp(1) magnitude(length)
		if i+5 > len(payload) {
			return nil, multicalruntime.ErrMalformedFrame
		}
		id := int(binutil.ParseUint16(payload[i:]))
		unitCode := payload[i+2]
		length := int(payload[i+3])
		sigexp := payload[i+4]
		if length > 8 || i+5+length > len(payload) {
			return nil, multicalruntime.ErrMalformedFrame
		}

		magnitude := int64(binutil.ParseUintVar(payload[i+5 : i+5+length]))
		if sigexp&0x80 != 0 {
			magnitude = -magnitude
		}
		exponent := int(sigexp & 0x3f)
		if sigexp&0x40 != 0 {
			exponent = -exponent
		}

		fields = append(fields, multicalruntime.Field{
			CommandID: id,
			UnitCode:  unitCode,
			Exponent:  exponent,
			Magnitude: magnitude,
		})
		i += 5 + length
	}
	if len(fields) == 0 {
		return nil, multicalruntime.ErrMalformedFrame
	}
	return fields, nil
}

func escape(payload []byte) []byte {
	out := make([]byte, 0, len(payload))
	for _, b := range payload {
		if _, reserved := multicalruntime.EscapedBytes[b]; reserved {
			out = append(out, multicalruntime.EscapeMarker, b^multicalruntime.EscapeMask)
		} else {
			out = append(out, b)
		}
	}
	return out
}

func unescape(body []byte) ([]byte, error) {
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		if body[i] != multicalruntime.EscapeMarker {
			out = append(out, body[i])
			continue
		}
		if i+1 >= len(body) {
			return nil, multicalruntime.ErrMalformedFrame
		}
		v := body[i+1] ^ multicalruntime.EscapeMask
		if _, reserved := multicalruntime.EscapedBytes[v]; !reserved {
			// the meter only escapes reserved bytes; tolerated like the
			// meter's own reference reader does
			klog.V(3).InfoS("Unexpected escaped byte", "value", v)
		}
		out = append(out, v)
		i++
	}
	return out, nil
}
