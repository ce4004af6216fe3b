package gateway

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sigurn/crc16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kamstrupgateway/pkg/processor"
	"kamstrupgateway/pkg/protocol/multical"
	multicalruntime "kamstrupgateway/pkg/protocol/multical/runtime"
	"kamstrupgateway/pkg/sink/domoticz"
)

var testCRCTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// meterReply frames a register payload the way the meter answers,
// checksummed and escaped.
func meterReply(fields ...[]byte) []byte {
	payload := []byte{multicalruntime.DestinationAddress, multicalruntime.CIDGetRegister}
	for _, f := range fields {
		payload = append(payload, f...)
	}
	sum := crc16.Checksum(payload, testCRCTable)
	payload = append(payload, byte(sum>>8), byte(sum))

	frame := []byte{multicalruntime.ResponseMarker}
	for _, b := range payload {
		if _, reserved := multicalruntime.EscapedBytes[b]; reserved {
			frame = append(frame, multicalruntime.EscapeMarker, b^multicalruntime.EscapeMask)
		} else {
			frame = append(frame, b)
		}
	}
	return append(frame, multicalruntime.EndMarker)
}

func registerField(id int, unitCode byte, sigexp byte, magnitude uint16) []byte {
	return []byte{byte(id >> 8), byte(id), unitCode, 2, sigexp, byte(magnitude >> 8), byte(magnitude)}
}

// meterPort answers every request with the same scripted reply. A nil
// reply reads as a timeout.
type meterPort struct {
	reply   []byte
	pending []byte
	writes  int
}

func (p *meterPort) Write(b []byte) (int, error) {
	p.writes++
	p.pending = p.reply
	return len(b), nil
}

func (p *meterPort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		return 0, nil
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *meterPort) SetReadTimeout(time.Duration) error { return nil }
func (p *meterPort) Close() error                       { return nil }

func newTestSession(reply []byte) *multical.Session {
	client := &multical.SerialClient{Port: &meterPort{reply: reply}, Timeout: time.Second}
	return multical.NewSession(client, 0)
}

// sinkFixture serves a Domoticz lookalike and records every udevice
// update as "idx=svalue".
func sinkFixture(t *testing.T, values map[int]string) (*domoticz.Client, *[]string) {
	t.Helper()
	var updates []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("param") == "udevice" {
			updates = append(updates, fmt.Sprintf("%s=%s", query.Get("idx"), query.Get("svalue")))
			fmt.Fprint(w, `{"status":"OK"}`)
			return
		}
		idx := query.Get("rid")
		n, _ := strconv.Atoi(idx)
		if data, ok := values[n]; ok {
			fmt.Fprintf(w, `{"status":"OK","result":[{"idx":%q,"Name":"Device %s","Data":%q}]}`, idx, idx, data)
			return
		}
		fmt.Fprint(w, `{"status":"OK"}`)
	}))
	t.Cleanup(server.Close)
	return &domoticz.Client{BaseURL: server.URL, HTTPClient: &http.Client{Timeout: time.Second}}, &updates
}

func intPtr(n int) *int { return &n }

func TestGatewayRun(t *testing.T) {
	sink, updates := sinkFixture(t, map[int]string{89: "5.0 kWh"})
	g := &Gateway{
		Session: newTestSession(meterReply(registerField(0x003c, 2, 0x42, 1234))),
		Sink:    sink,
		Requests: []*processor.Request{
			{TargetID: 89, CommandID: 0x003c, Mode: processor.Overwrite},
		},
	}

	require.NoError(t, g.Run())
	assert.Equal(t, []string{"89=12.34"}, *updates)
}

func TestGatewayRunSubtract(t *testing.T) {
	sink, updates := sinkFixture(t, map[int]string{89: "100", 90: "2.0"})
	g := &Gateway{
		Session: newTestSession(meterReply(registerField(0x0044, 40, 0x41, 55))),
		Sink:    sink,
		Requests: []*processor.Request{
			{TargetID: 89, CommandID: 0x0044, Mode: processor.Subtract, CompareID: intPtr(90)},
		},
	}

	require.NoError(t, g.Run())
	assert.Equal(t, []string{"89=3.5"}, *updates)
}

func TestGatewayRunUnknownCommand(t *testing.T) {
	sink, updates := sinkFixture(t, map[int]string{89: "5.0"})
	g := &Gateway{
		Session: newTestSession(nil),
		Sink:    sink,
		Requests: []*processor.Request{
			{TargetID: 89, CommandID: 0x9999, Mode: processor.Overwrite},
		},
	}

	err := g.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, multicalruntime.ErrUnknownCommand)
	assert.Empty(t, *updates)
}

func TestGatewayRunMeterUnreachable(t *testing.T) {
	sink, updates := sinkFixture(t, map[int]string{89: "5.0"})
	g := &Gateway{
		Session: newTestSession(nil),
		Sink:    sink,
		Requests: []*processor.Request{
			{TargetID: 89, CommandID: 0x003c, Mode: processor.Overwrite},
		},
	}

	err := g.Run()
	assert.ErrorIs(t, err, multicalruntime.ErrMeterUnreachable)
	assert.Empty(t, *updates)
}

func TestGatewayRunPartialFailure(t *testing.T) {
	sink, updates := sinkFixture(t, map[int]string{89: "5.0"})
	g := &Gateway{
		Session: newTestSession(meterReply(registerField(0x003c, 2, 0, 58))),
		Sink:    sink,
		Requests: []*processor.Request{
			{TargetID: 89, CommandID: 0x003c, Mode: processor.Overwrite},
			{TargetID: 91, CommandID: 0x9999, Mode: processor.Overwrite},
		},
	}

	err := g.Run()
	require.Error(t, err)
	assert.Equal(t, []string{"89=58"}, *updates)
}
