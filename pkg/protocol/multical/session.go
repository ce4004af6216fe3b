package multical

import (
	"errors"

	"k8s.io/klog/v2"
	multicalruntime "kamstrupgateway/pkg/protocol/multical/runtime"
)

// Session drives batched request/response exchanges against one meter.
// It assumes exclusive ownership of the client's port for its whole
// lifetime; a failed batch yields no partial result.
type Session struct {
	Client *SerialClient
	// MaxRetries is the number of additional attempts after the first
	// for a corrupted, malformed or timed-out reply. No backoff; the
	// meter holds no congestion state.
	MaxRetries int
}

func NewSession(client *SerialClient, maxRetries int) *Session {
	return &Session{Client: client, MaxRetries: maxRetries}
}

// Query polls the given command ids in frame-sized batches and collects
// the decoded readings into a catalog, preserving response order.
func (s *Session) Query(ids []int) (*multicalruntime.Catalog, error) {
	catalog := multicalruntime.NewCatalog()
	for start := 0; start < len(ids); start += multicalruntime.MaxBatchSize {
		end := start + multicalruntime.MaxBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		fields, err := s.ask(ids[start:end])
		if err != nil {
			return nil, err
		}
		for _, field := range fields {
			catalog.Insert(s.toReading(field))
		}
	}
	return catalog, nil
}

// QueryAll reads every registered command id, the diagnostic superset
// behind --test-meter.
func (s *Session) QueryAll() (*multicalruntime.Catalog, error) {
	return s.Query(CommandIDs())
}

// ask runs one batch to completion, retrying the entire request on a
// corrupted or malformed reply or a read timeout, up to MaxRetries
// additional attempts.
func (s *Session) ask(batch []int) ([]multicalruntime.Field, error) {
	request, err := EncodeRequest(batch)
	if err != nil {
		return nil, err
	}

	requested := make(map[int]struct{}, len(batch))
	for _, id := range batch {
		requested[id] = struct{}{}
	}

	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		reply, err := s.Client.Ask(request)
		if err == nil {
			var fields []multicalruntime.Field
			fields, err = DecodeResponse(reply)
			if err == nil {
				err = verifyEcho(fields, requested)
			}
			if err == nil {
				return fields, nil
			}
		}
		if !retryable(err) {
			return nil, err
		}
		klog.V(2).InfoS("Meter exchange failed", "attempt", attempt, "maxRetries", s.MaxRetries, "error", err)
	}
	return nil, multicalruntime.ErrMeterUnreachable
}

// verifyEcho rejects replies carrying register ids the request never
// asked for; the meter echoes the queried ids in its field headers.
func verifyEcho(fields []multicalruntime.Field, requested map[int]struct{}) error {
	for _, field := range fields {
		if _, ok := requested[field.CommandID]; !ok {
			klog.V(2).InfoS("Reply echoed unrequested register", "commandId", field.CommandID)
			return multicalruntime.ErrMalformedFrame
		}
	}
	return nil
}

func retryable(err error) bool {
	return errors.Is(err, multicalruntime.ErrCRCMismatch) ||
		errors.Is(err, multicalruntime.ErrMalformedFrame) ||
		errors.Is(err, multicalruntime.ErrReadTimeout)
}

func (s *Session) toReading(field multicalruntime.Field) *multicalruntime.Reading {
	reading := &multicalruntime.Reading{
		CommandID: field.CommandID,
		UnitCode:  field.UnitCode,
		Magnitude: field.Magnitude,
		Exponent:  field.Exponent,
	}
	if descriptor, err := Lookup(field.CommandID); err == nil {
		reading.Name = descriptor.Name
	}
	label, err := UnitFor(field.UnitCode)
	if err != nil {
		// advisory only, the value is still surfaced
		klog.V(1).InfoS("Unknown unit code", "commandId", field.CommandID, "unitCode", field.UnitCode)
	}
	reading.Unit = label
	return reading
}
