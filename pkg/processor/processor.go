package processor

import (
	"math"

	"k8s.io/klog/v2"
)

// ValueReader is the capability the processor needs from the reporting
// sink: resolve a device id to its currently stored numeric value.
type ValueReader interface {
	GetDeviceValue(idx int) (float64, error)
}

// Result is the single externally visible artifact of one processing
// request, handed to the sink for persistence.
type Result struct {
	TargetID int
	Value    float64
}

// Processor combines a fresh meter value with externally stored values
// according to the request mode. The arithmetic itself is pure; all
// state lives in the reporting backend.
type Processor struct {
	Values ValueReader
}

func NewProcessor(values ValueReader) *Processor {
	return &Processor{Values: values}
}

// Process validates the request and applies its mode to the effective
// meter value. Values are rounded to two decimals before submission,
// matching what the sink records.
func (p *Processor) Process(req *Request, value float64) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	value = round2(value)
	switch req.Mode {
	case Overwrite:
		klog.V(3).InfoS("Mode overwrite", "targetId", req.TargetID, "value", value)
		return &Result{TargetID: req.TargetID, Value: value}, nil

	case Subtract:
		compare, err := p.fetch(*req.CompareID)
		if err != nil {
			return nil, err
		}
		delta := round2(value - compare)
		klog.V(3).InfoS("Mode subtract", "targetId", req.TargetID, "value", value, "compare", compare, "result", delta)
		return &Result{TargetID: req.TargetID, Value: delta}, nil

	case Add:
		stored, err := p.fetch(req.TargetID)
		if err != nil {
			return nil, err
		}
		compare, err := p.fetch(*req.CompareID)
		if err != nil {
			return nil, err
		}
		sum := round2(stored + (value - compare))
		klog.V(3).InfoS("Mode add", "targetId", req.TargetID, "stored", stored, "value", value, "compare", compare, "result", sum)
		return &Result{TargetID: req.TargetID, Value: sum}, nil
	}
	return nil, ErrInvalidRequest
}

func (p *Processor) fetch(idx int) (float64, error) {
	value, err := p.Values.GetDeviceValue(idx)
	if err != nil {
		klog.V(1).InfoS("Failed to fetch stored value", "idx", idx, "error", err)
		return 0, ErrValueUnavailable
	}
	return value, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
