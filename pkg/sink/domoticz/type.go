package domoticz

import "errors"

var (
	ErrDeviceNotFound  = errors.New("domoticz device not found")
	ErrValueNotNumeric = errors.New("domoticz device data is not numeric")
	ErrUpdateRejected  = errors.New("domoticz update rejected")
)

// Device is one Domoticz device as the JSON API reports it. Data often
// carries a trailing unit ("123.45 kWh"); GetDeviceValue strips it.
type Device struct {
	Idx  int
	Name string
	Data string
}

// apiResult is the wire shape of /json.htm responses. Domoticz encodes
// idx as a string.
type apiResult struct {
	Status string      `json:"status"`
	Result []apiDevice `json:"result"`
}

type apiDevice struct {
	Idx  string `json:"idx"`
	Name string `json:"Name"`
	Data string `json:"Data"`
}
