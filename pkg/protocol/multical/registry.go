package multical

import (
	"sort"

	multicalruntime "kamstrupgateway/pkg/protocol/multical/runtime"
)

// CommandDescriptor names one readable register of the Multical 402.
type CommandDescriptor struct {
	ID   int
	Name string
}

// Register map of the Multical 402. Built once, never mutated; safe for
// concurrent reads.
var commands = map[int]string{
	0x003c: "Heat Energy (E1)",
	0x0050: "Power",
	0x0056: "Temp1",
	0x0057: "Temp2",
	0x0059: "Tempdiff",
	0x004a: "Flow",
	0x0044: "Volume",
	0x008d: "MinFlow_M",
	0x008b: "MaxFlow_M",
	0x008c: "MinFlowDate_M",
	0x008a: "MaxFlowDate_M",
	0x0091: "MinPower_M",
	0x008f: "MaxPower_M",
	0x0095: "AvgTemp1_M",
	0x0096: "AvgTemp2_M",
	0x0090: "MinPowerDate_M",
	0x008e: "MaxPowerDate_M",
	0x007e: "MinFlow_Y",
	0x007c: "MaxFlow_Y",
	0x007d: "MinFlowDate_Y",
	0x007b: "MaxFlowDate_Y",
	0x0082: "MinPower_Y",
	0x0080: "MaxPower_Y",
	0x0092: "AvgTemp1_Y",
	0x0093: "AvgTemp2_Y",
	0x0081: "MinPowerDate_Y",
	0x007f: "MaxPowerDate_Y",
	0x0061: "Temp1xm3",
	0x006e: "Temp2xm3",
	0x0071: "Infoevent",
	0x03ec: "HourCounter",
}

// Unit code labels as the meter transmits them.
var units = map[byte]string{
	0: "", 1: "Wh", 2: "kWh", 3: "MWh", 4: "GWh", 5: "j", 6: "kj", 7: "Mj",
	8: "Gj", 9: "Cal", 10: "kCal", 11: "Mcal", 12: "Gcal", 13: "varh",
	14: "kvarh", 15: "Mvarh", 16: "Gvarh", 17: "VAh", 18: "kVAh",
	19: "MVAh", 20: "GVAh", 21: "kW", 22: "kW", 23: "MW", 24: "GW",
	25: "kvar", 26: "kvar", 27: "Mvar", 28: "Gvar", 29: "VA", 30: "kVA",
	31: "MVA", 32: "GVA", 33: "V", 34: "A", 35: "kV", 36: "kA", 37: "C",
	38: "K", 39: "l", 40: "m3", 41: "l/h", 42: "m3/h", 43: "m3xC",
	44: "ton", 45: "ton/h", 46: "h", 47: "hh:mm:ss", 48: "yy:mm:dd",
	49: "yyyy:mm:dd", 50: "mm:dd", 51: "", 52: "bar", 53: "RTC",
	54: "ASCII", 55: "m3 x 10", 56: "ton x 10", 57: "GJ x 10",
	58: "minutes", 59: "Bitfield", 60: "s", 61: "ms", 62: "days",
	63: "RTC-Q", 64: "Datetime",
}

// Lookup resolves a command id to its descriptor.
func Lookup(id int) (CommandDescriptor, error) {
	name, ok := commands[id]
	if !ok {
		return CommandDescriptor{}, multicalruntime.ErrUnknownCommand
	}
	return CommandDescriptor{ID: id, Name: name}, nil
}

// UnitFor resolves a meter unit code to its display label. A failed
// lookup is advisory; callers still surface the raw value.
func UnitFor(code byte) (string, error) {
	label, ok := units[code]
	if !ok {
		return "", multicalruntime.ErrUnknownUnit
	}
	return label, nil
}

// CommandIDs returns every registered command id in ascending order,
// the superset queried by the meter test mode.
func CommandIDs() []int {
	ids := make([]int, 0, len(commands))
	for id := range commands {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
