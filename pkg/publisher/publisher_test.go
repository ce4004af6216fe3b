package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	multicalruntime "kamstrupgateway/pkg/protocol/multical/runtime"
)

func TestBuildPayload(t *testing.T) {
	catalog := multicalruntime.NewCatalog()
	catalog.Insert(&multicalruntime.Reading{
		CommandID: 0x003c, Name: "Heat Energy (E1)", Unit: "MWh", Magnitude: 58, Exponent: 0,
	})
	catalog.Insert(&multicalruntime.Reading{
		CommandID: 0x0056, Name: "Temp1", Unit: "C", Magnitude: 5534, Exponent: -2,
	})
	catalog.Insert(&multicalruntime.Reading{
		CommandID: 0x0123, Magnitude: 7, Exponent: 0,
	})

	raw, err := buildPayload(catalog, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	var data PublishData
	require.NoError(t, json.Unmarshal(raw, &data))
	require.Len(t, data.Payload.Data, 1)

	series := data.Payload.Data[0]
	assert.Equal(t, "2024-03-01T12:30:00.000Z", series.Timestamp)
	require.Len(t, series.Values, 3)

	assert.Equal(t, "Heat Energy (E1)", series.Values[0].DataPointId)
	assert.Equal(t, 58.0, series.Values[0].Value)
	assert.Equal(t, "MWh", series.Values[0].Unit)

	assert.Equal(t, "Temp1", series.Values[1].DataPointId)
	assert.InDelta(t, 55.34, series.Values[1].Value.(float64), 1e-9)

	// a reading outside the register map still travels, under a
	// synthetic name
	assert.Equal(t, "register-291", series.Values[2].DataPointId)
	assert.Empty(t, series.Values[2].Unit)
}

func TestBuildPayloadEmptyCatalog(t *testing.T) {
	raw, err := buildPayload(multicalruntime.NewCatalog(), time.Now())
	require.NoError(t, err)

	var data PublishData
	require.NoError(t, json.Unmarshal(raw, &data))
	require.Len(t, data.Payload.Data, 1)
	assert.Empty(t, data.Payload.Data[0].Values)
}
