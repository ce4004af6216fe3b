package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"k8s.io/klog/v2"
	multicalruntime "kamstrupgateway/pkg/protocol/multical/runtime"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// PointData is one reading rendered for downstream consumers.
type PointData struct {
	DataPointId string      `json:"dataPointId"`
	Value       interface{} `json:"value"`
	Unit        string      `json:"unit,omitempty"`
}

type TimeSeriesData struct {
	Timestamp string      `json:"timestamp"`
	Values    []PointData `json:"values"`
}

type Payload struct {
	Data []TimeSeriesData `json:"data"`
}

type PublishData struct {
	Payload Payload `json:"payload"`
}

// Publisher pushes the decoded catalog of one run to an MQTT broker as
// a timestamped point-data payload, for consumers beyond the sink.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// Connect dials the broker; clientID should be unique per run so stale
// sessions from aborted runs never collide.
func Connect(broker, meterName, clientID string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("kamstrup-gateway-" + clientID).
		SetConnectTimeout(connectTimeout)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		return nil, fmt.Errorf("failed to connect mqtt broker %s: %v", broker, token.Error())
	}
	return &Publisher{
		client: client,
		topic:  fmt.Sprintf("data/kamstrup/v1/%s", meterName),
	}, nil
}

// buildPayload renders the catalog as one timestamped point-data
// payload. Unregistered readings fall back to a register-<id> name.
func buildPayload(catalog *multicalruntime.Catalog, timestamp time.Time) ([]byte, error) {
	points := make([]PointData, 0, catalog.Len())
	for _, id := range catalog.CommandIDs() {
		reading, _ := catalog.Get(id)
		name := reading.Name
		if name == "" {
			name = fmt.Sprintf("register-%d", id)
		}
		points = append(points, PointData{
			DataPointId: name,
			Value:       reading.Value(),
			Unit:        reading.Unit,
		})
	}

	data := PublishData{Payload: Payload{Data: []TimeSeriesData{{
		Timestamp: timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Values:    points,
	}}}}
	return json.Marshal(data)
}

// Publish sends every reading of the catalog in one payload.
func (p *Publisher) Publish(catalog *multicalruntime.Catalog) error {
	marshal, err := buildPayload(catalog, time.Now())
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 1, false, marshal)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", p.topic)
	}
	if token.Error() != nil {
		klog.V(1).InfoS("Failed to publish catalog", "topic", p.topic, "error", token.Error())
		return token.Error()
	}
	klog.V(2).InfoS("Published catalog", "topic", p.topic, "points", catalog.Len())
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(2000)
}
