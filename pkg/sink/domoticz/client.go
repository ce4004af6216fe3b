package domoticz

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Client talks to the Domoticz JSON API. The gateway treats Domoticz
// purely as a key-value store of numeric device values keyed by idx.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(host string, port int, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    fmt.Sprintf("http://%s:%d", host, port),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) request(query url.Values) (*apiResult, error) {
	u := fmt.Sprintf("%s/json.htm?%s", c.BaseURL, query.Encode())
	klog.V(4).InfoS("Domoticz request", "url", u)

	resp, err := c.HTTPClient.Get(u)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to domoticz at %s", c.BaseURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("domoticz returned http %d", resp.StatusCode)
	}

	result := &apiResult{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, errors.Wrap(err, "invalid json from domoticz")
	}
	return result, nil
}

// GetDevice fetches one device by idx. ErrDeviceNotFound when the idx
// does not resolve.
func (c *Client) GetDevice(idx int) (*Device, error) {
	query := url.Values{}
	query.Set("type", "devices")
	query.Set("rid", strconv.Itoa(idx))
	result, err := c.request(query)
	if err != nil {
		return nil, err
	}
	if len(result.Result) == 0 {
		return nil, ErrDeviceNotFound
	}
	return toDevice(result.Result[0])
}

// GetDeviceValue fetches the current numeric value stored at idx,
// parsing the leading number out of the Data field.
func (c *Client) GetDeviceValue(idx int) (float64, error) {
	device, err := c.GetDevice(idx)
	if err != nil {
		return 0, err
	}
	parts := strings.Fields(device.Data)
	if len(parts) == 0 {
		return 0, ErrValueNotNumeric
	}
	value, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		klog.V(1).InfoS("Device data is not numeric", "idx", idx, "data", device.Data)
		return 0, ErrValueNotNumeric
	}
	return value, nil
}

// UpdateDevice stores a new value at idx.
func (c *Client) UpdateDevice(idx int, value float64) error {
	query := url.Values{}
	query.Set("type", "command")
	query.Set("param", "udevice")
	query.Set("idx", strconv.Itoa(idx))
	query.Set("svalue", strconv.FormatFloat(value, 'f', -1, 64))
	result, err := c.request(query)
	if err != nil {
		return err
	}
	if !strings.EqualFold(result.Status, "ok") {
		klog.V(1).InfoS("Domoticz rejected update", "idx", idx, "status", result.Status)
		return ErrUpdateRejected
	}
	klog.V(2).InfoS("Updated device", "idx", idx, "value", value)
	return nil
}

// ListDevices returns every device, for --test-sink diagnostics.
func (c *Client) ListDevices() ([]Device, error) {
	query := url.Values{}
	query.Set("type", "devices")
	result, err := c.request(query)
	if err != nil {
		return nil, err
	}
	devices := make([]Device, 0, len(result.Result))
	for _, raw := range result.Result {
		device, err := toDevice(raw)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *device)
	}
	return devices, nil
}

// Ping verifies the backend answers at all.
func (c *Client) Ping() error {
	query := url.Values{}
	query.Set("type", "devices")
	_, err := c.request(query)
	return err
}

func toDevice(raw apiDevice) (*Device, error) {
	idx, err := strconv.Atoi(raw.Idx)
	if err != nil {
		return nil, errors.Wrapf(err, "non-integer device idx %q", raw.Idx)
	}
	return &Device{Idx: idx, Name: raw.Name, Data: raw.Data}, nil
}
