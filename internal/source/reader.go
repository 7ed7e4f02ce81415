package source

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/jpalmerr/sensorboard/internal/merge"
)

// upstream API paths
const (
	historyPathPrefix = "/api/sensors/"
	livePath          = "/api/sensors/sensor-data"
)

// DefaultHistoryLimit caps one sensor's historical response. The upstream
// keeps every record until cleanup, so history outgrows the live snapshot.
const DefaultHistoryLimit = 32 << 20 // 32MB

// Reading is one sensor's latest value from the live snapshot.
type Reading struct {
	SensorID merge.SensorID `json:"id"`
	Location string         `json:"location"`
	Value    merge.Value    `json:"lastValue"`
}

// HTTPReader reads sensor data from the upstream HTTP API.
//
// Historical reads hit one endpoint per sensor. Live reads share the single
// snapshot endpoint: concurrent [HTTPReader.Latest] calls are collapsed into
// one upstream request, and each caller picks its own sensor from the result.
type HTTPReader struct {
	baseURL string
	headers map[string]string
	timeout time.Duration
	client  *Client
	history *Client
	live    singleflight.Group
}

// ReaderOption configures an [HTTPReader].
type ReaderOption func(*readerConfig)

type readerConfig struct {
	historyLimit int64
}

// WithHistoryLimit sets the maximum size in bytes of one sensor's
// historical response. Non-positive values keep [DefaultHistoryLimit].
func WithHistoryLimit(n int64) ReaderOption {
	return func(cfg *readerConfig) {
		if n > 0 {
			cfg.historyLimit = n
		}
	}
}

// NewHTTPReader creates an [HTTPReader] for the API rooted at baseURL.
//
// Parameters:
//   - baseURL: upstream root, e.g. "http://localhost:4000"
//   - headers: extra headers sent with every request (may be nil)
//   - timeout: bound on each individual read; expiry is reported as
//     [SourceUnavailableError]
//
// Live snapshots are limited to [DefaultBodyLimit] and historical responses
// to [DefaultHistoryLimit]. An oversized body is [SourceUnavailableError]
// wrapping [ErrResponseTooLarge].
func NewHTTPReader(baseURL string, headers map[string]string, timeout time.Duration, opts ...ReaderOption) *HTTPReader {
	cfg := readerConfig{historyLimit: DefaultHistoryLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HTTPReader{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
		timeout: timeout,
		client:  NewClient(),
		history: NewClient(WithBodyLimit(cfg.historyLimit)),
	}
}

// Close releases idle upstream connections.
func (r *HTTPReader) Close() {
	r.client.Close()
	r.history.Close()
}

// Records returns every record the upstream holds for sensor id.
// Record order is whatever the upstream sent and must not be relied on.
func (r *HTTPReader) Records(ctx context.Context, id merge.SensorID) ([]merge.RawRecord, error) {
	resp := r.history.Fetch(ctx, http.MethodGet, r.baseURL+historyPathPrefix+url.PathEscape(string(id)), r.headers, r.timeout)
	if err := checkResponse(id, resp); err != nil {
		return nil, err
	}
	return ParseRecords(id, resp.Body)
}

// Latest returns sensor id's reading from the live snapshot.
// A sensor missing from the snapshot is reported as unavailable.
func (r *HTTPReader) Latest(ctx context.Context, id merge.SensorID) (Reading, error) {
	readings, err := r.sharedSnapshot(ctx)
	if err != nil {
		return Reading{}, claim(id, err)
	}

	for i := len(readings) - 1; i >= 0; i-- {
		if readings[i].SensorID == id {
			return readings[i], nil
		}
	}
	return Reading{}, unavailable(id, "sensor not present in live snapshot")
}

// sharedSnapshot fetches the live snapshot, joining any request already in
// flight. The returned slice is shared between callers and must not be
// modified.
func (r *HTTPReader) sharedSnapshot(ctx context.Context) ([]Reading, error) {
	v, err, _ := r.live.Do(livePath, func() (any, error) {
		resp := r.client.Fetch(ctx, http.MethodGet, r.baseURL+livePath, r.headers, r.timeout)
		if err := checkResponse("", resp); err != nil {
			return nil, err
		}
		return ParseSnapshot(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Reading), nil
}

// checkResponse maps transport failures and non-2xx statuses to
// [SourceUnavailableError].
func checkResponse(id merge.SensorID, resp Response) error {
	if resp.Error != nil {
		return &SourceUnavailableError{SensorID: id, Err: resp.Error}
	}
	if !resp.OK() {
		return unavailable(id, "unexpected status %d", resp.StatusCode)
	}
	return nil
}

// claim re-tags an error from the shared live snapshot with the sensor that
// observed it.
func claim(id merge.SensorID, err error) error {
	var su *SourceUnavailableError
	if errors.As(err, &su) {
		return &SourceUnavailableError{SensorID: id, Err: su.Err}
	}
	var mr *MalformedResponseError
	if errors.As(err, &mr) {
		return &MalformedResponseError{SensorID: id, Err: mr.Err}
	}
	return &SourceUnavailableError{SensorID: id, Err: err}
}

// ParseRecords decodes a historical response:
//
//	{"sensorId": "sensor_1", "records": [{"timestamp": "...", "value": 21.5}]}
//
// Timestamps keep their exact upstream text (numbers keep their raw form).
// A null or missing value is an absent reading.
func ParseRecords(id merge.SensorID, body []byte) ([]merge.RawRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, malformed(id, "invalid JSON")
	}
	doc := gjson.ParseBytes(body)

	if sid := doc.Get("sensorId"); sid.Exists() && sid.String() != string(id) {
		return nil, malformed(id, "response is for sensor %q", sid.String())
	}

	records := doc.Get("records")
	if !records.IsArray() {
		return nil, malformed(id, "records array missing")
	}

	items := records.Array()
	out := make([]merge.RawRecord, 0, len(items))
	for i, item := range items {
		ts, ok := canonicalTimestamp(item.Get("timestamp"))
		if !ok {
			return nil, malformed(id, "records[%d]: timestamp missing or not a string/number", i)
		}
		value, err := parseValue(item.Get("value"))
		if err != nil {
			return nil, malformed(id, "records[%d]: %v", i, err)
		}
		out = append(out, merge.RawRecord{Timestamp: ts, Value: value})
	}

	return out, nil
}

// ParseSnapshot decodes a live snapshot response:
//
//	{"data": [{"id": "sensor_1", "location": "Kitchen", "lastValue": 38.2}]}
func ParseSnapshot(body []byte) ([]Reading, error) {
	if !gjson.ValidBytes(body) {
		return nil, malformed("", "invalid JSON")
	}

	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, malformed("", "data array missing")
	}

	items := data.Array()
	out := make([]Reading, 0, len(items))
	for i, item := range items {
		id := item.Get("id")
		if id.Type != gjson.String || id.String() == "" {
			return nil, malformed("", "data[%d]: id missing", i)
		}
		value, err := parseValue(item.Get("lastValue"))
		if err != nil {
			return nil, malformed(merge.SensorID(id.String()), "lastValue: %v", err)
		}
		out = append(out, Reading{
			SensorID: merge.SensorID(id.String()),
			Location: item.Get("location").String(),
			Value:    value,
		})
	}

	return out, nil
}

// canonicalTimestamp returns the exact upstream text of a timestamp.
func canonicalTimestamp(v gjson.Result) (merge.Timestamp, bool) {
	switch v.Type {
	case gjson.String:
		if v.Str == "" {
			return "", false
		}
		return merge.Timestamp(v.Str), true
	case gjson.Number:
		return merge.Timestamp(v.Raw), true
	default:
		return "", false
	}
}

// parseValue accepts a finite number, or null/missing for an absent reading.
// Out-of-range literals such as 1e999 parse to an infinity and are rejected.
func parseValue(v gjson.Result) (merge.Value, error) {
	switch v.Type {
	case gjson.Null:
		return merge.Absent, nil
	case gjson.Number:
		if math.IsInf(v.Num, 0) || math.IsNaN(v.Num) {
			return merge.Absent, errors.New("value out of range: " + v.Raw)
		}
		return merge.Float(v.Num), nil
	default:
		return merge.Absent, errors.New("value must be a number or null, got " + v.Type.String())
	}
}
