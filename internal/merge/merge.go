// Package merge aligns independently timestamped per-sensor readings into a
// single table with one row per distinct timestamp and one column per sensor.
//
// The main components are:
//
//   - [Entry]: one raw reading tagged with the sensor it came from
//   - [Row]: one timestamp plus a value-or-absent for every known sensor
//   - [Merge]: groups entries by exact timestamp and sorts ascending
//   - [Group]: the same grouping, kept in first-seen order
//
// Merging is pure and total: it never fails, and empty input yields an
// empty table.
package merge

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/relvacode/iso8601"
)

// SensorID names one sensor of the fixed, known set.
type SensorID string

// Timestamp is the canonical text of a reading's time as reported upstream.
//
// Timestamps group by exact equality of this text. Two readings one
// millisecond apart are different rows, and no rounding is applied.
type Timestamp string

// Time returns the instant the timestamp denotes. Numeric text is read as
// Unix milliseconds when it is at least unixMilliThreshold and as Unix
// seconds otherwise; anything else is parsed as an ISO 8601 date-time. The
// boolean is false when the text is neither, or when it is a number that is
// not finite or does not fit an int64.
func (t Timestamp) Time() (time.Time, bool) {
	if n, err := strconv.ParseFloat(string(t), 64); err == nil {
		if math.IsNaN(n) || n >= math.MaxInt64 || n <= math.MinInt64 {
			return time.Time{}, false
		}
		if n >= unixMilliThreshold {
			return time.UnixMilli(int64(n)).UTC(), true
		}
		sec := int64(n)
		return time.Unix(sec, int64((n-float64(sec))*float64(time.Second))).UTC(), true
	}

	parsed, err := iso8601.ParseString(string(t))
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// unixMilliThreshold separates Unix seconds from Unix milliseconds.
// 1e11 seconds is far beyond any realistic date; 1e11 ms is March 1973.
const unixMilliThreshold = 1e11

// TimestampOf returns the canonical timestamp for a point in time.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UTC().Format(time.RFC3339Nano))
}

// Value is a sensor reading that may be absent.
//
// An absent value means the sensor was alive but reported no reading
// (hardware fault, missing data). It is valid data, not a fetch failure.
type Value struct {
	Float float64
	Valid bool
}

// Absent is the zero Value.
var Absent = Value{}

// Float returns a present Value holding f.
func Float(f float64) Value {
	return Value{Float: f, Valid: true}
}

// Ptr returns the value as a pointer, nil when absent.
func (v Value) Ptr() *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float
	return &f
}

// MarshalJSON encodes absent values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v.Float, 'f', -1, 64), nil
}

// UnmarshalJSON decodes null as absent.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Absent
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*v = Float(f)
	return nil
}

// RawRecord is one reading from one sensor.
type RawRecord struct {
	Timestamp Timestamp
	Value     Value
}

// Entry is a RawRecord tagged with its sensor.
type Entry struct {
	SensorID SensorID
	Record   RawRecord
}

// Row is one timestamp with a value for every known sensor.
type Row struct {
	Timestamp Timestamp          `json:"timestamp"`
	Values    map[SensorID]Value `json:"values"`
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	values := make(map[SensorID]Value, len(r.Values))
	for id, v := range r.Values {
		values[id] = v
	}
	return Row{Timestamp: r.Timestamp, Values: values}
}

// Table is an ordered sequence of rows, unique by timestamp.
type Table []Row

// Reversed returns a copy of the table in the opposite order.
func (t Table) Reversed() Table {
	out := make(Table, len(t))
	for i, row := range t {
		out[len(t)-1-i] = row
	}
	return out
}

// Merge groups entries into rows keyed by exact timestamp and returns them
// sorted ascending, oldest first.
//
// Every row carries exactly the known sensor set; sensors without a record at
// that timestamp stay [Absent]. When the same (timestamp, sensor) pair occurs
// more than once, the last occurrence in input order wins. Entries for
// sensors outside known are ignored.
func Merge(known []SensorID, entries []Entry) Table {
	table := Group(known, entries)

	// parse each timestamp once rather than on every comparison
	keys := make([]sortKey, len(table))
	for i, row := range table {
		keys[i] = newSortKey(row.Timestamp)
	}
	sort.Sort(byTimestamp{table: table, keys: keys})

	return table
}

// sortKey caches the parsed form of a timestamp for ordering.
type sortKey struct {
	text   Timestamp
	at     time.Time
	parsed bool
}

func newSortKey(ts Timestamp) sortKey {
	at, ok := ts.Time()
	return sortKey{text: ts, at: at, parsed: ok}
}

func (k sortKey) less(o sortKey) bool {
	switch {
	case k.parsed && o.parsed:
		if !k.at.Equal(o.at) {
			return k.at.Before(o.at)
		}
		return k.text < o.text
	case k.parsed != o.parsed:
		return k.parsed
	default:
		return k.text < o.text
	}
}

// byTimestamp sorts a table and its parallel keys together.
type byTimestamp struct {
	table Table
	keys  []sortKey
}

func (b byTimestamp) Len() int           { return len(b.table) }
func (b byTimestamp) Less(i, j int) bool { return b.keys[i].less(b.keys[j]) }
func (b byTimestamp) Swap(i, j int) {
	b.table[i], b.table[j] = b.table[j], b.table[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}

// Group performs the same grouping as [Merge] but keeps rows in the order
// their timestamp was first seen.
func Group(known []SensorID, entries []Entry) Table {
	if len(entries) == 0 {
		return Table{}
	}

	isKnown := make(map[SensorID]struct{}, len(known))
	for _, id := range known {
		isKnown[id] = struct{}{}
	}

	index := make(map[Timestamp]int)
	table := Table{}

	for _, e := range entries {
		if _, ok := isKnown[e.SensorID]; !ok {
			continue
		}

		i, ok := index[e.Record.Timestamp]
		if !ok {
			i = len(table)
			index[e.Record.Timestamp] = i
			table = append(table, newRow(known, e.Record.Timestamp))
		}
		table[i].Values[e.SensorID] = e.Record.Value
	}

	return table
}

// newRow creates a row with every known sensor absent.
func newRow(known []SensorID, ts Timestamp) Row {
	values := make(map[SensorID]Value, len(known))
	for _, id := range known {
		values[id] = Absent
	}
	return Row{Timestamp: ts, Values: values}
}

// Less orders timestamps by the instant they denote.
//
// ISO 8601 timestamps compare as times. Equal instants written differently
// and timestamps that do not parse fall back to comparing the canonical text,
// so distinct timestamps never compare equal. Unparseable timestamps sort
// after parseable ones.
func Less(a, b Timestamp) bool {
	return newSortKey(a).less(newSortKey(b))
}
