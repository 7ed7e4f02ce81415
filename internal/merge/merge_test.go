package merge

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var known = []SensorID{"S1", "S2", "S3"}

func entry(id SensorID, ts Timestamp, v Value) Entry {
	return Entry{SensorID: id, Record: RawRecord{Timestamp: ts, Value: v}}
}

func TestMerge_Scenario(t *testing.T) {
	input := []Entry{
		entry("S1", "2025-03-01T10:00:00Z", Float(22.5)),
		entry("S2", "2025-03-01T10:00:00Z", Absent),
		entry("S1", "2025-03-01T10:00:05Z", Float(23.0)),
	}

	got := Merge(known, input)

	want := Table{
		{
			Timestamp: "2025-03-01T10:00:00Z",
			Values:    map[SensorID]Value{"S1": Float(22.5), "S2": Absent, "S3": Absent},
		},
		{
			Timestamp: "2025-03-01T10:00:05Z",
			Values:    map[SensorID]Value{"S1": Float(23.0), "S2": Absent, "S3": Absent},
		},
	}
	assert.Equal(t, want, got)
}

func TestMerge_EmptyInput(t *testing.T) {
	got := Merge(known, nil)
	require.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, Merge(known, []Entry{}))
}

func TestMerge_LastOccurrenceWins(t *testing.T) {
	input := []Entry{
		entry("S1", "2025-03-01T10:00:00Z", Float(1)),
		entry("S2", "2025-03-01T10:00:00Z", Float(5)),
		entry("S1", "2025-03-01T10:00:00Z", Float(2)),
		entry("S2", "2025-03-01T10:00:00Z", Absent),
	}

	got := Merge(known, input)

	require.Len(t, got, 1)
	assert.Equal(t, Float(2), got[0].Values["S1"])
	assert.Equal(t, Absent, got[0].Values["S2"], "a later null overwrites an earlier value")
}

func TestMerge_ExactTimestampKey(t *testing.T) {
	input := []Entry{
		entry("S1", "2025-03-01T10:00:00.000Z", Float(1)),
		entry("S2", "2025-03-01T10:00:00.001Z", Float(2)),
	}

	got := Merge(known, input)

	require.Len(t, got, 2, "readings one millisecond apart are different rows")
	assert.Equal(t, Timestamp("2025-03-01T10:00:00.000Z"), got[0].Timestamp)
	assert.Equal(t, Timestamp("2025-03-01T10:00:00.001Z"), got[1].Timestamp)
}

func TestMerge_SameInstantDifferentText(t *testing.T) {
	// not normalised: grouping is on the canonical text
	input := []Entry{
		entry("S1", "2025-03-01T10:00:00Z", Float(1)),
		entry("S2", "2025-03-01T11:00:00+01:00", Float(2)),
	}

	got := Merge(known, input)

	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].Timestamp, got[1].Timestamp)
}

func TestMerge_UnknownSensorIgnored(t *testing.T) {
	input := []Entry{
		entry("S1", "2025-03-01T10:00:00Z", Float(1)),
		entry("S9", "2025-03-01T10:00:00Z", Float(9)),
		entry("S9", "2025-03-01T10:00:01Z", Float(9)),
	}

	got := Merge(known, input)

	require.Len(t, got, 1)
	assert.NotContains(t, got[0].Values, SensorID("S9"))
}

func TestMerge_SortsAscending(t *testing.T) {
	input := []Entry{
		entry("S1", "2025-03-01T10:00:10Z", Float(3)),
		entry("S2", "2025-03-01T10:00:00Z", Float(1)),
		entry("S3", "2025-03-01T10:00:05Z", Float(2)),
	}

	got := Merge(known, input)

	require.Len(t, got, 3)
	assert.Equal(t, Timestamp("2025-03-01T10:00:00Z"), got[0].Timestamp)
	assert.Equal(t, Timestamp("2025-03-01T10:00:05Z"), got[1].Timestamp)
	assert.Equal(t, Timestamp("2025-03-01T10:00:10Z"), got[2].Timestamp)
}

func TestMerge_SortsByInstantNotText(t *testing.T) {
	input := []Entry{
		entry("S1", "2025-03-01T10:30:00+02:00", Float(1)), // 08:30Z
		entry("S1", "2025-03-01T09:00:00Z", Float(2)),
	}

	got := Merge(known, input)

	require.Len(t, got, 2)
	assert.Equal(t, Timestamp("2025-03-01T10:30:00+02:00"), got[0].Timestamp)
}

func TestMerge_NumericTimestamps(t *testing.T) {
	input := []Entry{
		entry("S1", "1709287205000", Float(2)),
		entry("S1", "999999999999", Float(1)),
	}

	got := Merge(known, input)

	require.Len(t, got, 2)
	assert.Equal(t, Timestamp("999999999999"), got[0].Timestamp, "numeric order, not lexical")
}

func TestMerge_UnparseableSortLast(t *testing.T) {
	input := []Entry{
		entry("S1", "not-a-time", Float(1)),
		entry("S1", "2025-03-01T09:00:00Z", Float(2)),
	}

	got := Merge(known, input)

	require.Len(t, got, 2)
	assert.Equal(t, Timestamp("2025-03-01T09:00:00Z"), got[0].Timestamp)
	assert.Equal(t, Timestamp("not-a-time"), got[1].Timestamp)
}

func TestTimestamp_TimeRejectsNonFiniteNumbers(t *testing.T) {
	for _, ts := range []Timestamp{"NaN", "Inf", "-Inf", "+Inf", "1e20", "-1e20", "1e999"} {
		t.Run(string(ts), func(t *testing.T) {
			_, ok := ts.Time()
			assert.False(t, ok)
		})
	}

	at, ok := Timestamp("1709287205000").Time()
	require.True(t, ok)
	assert.Equal(t, time.UnixMilli(1709287205000).UTC(), at)
}

func TestMerge_NonFiniteNumbersSortAsText(t *testing.T) {
	input := []Entry{
		entry("S1", "NaN", Float(1)),
		entry("S1", "1e20", Float(2)),
		entry("S1", "2025-03-01T09:00:00Z", Float(3)),
		entry("S1", "Inf", Float(4)),
	}

	got := Merge(known, input)

	// unparsed timestamps follow every parsed one, in lexical order
	require.Len(t, got, 4)
	assert.Equal(t, []Timestamp{"2025-03-01T09:00:00Z", "1e20", "Inf", "NaN"},
		[]Timestamp{got[0].Timestamp, got[1].Timestamp, got[2].Timestamp, got[3].Timestamp})
}

func TestGroup_FirstSeenOrder(t *testing.T) {
	input := []Entry{
		entry("S1", "2025-03-01T10:00:10Z", Float(3)),
		entry("S2", "2025-03-01T10:00:00Z", Float(1)),
		entry("S3", "2025-03-01T10:00:10Z", Float(4)),
	}

	got := Group(known, input)

	require.Len(t, got, 2)
	assert.Equal(t, Timestamp("2025-03-01T10:00:10Z"), got[0].Timestamp)
	assert.Equal(t, Float(4), got[0].Values["S3"])
}

// randomEntries builds a deterministic pseudo-random input with duplicate
// timestamps, duplicate (timestamp, sensor) pairs and absent values.
func randomEntries(seed int64, n int) []Entry {
	r := rand.New(rand.NewSource(seed))
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ids := append([]SensorID{}, known...)

	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		ts := TimestampOf(base.Add(time.Duration(r.Intn(20)) * time.Second))
		v := Absent
		if r.Intn(4) != 0 {
			v = Float(float64(r.Intn(600)) / 10)
		}
		out = append(out, entry(ids[r.Intn(len(ids))], ts, v))
	}
	return out
}

func TestMerge_Properties(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			input := randomEntries(seed, 60)
			got := Merge(known, input)

			seen := make(map[Timestamp]bool)
			for i, row := range got {
				// exact key set
				require.Len(t, row.Values, len(known))
				for _, id := range known {
					require.Contains(t, row.Values, id)
				}

				// unique and strictly ascending
				require.False(t, seen[row.Timestamp], "duplicate timestamp %s", row.Timestamp)
				seen[row.Timestamp] = true
				if i > 0 {
					require.True(t, Less(got[i-1].Timestamp, row.Timestamp))
				}
			}

			// idempotent
			assert.Equal(t, got, Merge(known, input))

			// last occurrence wins for every (timestamp, sensor)
			last := make(map[Timestamp]map[SensorID]Value)
			for _, e := range input {
				if last[e.Record.Timestamp] == nil {
					last[e.Record.Timestamp] = make(map[SensorID]Value)
				}
				last[e.Record.Timestamp][e.SensorID] = e.Record.Value
			}
			for _, row := range got {
				for id, v := range last[row.Timestamp] {
					assert.Equal(t, v, row.Values[id])
				}
			}
		})
	}
}

func TestTable_Reversed(t *testing.T) {
	table := Merge(known, []Entry{
		entry("S1", "2025-03-01T10:00:00Z", Float(1)),
		entry("S1", "2025-03-01T10:00:05Z", Float(2)),
	})

	rev := table.Reversed()

	require.Len(t, rev, 2)
	assert.Equal(t, table[1].Timestamp, rev[0].Timestamp)
	assert.Equal(t, Timestamp("2025-03-01T10:00:00Z"), table[0].Timestamp, "original untouched")
}

func TestRow_JSON(t *testing.T) {
	row := Row{
		Timestamp: "2025-03-01T10:00:00Z",
		Values:    map[SensorID]Value{"S1": Float(22.5), "S2": Absent},
	}

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":"2025-03-01T10:00:00Z","values":{"S1":22.5,"S2":null}}`, string(data))

	var decoded Row
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, row, decoded)
}

func TestRow_Clone(t *testing.T) {
	row := Row{Timestamp: "t", Values: map[SensorID]Value{"S1": Float(1)}}
	cp := row.Clone()
	cp.Values["S1"] = Float(2)

	assert.Equal(t, Float(1), row.Values["S1"])
}

func TestValue_Ptr(t *testing.T) {
	assert.Nil(t, Absent.Ptr())
	require.NotNil(t, Float(3).Ptr())
	assert.InDelta(t, 3.0, *Float(3).Ptr(), 0)
}
