package obs

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2017, 3, 14, 9, 26, 53, 0, time.UTC)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Observation
	}{
		{
			name: "no value",
			in: Observation{
				SetID:     7,
				Start:     t0,
				End:       t0.Add(90 * time.Second),
				Path:      []string{"192.0.2.1", "*", "198.51.100.7"},
				Condition: "ecn.connectivity.works",
			},
		},
		{
			name: "numeric value",
			in: Observation{
				SetID:     1,
				Start:     t0,
				End:       t0,
				Path:      []string{"*", "198.51.100.7"},
				Condition: "ecn.stable.connectivity.works",
				Value:     json.RawMessage(`12`),
			},
		},
		{
			name: "zero value is not absent",
			in: Observation{
				SetID:     2,
				Start:     t0,
				End:       t0.Add(time.Hour),
				Path:      []string{"do-ams3", "*", "2001:db8::1"},
				Condition: "ecn.ipmark.ce.seen",
				Value:     json.RawMessage(`0`),
			},
		},
		{
			name: "string value",
			in: Observation{
				SetID:     3,
				Start:     t0,
				End:       t0.Add(time.Minute),
				Path:      []string{"*", "example.net"},
				Condition: "ecn.negotiation.reflected",
				Value:     json.RawMessage(`"false"`),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, tc.in))
			require.True(t, strings.HasSuffix(buf.String(), "\n"), "record must end with a newline")

			got, err := Decode(bytes.TrimSpace(buf.Bytes()))
			require.NoError(t, err)
			if !got.Equal(tc.in) {
				t.Errorf("round trip mismatch (-want +got):\n%s", cmp.Diff(tc.in, got))
			}
		})
	}
}

func TestEncode_OmitsAbsentValue(t *testing.T) {
	var buf bytes.Buffer
	o := Observation{
		SetID:     4,
		Start:     t0,
		End:       t0.Add(2 * time.Second),
		Path:      []string{"*", "203.0.113.9"},
		Condition: "ecn.connectivity.super.broken",
	}
	require.NoError(t, Encode(&buf, o))
	assert.Equal(t,
		`[4,"2017-03-14T09:26:53","2017-03-14T09:26:55",["*","203.0.113.9"],"ecn.connectivity.super.broken"]`+"\n",
		buf.String())
}

func TestEncode_WritesUTC(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Observation{
		SetID:     1,
		Start:     time.Date(2017, 3, 14, 10, 0, 0, 0, cet),
		End:       time.Date(2017, 3, 14, 10, 0, 1, 0, cet),
		Path:      []string{"*", "a"},
		Condition: "c",
	}))
	assert.Contains(t, buf.String(), `"2017-03-14T09:00:00"`)
}

func TestDecode_AcceptsTrailingZ(t *testing.T) {
	o, err := Decode([]byte(`[1,"2017-03-14T09:26:53Z","2017-03-14T09:27:00Z",["a","*","b"],"ecn.connectivity.broken"]`))
	require.NoError(t, err)
	assert.True(t, o.Start.Equal(t0))
	assert.Equal(t, time.UTC, o.Start.Location())
	assert.False(t, o.HasValue())
}

func TestDecode_NullValueIsAbsent(t *testing.T) {
	o, err := Decode([]byte(`[1,"2017-03-14T09:26:53","2017-03-14T09:26:53",["*","b"],"ecn.connectivity.offline",null]`))
	require.NoError(t, err)
	assert.False(t, o.HasValue())
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"object top level", `{"set_id":1}`},
		{"string top level", `"hello"`},
		{"not json", `[1, "2017-03-14T09:26:53"`},
		{"four elements", `[1,"2017-03-14T09:26:53","2017-03-14T09:26:53",["*","b"]]`},
		{"seven elements", `[1,"2017-03-14T09:26:53","2017-03-14T09:26:53",["*","b"],"c",1,2]`},
		{"bad start time", `[1,"14/03/2017 09:26","2017-03-14T09:26:53",["*","b"],"c"]`},
		{"bad end time", `[1,"2017-03-14T09:26:53","yesterday",["*","b"],"c"]`},
		{"fractional start seconds", `[1,"2017-03-01T00:00:00.750","2017-03-01T00:00:01",["*","b"],"c"]`},
		{"fractional end seconds", `[1,"2017-03-01T00:00:00","2017-03-01T00:00:01.5Z",["*","b"],"c"]`},
		{"numeric time", `[1,1489483613,"2017-03-14T09:26:53",["*","b"],"c"]`},
		{"fractional set id", `[1.5,"2017-03-14T09:26:53","2017-03-14T09:26:53",["*","b"],"c"]`},
		{"path too short", `[1,"2017-03-14T09:26:53","2017-03-14T09:26:53",["b"],"c"]`},
		{"path not a list", `[1,"2017-03-14T09:26:53","2017-03-14T09:26:53","* b","c"]`},
		{"empty condition", `[1,"2017-03-14T09:26:53","2017-03-14T09:26:53",["*","b"],""]`},
		{"end before start", `[1,"2017-03-14T09:26:53","2017-03-14T09:26:52",["*","b"],"c"]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.line))
			assert.Error(t, err)
		})
	}
}

func TestReader_StreamsAndSkipsBlankLines(t *testing.T) {
	in := strings.Join([]string{
		`[1,"2017-03-14T09:26:53","2017-03-14T09:26:54",["s","*","a"],"ecn.connectivity.works"]`,
		``,
		`   `,
		`[1,"2017-03-14T09:26:55","2017-03-14T09:26:56",["s","*","b"],"ecn.connectivity.broken",3]`,
	}, "\n")

	r := NewReader(strings.NewReader(in))
	var got []string
	for r.Next() {
		got = append(got, r.Observation().Condition)
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"ecn.connectivity.works", "ecn.connectivity.broken"}, got)
	assert.Equal(t, 4, r.Line())
}

func TestReader_MalformedLinePoisonsBatch(t *testing.T) {
	in := strings.Join([]string{
		`[1,"2017-03-14T09:26:53","2017-03-14T09:26:54",["s","*","a"],"ecn.connectivity.works"]`,
		`[1,"2017-03-14T09:26:53","2017-03-14T09:26:54",["s","*","a"]]`,
		`[1,"2017-03-14T09:26:53","2017-03-14T09:26:54",["s","*","c"],"ecn.connectivity.works"]`,
	}, "\n")

	r := NewReader(strings.NewReader(in))
	n := 0
	for r.Next() {
		n++
	}
	assert.Equal(t, 1, n, "records after the bad line must not be delivered")

	err := r.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRecord))

	var mre *MalformedRecordError
	require.True(t, errors.As(err, &mre))
	assert.Equal(t, 2, mre.Line)

	assert.False(t, r.Next(), "a failed reader stays failed")
}

func TestObservation_Target(t *testing.T) {
	tests := []struct {
		path   []string
		want   string
		wantOK bool
	}{
		{[]string{"192.0.2.1", "*", "198.51.100.7"}, "198.51.100.7", true},
		{[]string{"*", "198.51.100.7"}, "198.51.100.7", true},
		{[]string{"198.51.100.7", "*"}, "198.51.100.7", true},
		{[]string{"vp", "192.0.2.1", "*", "dst"}, "dst", true},
		{[]string{"*", "*"}, "", false},
	}
	for _, tc := range tests {
		got, ok := Observation{Path: tc.path}.Target()
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("Target(%v) = %q, %v; want %q, %v", tc.path, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestObservation_FromVantage(t *testing.T) {
	o := Observation{Path: []string{"192.0.2.1", "*", "198.51.100.7"}, Condition: "ecn.connectivity.works"}

	got := o.FromVantage("digitalocean-ams3")
	assert.Equal(t, []string{"digitalocean-ams3", "*", "198.51.100.7"}, got.Path)
	assert.Equal(t, []string{"192.0.2.1", "*", "198.51.100.7"}, o.Path, "the original must not change")

	assert.Equal(t, o.Path, o.FromVantage("").Path)
	assert.Equal(t, []string{"*", "*"}, Observation{Path: []string{"*", "*"}}.FromVantage("vp").Path)
}
