package parse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadingFloat(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected float64
		ok       bool
	}{
		{name: "Plain integer", raw: "500", expected: 500, ok: true},
		{name: "Unit suffix", raw: "2kg", expected: 2, ok: true},
		{name: "Spaced unit", raw: " 2.5 kg", expected: 2.5, ok: true},
		{name: "Negative", raw: "-12V", expected: -12, ok: true},
		{name: "Leading dot", raw: ".5A", expected: 0.5, ok: true},
		{name: "Exponent", raw: "1e3W", expected: 1000, ok: true},
		{name: "Dangling exponent", raw: "3e", expected: 3, ok: true},
		{name: "Text first", raw: "approx 5kg", ok: false},
		{name: "Empty", raw: "", ok: false},
		{name: "Sign only", raw: "-", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := LeadingFloat(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.expected, got, 1e-9)
			}
		})
	}
}

func TestSpecString(t *testing.T) {
	assert.Equal(t, "2kg", SpecString("2kg"))
	assert.Equal(t, "24", SpecString(float64(24)))
	assert.Equal(t, "1.5", SpecString(1.5))
	assert.Equal(t, "7", SpecString(7))
	assert.Equal(t, "", SpecString(nil))
	assert.Equal(t, "", SpecString([]any{"x"}))
}

func TestDate(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	got := Date("2024-03-01T12:30:00Z")
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got))

	got = Date(float64(want.UnixMilli()))
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got))

	got = Date("2024-03-01")
	require.NotNil(t, got)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.March, got.Month())

	got = Date(want)
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got))

	assert.Nil(t, Date("not a date"))
	assert.Nil(t, Date(""))
	assert.Nil(t, Date(true))
	assert.Nil(t, Date(time.Time{}))
}

func TestFlexTime_UnmarshalJSON(t *testing.T) {
	var payload struct {
		A FlexTime `json:"a"`
		B FlexTime `json:"b"`
		C FlexTime `json:"c"`
		D FlexTime `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a":"2024-03-01T00:00:00Z","b":1709251200000,"c":null,"d":"garbage"}`), &payload)
	require.NoError(t, err)

	assert.True(t, payload.A.Valid)
	assert.True(t, payload.B.Valid)
	assert.True(t, payload.A.Time.Equal(payload.B.Time))
	assert.False(t, payload.C.Valid)
	assert.False(t, payload.D.Valid)
	assert.Nil(t, payload.D.Ptr())
}
