package telemetry

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDecoder(publish Publisher) *Decoder {
	d := NewDecoder(publish)
	d.now = func() time.Time { return testNow }
	return d
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBuildRequests(t *testing.T) {
	tests := []struct {
		name  string
		build func() []byte
		want  []byte
	}{
		{
			name:  "realtime",
			build: BuildRealtimeRequest,
			want:  []byte{0x32, 0x00, 0x00, 0x09, 0x89},
		},
		{
			name:  "stats",
			build: BuildStatsRequest,
			want:  []byte{0x80, 0x04, 0xFC},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.build(); !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestDecodeRealtimeFull(t *testing.T) {
	payload := []byte{
		0x32,
		0x00, 0x00, 0x09, 0x89,
		0x01, 0x6D, // 36.5 °C
		0x00, 0x00, 0x04, 0xD2, // 12.34 A
		0x00, 0x00, 0x13, 0x88, // 5000 rpm
		0x01, 0xF8, // 50.4 V
		0x00, 0x00, 0x30, 0x39, // 1.2345 Wh
	}

	d := newTestDecoder(nil)
	u, ok := d.Decode(payload)
	if !ok {
		t.Fatal("Decode() ok = false")
	}
	if u.Kind != KindRealtime {
		t.Errorf("Kind = %v, want realtime", u.Kind)
	}

	r := u.Realtime
	checks := []struct {
		name      string
		got, want float64
	}{
		{"MosTemperature", r.MosTemperature, 36.5},
		{"InputCurrent", r.InputCurrent, 12.34},
		{"RPM", r.RPM, 5000},
		{"BatteryVoltage", r.BatteryVoltage, 50.4},
		{"WattHours", r.WattHours, 1.2345},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if !r.LastUpdate.Equal(testNow) {
		t.Errorf("LastUpdate = %v, want %v", r.LastUpdate, testNow)
	}

	wantFields := []string{"mos_temperature", "input_current", "rpm", "battery_voltage", "watt_hours"}
	if !reflect.DeepEqual(u.Fields, wantFields) {
		t.Errorf("Fields = %v, want %v", u.Fields, wantFields)
	}
}

func TestDecodeRealtimeSparseLeavesOtherFields(t *testing.T) {
	d := newTestDecoder(nil)
	d.Decode(BuildRealtimeResponse(RealtimeRequestMask, Realtime{
		MosTemperature: 20,
		InputCurrent:   3.5,
		RPM:            1200,
		BatteryVoltage: 48,
		WattHours:      0.5,
	}))

	// Only temperature (bit 0) and voltage (bit 8).
	later := testNow.Add(2 * time.Second)
	d.now = func() time.Time { return later }
	u, ok := d.Decode([]byte{0x32, 0x00, 0x00, 0x01, 0x01, 0x01, 0x6D, 0x01, 0xF8})
	if !ok {
		t.Fatal("Decode() ok = false")
	}

	r := u.Realtime
	if !approx(r.MosTemperature, 36.5) || !approx(r.BatteryVoltage, 50.4) {
		t.Errorf("temperature/voltage = %v/%v, want 36.5/50.4", r.MosTemperature, r.BatteryVoltage)
	}
	if !approx(r.InputCurrent, 3.5) || !approx(r.RPM, 1200) || !approx(r.WattHours, 0.5) {
		t.Errorf("untouched fields changed: %+v", r)
	}
	if !r.LastUpdate.Equal(later) {
		t.Errorf("LastUpdate = %v, want %v", r.LastUpdate, later)
	}
	if !reflect.DeepEqual(u.Fields, []string{"mos_temperature", "battery_voltage"}) {
		t.Errorf("Fields = %v", u.Fields)
	}
}

func TestDecodeWithoutFieldsKeepsTimestamp(t *testing.T) {
	earlier := testNow.Add(-10 * time.Second)

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "realtime empty mask", payload: []byte{CommGetValuesSelective, 0x00, 0x00, 0x00, 0x00}},
		{name: "realtime bare tag", payload: []byte{CommGetValuesSelective}},
		{name: "realtime mask cut short", payload: []byte{CommGetValuesSelective, 0x00, 0x00}},
		{name: "stats empty mask", payload: []byte{CommGetStats, 0x00, 0x00, 0x00, 0x00}},
		{name: "stats bare tag", payload: []byte{CommGetStats}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			published := 0
			d := newTestDecoder(func(Update) { published++ })
			d.realtime.Apply(RealtimePatch{RPM: ptr(900.0)}, earlier)
			d.stats.Apply(StatsPatch{RunTime: ptr(30.0)}, earlier)

			u, ok := d.Decode(tt.payload)
			if !ok {
				t.Fatal("Decode() ok = false, want true for a known tag")
			}
			if len(u.Fields) != 0 {
				t.Errorf("Fields = %v, want none", u.Fields)
			}
			if published != 0 {
				t.Errorf("published %d updates, want 0", published)
			}
			if got := d.Realtime(); !got.LastUpdate.Equal(earlier) || got.RPM != 900 {
				t.Errorf("realtime changed: %+v", got)
			}
			if got := d.Stats(); !got.LastUpdate.Equal(earlier) || got.RunTime != 30 {
				t.Errorf("stats changed: %+v", got)
			}
			if got := d.Realtime().SinceLastUpdate(testNow); got != 10*time.Second {
				t.Errorf("SinceLastUpdate = %v, want 10s", got)
			}
		})
	}
}

func TestDecodeRealtimeTruncatedYieldsZero(t *testing.T) {
	d := newTestDecoder(nil)
	d.realtime.RPM = 999

	u, ok := d.Decode([]byte{0x32, 0x00, 0x00, 0x09, 0x89, 0x01, 0x6D})
	if !ok {
		t.Fatal("Decode() ok = false")
	}
	if !approx(u.Realtime.MosTemperature, 36.5) {
		t.Errorf("MosTemperature = %v, want 36.5", u.Realtime.MosTemperature)
	}
	if u.Realtime.RPM != 0 || u.Realtime.WattHours != 0 {
		t.Errorf("missing fields = rpm %v wh %v, want 0", u.Realtime.RPM, u.Realtime.WattHours)
	}
}

func TestDecodeStats(t *testing.T) {
	payload := []byte{
		0x80,
		0x00, 0x00, 0x04, 0xFC,
		0x42, 0xC8, 0x00, 0x00, // avg power 100
		0x43, 0x7A, 0x80, 0x00, // max power 250.5
		0x40, 0x00, 0x00, 0x00, // avg current 2
		0x41, 0x20, 0x00, 0x00, // max current 10
		0x41, 0xF0, 0x00, 0x00, // avg temp 30
		0x42, 0x34, 0x00, 0x00, // max temp 45
		0x45, 0x61, 0x00, 0x00, // run time 3600
	}

	d := newTestDecoder(nil)
	u, ok := d.Decode(payload)
	if !ok {
		t.Fatal("Decode() ok = false")
	}
	if u.Kind != KindStats {
		t.Errorf("Kind = %v, want stats", u.Kind)
	}

	want := Stats{
		AvgPower:          100,
		MaxPower:          250.5,
		AvgCurrent:        2,
		MaxCurrent:        10,
		AvgMosTemperature: 30,
		MaxMosTemperature: 45,
		RunTime:           3600,
		LastUpdate:        testNow,
	}
	if u.Stats != want {
		t.Errorf("Stats = %+v\nwant    %+v", u.Stats, want)
	}
	if len(u.Fields) != 7 {
		t.Errorf("Fields = %v, want 7 entries", u.Fields)
	}

	// Realtime snapshot is untouched.
	if !u.Realtime.LastUpdate.IsZero() {
		t.Errorf("realtime LastUpdate = %v, want zero", u.Realtime.LastUpdate)
	}
}

func TestDecodeStatsSparse(t *testing.T) {
	d := newTestDecoder(nil)
	d.Decode(BuildStatsResponse(0x04FC, Stats{MaxPower: 800, RunTime: 60}))

	// Run time only (bit 10).
	u, ok := d.Decode(BuildStatsResponse(1<<10, Stats{RunTime: 120}))
	if !ok {
		t.Fatal("Decode() ok = false")
	}
	if u.Stats.RunTime != 120 || u.Stats.MaxPower != 800 {
		t.Errorf("Stats = %+v, want RunTime 120 and MaxPower 800", u.Stats)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: nil},
		{name: "unknown tag", payload: []byte{0x04, 0x01, 0x02}},
		{name: "firmware version reply", payload: []byte{0x00, 0x05, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			published := 0
			d := newTestDecoder(func(Update) { published++ })
			d.realtime.RPM = 42

			if _, ok := d.Decode(tt.payload); ok {
				t.Error("Decode() ok = true, want false")
			}
			if published != 0 {
				t.Errorf("published %d updates, want 0", published)
			}
			if d.Realtime().RPM != 42 || !d.Realtime().LastUpdate.IsZero() {
				t.Errorf("snapshot changed: %+v", d.Realtime())
			}
		})
	}
}

func TestDecoderPublishes(t *testing.T) {
	var got []Update
	d := newTestDecoder(func(u Update) { got = append(got, u) })

	d.SetConnected(true)
	d.Decode(BuildRealtimeResponse(1<<7, Realtime{RPM: 3000}))
	d.Decode(BuildStatsResponse(1<<3, Stats{MaxPower: 1500}))
	d.SetConnected(false)

	kinds := make([]Kind, len(got))
	for i, u := range got {
		kinds[i] = u.Kind
	}
	wantKinds := []Kind{KindConnection, KindRealtime, KindStats, KindConnection}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Fatalf("kinds = %v, want %v", kinds, wantKinds)
	}

	if !got[0].Realtime.Connected || got[3].Realtime.Connected {
		t.Errorf("connected flags = %v, %v", got[0].Realtime.Connected, got[3].Realtime.Connected)
	}
	if got[1].Realtime.RPM != 3000 || !got[1].Realtime.Connected {
		t.Errorf("realtime update = %+v", got[1].Realtime)
	}
	// Each update is a snapshot copy, not a live view.
	if got[1].Stats.MaxPower != 0 || got[2].Stats.MaxPower != 1500 {
		t.Errorf("stats copies = %v, %v", got[1].Stats.MaxPower, got[2].Stats.MaxPower)
	}
}

func TestDecoderReset(t *testing.T) {
	published := 0
	d := newTestDecoder(func(Update) { published++ })
	d.Decode(BuildRealtimeResponse(RealtimeRequestMask, Realtime{RPM: 10, BatteryVoltage: 40}))
	d.Decode(BuildStatsResponse(0x04FC, Stats{RunTime: 5}))

	d.Reset()
	if d.Realtime() != (Realtime{}) || d.Stats() != (Stats{}) {
		t.Errorf("after Reset: %+v %+v", d.Realtime(), d.Stats())
	}
	if published != 2 {
		t.Errorf("published %d, want 2 (Reset does not publish)", published)
	}
}

func TestResponseBuildersRoundTrip(t *testing.T) {
	rt := Realtime{MosTemperature: -5.5, InputCurrent: -20.25, RPM: -1500, BatteryVoltage: 62.9, WattHours: 123.4567}
	st := Stats{RunTime: 7200.5, MaxPower: 2000, AvgPower: 350.25, MaxMosTemperature: 71, AvgMosTemperature: 40.5, MaxCurrent: 45, AvgCurrent: 8.125}

	d := newTestDecoder(nil)
	u, _ := d.Decode(BuildRealtimeResponse(RealtimeRequestMask, rt))
	got := u.Realtime
	for name, pair := range map[string][2]float64{
		"temp":    {got.MosTemperature, rt.MosTemperature},
		"current": {got.InputCurrent, rt.InputCurrent},
		"rpm":     {got.RPM, rt.RPM},
		"voltage": {got.BatteryVoltage, rt.BatteryVoltage},
		"wh":      {got.WattHours, rt.WattHours},
	} {
		if !approx(pair[0], pair[1]) {
			t.Errorf("%s = %v, want %v", name, pair[0], pair[1])
		}
	}

	u, _ = d.Decode(BuildStatsResponse(0x04FC, st))
	st.LastUpdate = testNow
	if u.Stats != st {
		t.Errorf("stats = %+v\nwant    %+v", u.Stats, st)
	}
}

func TestUpdateJSONUsesKindNames(t *testing.T) {
	u := Update{Kind: KindStats, Fields: []string{"run_time"}}
	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !bytes.Contains(data, []byte(`"kind":"stats"`)) {
		t.Errorf("json = %s, want kind by name", data)
	}
}
