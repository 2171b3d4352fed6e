package telemetry

import (
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestRealtimeApply(t *testing.T) {
	tests := []struct {
		name  string
		start Realtime
		patch RealtimePatch
		want  Realtime
	}{
		{
			name:  "empty patch keeps old timestamp",
			start: Realtime{RPM: 100, BatteryVoltage: 50, LastUpdate: testNow.Add(-time.Minute)},
			patch: RealtimePatch{},
			want:  Realtime{RPM: 100, BatteryVoltage: 50, LastUpdate: testNow.Add(-time.Minute)},
		},
		{
			name:  "partial patch",
			start: Realtime{RPM: 100, BatteryVoltage: 50, InputCurrent: 3},
			patch: RealtimePatch{RPM: ptr(200.0), InputCurrent: ptr(0.0)},
			want:  Realtime{RPM: 200, BatteryVoltage: 50, LastUpdate: testNow},
		},
		{
			name:  "connection flag",
			start: Realtime{WattHours: 1},
			patch: RealtimePatch{Connected: ptr(true)},
			want:  Realtime{WattHours: 1, Connected: true, LastUpdate: testNow},
		},
		{
			name: "full patch",
			patch: RealtimePatch{
				BatteryVoltage: ptr(42.0),
				InputCurrent:   ptr(-1.5),
				MosTemperature: ptr(30.0),
				WattHours:      ptr(2.0),
				RPM:            ptr(-800.0),
				Connected:      ptr(false),
			},
			want: Realtime{BatteryVoltage: 42, InputCurrent: -1.5, MosTemperature: 30, WattHours: 2, RPM: -800, LastUpdate: testNow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.start
			r.Apply(tt.patch, testNow)
			if r != tt.want {
				t.Errorf("got  %+v\nwant %+v", r, tt.want)
			}
		})
	}
}

func TestStatsApply(t *testing.T) {
	s := Stats{MaxPower: 10, AvgPower: 5}
	s.Apply(StatsPatch{MaxPower: ptr(20.0), RunTime: ptr(60.0)}, testNow)

	want := Stats{MaxPower: 20, AvgPower: 5, RunTime: 60, LastUpdate: testNow}
	if s != want {
		t.Errorf("got  %+v\nwant %+v", s, want)
	}
}

func TestStatsApplyEmptyPatch(t *testing.T) {
	s := Stats{MaxPower: 10}
	s.Apply(StatsPatch{}, testNow)
	if !s.LastUpdate.IsZero() {
		t.Errorf("LastUpdate = %v after empty patch, want zero", s.LastUpdate)
	}
}

func TestSnapshotReset(t *testing.T) {
	r := Realtime{RPM: 1, Connected: true, LastUpdate: testNow}
	r.Reset()
	if r != (Realtime{}) {
		t.Errorf("Realtime after Reset = %+v", r)
	}

	s := Stats{RunTime: 1, LastUpdate: testNow}
	s.Reset()
	if s != (Stats{}) {
		t.Errorf("Stats after Reset = %+v", s)
	}
}

func TestSinceLastUpdate(t *testing.T) {
	var r Realtime
	if got := r.SinceLastUpdate(testNow); got < 24*time.Hour {
		t.Errorf("never-updated snapshot reports %v", got)
	}

	r.Apply(RealtimePatch{}, testNow)
	if got := r.SinceLastUpdate(testNow.Add(1500 * time.Millisecond)); got != 1500*time.Millisecond {
		t.Errorf("SinceLastUpdate = %v, want 1.5s", got)
	}

	var s Stats
	s.Apply(StatsPatch{}, testNow)
	if got := s.SinceLastUpdate(testNow.Add(time.Minute)); got != time.Minute {
		t.Errorf("Stats SinceLastUpdate = %v, want 1m", got)
	}
}
