package telemetry

import "time"

// Realtime holds the most recent live measurements from the controller.
type Realtime struct {
	BatteryVoltage float64   `json:"battery_voltage"` // V
	InputCurrent   float64   `json:"input_current"`   // A
	MosTemperature float64   `json:"mos_temperature"` // °C
	WattHours      float64   `json:"watt_hours"`      // Wh consumed
	RPM            float64   `json:"rpm"`             // electrical RPM
	Connected      bool      `json:"connected"`
	LastUpdate     time.Time `json:"last_update"`
}

// RealtimePatch carries a sparse update. Nil fields are left unchanged.
type RealtimePatch struct {
	BatteryVoltage *float64
	InputCurrent   *float64
	MosTemperature *float64
	WattHours      *float64
	RPM            *float64
	Connected      *bool
}

// Empty reports whether the patch sets no field.
func (p RealtimePatch) Empty() bool {
	return p == RealtimePatch{}
}

// Apply copies every non-nil patch field into r and stamps LastUpdate. An
// empty patch leaves r untouched, timestamp included.
func (r *Realtime) Apply(p RealtimePatch, now time.Time) {
	if p.Empty() {
		return
	}
	r.LastUpdate = now

	if p.BatteryVoltage != nil {
		r.BatteryVoltage = *p.BatteryVoltage
	}
	if p.InputCurrent != nil {
		r.InputCurrent = *p.InputCurrent
	}
	if p.MosTemperature != nil {
		r.MosTemperature = *p.MosTemperature
	}
	if p.WattHours != nil {
		r.WattHours = *p.WattHours
	}
	if p.RPM != nil {
		r.RPM = *p.RPM
	}
	if p.Connected != nil {
		r.Connected = *p.Connected
	}
}

// Reset restores the zero state used before the first update.
func (r *Realtime) Reset() {
	*r = Realtime{}
}

// SinceLastUpdate returns how long ago the snapshot last changed. A snapshot
// that was never updated reports a very large duration.
func (r Realtime) SinceLastUpdate(now time.Time) time.Duration {
	return since(r.LastUpdate, now)
}

// Stats holds the controller's accumulated ride statistics.
type Stats struct {
	RunTime           float64   `json:"run_time"` // seconds
	MaxPower          float64   `json:"max_power"`
	AvgPower          float64   `json:"avg_power"`
	MaxMosTemperature float64   `json:"max_mos_temperature"`
	AvgMosTemperature float64   `json:"avg_mos_temperature"`
	MaxCurrent        float64   `json:"max_current"`
	AvgCurrent        float64   `json:"avg_current"`
	LastUpdate        time.Time `json:"last_update"`
}

// StatsPatch carries a sparse update. Nil fields are left unchanged.
type StatsPatch struct {
	RunTime           *float64
	MaxPower          *float64
	AvgPower          *float64
	MaxMosTemperature *float64
	AvgMosTemperature *float64
	MaxCurrent        *float64
	AvgCurrent        *float64
}

// Empty reports whether the patch sets no field.
func (p StatsPatch) Empty() bool {
	return p == StatsPatch{}
}

// Apply copies every non-nil patch field into s and stamps LastUpdate. An
// empty patch leaves s untouched.
func (s *Stats) Apply(p StatsPatch, now time.Time) {
	if p.Empty() {
		return
	}
	s.LastUpdate = now

	if p.RunTime != nil {
		s.RunTime = *p.RunTime
	}
	if p.MaxPower != nil {
		s.MaxPower = *p.MaxPower
	}
	if p.AvgPower != nil {
		s.AvgPower = *p.AvgPower
	}
	if p.MaxMosTemperature != nil {
		s.MaxMosTemperature = *p.MaxMosTemperature
	}
	if p.AvgMosTemperature != nil {
		s.AvgMosTemperature = *p.AvgMosTemperature
	}
	if p.MaxCurrent != nil {
		s.MaxCurrent = *p.MaxCurrent
	}
	if p.AvgCurrent != nil {
		s.AvgCurrent = *p.AvgCurrent
	}
}

// Reset restores the zero state used before the first update.
func (s *Stats) Reset() {
	*s = Stats{}
}

// SinceLastUpdate returns how long ago the snapshot last changed.
func (s Stats) SinceLastUpdate(now time.Time) time.Duration {
	return since(s.LastUpdate, now)
}

func since(last, now time.Time) time.Duration {
	if last.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(last)
}
