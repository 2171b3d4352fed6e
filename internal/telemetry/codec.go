package telemetry

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/vesclink/internal/logging"
	"github.com/muurk/vesclink/internal/wire"
)

// Command tags understood by the controller.
const (
	CommGetValuesSelective byte = 50
	CommGetStats           byte = 128
)

// Request masks. The realtime mask is sent as 32 bits, the stats mask as
// 16 bits. The controller echoes a 32-bit mask in both responses.
const (
	RealtimeRequestMask uint32 = 1<<0 | 1<<3 | 1<<7 | 1<<8 | 1<<11
	StatsRequestMask    uint16 = 1<<2 | 1<<3 | 1<<4 | 1<<5 | 1<<6 | 1<<7 | 1<<10
)

// Kind identifies which snapshot an Update carries.
type Kind int

const (
	KindRealtime Kind = iota
	KindStats
	KindConnection
)

func (k Kind) String() string {
	switch k {
	case KindRealtime:
		return "realtime"
	case KindStats:
		return "stats"
	case KindConnection:
		return "connection"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name, so JSON observers see "realtime"
// rather than a number.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Update is published after every change to a snapshot. Both snapshots are
// copies taken after the change. Fields lists the names that were present in
// the decoded message, in wire order.
type Update struct {
	Kind     Kind     `json:"kind"`
	Realtime Realtime `json:"realtime"`
	Stats    Stats    `json:"stats"`
	Fields   []string `json:"fields,omitempty"`
}

// Publisher receives updates. It is called synchronously from Decode.
type Publisher func(Update)

// realtimeField describes one optional value in a realtime response.
type realtimeField struct {
	bit   uint
	name  string
	wide  bool // 32-bit integer when true, 16-bit otherwise
	scale float64
	set   func(p *RealtimePatch, v float64)
	get   func(r *Realtime) float64
}

// realtimeFields is ordered by ascending mask bit, which is the wire order.
var realtimeFields = []realtimeField{
	{
		bit: 0, name: "mos_temperature", scale: 10,
		set: func(p *RealtimePatch, v float64) { p.MosTemperature = &v },
		get: func(r *Realtime) float64 { return r.MosTemperature },
	},
	{
		bit: 3, name: "input_current", wide: true, scale: 100,
		set: func(p *RealtimePatch, v float64) { p.InputCurrent = &v },
		get: func(r *Realtime) float64 { return r.InputCurrent },
	},
	{
		bit: 7, name: "rpm", wide: true, scale: 1,
		set: func(p *RealtimePatch, v float64) { p.RPM = &v },
		get: func(r *Realtime) float64 { return r.RPM },
	},
	{
		bit: 8, name: "battery_voltage", scale: 10,
		set: func(p *RealtimePatch, v float64) { p.BatteryVoltage = &v },
		get: func(r *Realtime) float64 { return r.BatteryVoltage },
	},
	{
		bit: 11, name: "watt_hours", wide: true, scale: 10000,
		set: func(p *RealtimePatch, v float64) { p.WattHours = &v },
		get: func(r *Realtime) float64 { return r.WattHours },
	},
}

// statsField describes one auto-float value in a stats response.
type statsField struct {
	bit  uint
	name string
	set  func(p *StatsPatch, v float64)
	get  func(s *Stats) float64
}

var statsFields = []statsField{
	{
		bit: 2, name: "avg_power",
		set: func(p *StatsPatch, v float64) { p.AvgPower = &v },
		get: func(s *Stats) float64 { return s.AvgPower },
	},
	{
		bit: 3, name: "max_power",
		set: func(p *StatsPatch, v float64) { p.MaxPower = &v },
		get: func(s *Stats) float64 { return s.MaxPower },
	},
	{
		bit: 4, name: "avg_current",
		set: func(p *StatsPatch, v float64) { p.AvgCurrent = &v },
		get: func(s *Stats) float64 { return s.AvgCurrent },
	},
	{
		bit: 5, name: "max_current",
		set: func(p *StatsPatch, v float64) { p.MaxCurrent = &v },
		get: func(s *Stats) float64 { return s.MaxCurrent },
	},
	{
		bit: 6, name: "avg_mos_temperature",
		set: func(p *StatsPatch, v float64) { p.AvgMosTemperature = &v },
		get: func(s *Stats) float64 { return s.AvgMosTemperature },
	},
	{
		bit: 7, name: "max_mos_temperature",
		set: func(p *StatsPatch, v float64) { p.MaxMosTemperature = &v },
		get: func(s *Stats) float64 { return s.MaxMosTemperature },
	},
	{
		bit: 10, name: "run_time",
		set: func(p *StatsPatch, v float64) { p.RunTime = &v },
		get: func(s *Stats) float64 { return s.RunTime },
	},
}

// BuildRealtimeRequest returns the payload asking for the realtime values.
func BuildRealtimeRequest() []byte {
	b := wire.NewBuffer(make([]byte, 0, 5))
	b.AppendUint8(CommGetValuesSelective)
	b.AppendUint32(RealtimeRequestMask)
	return b.Bytes()
}

// BuildStatsRequest returns the payload asking for the ride statistics.
func BuildStatsRequest() []byte {
	b := wire.NewBuffer(make([]byte, 0, 3))
	b.AppendUint8(CommGetStats)
	b.AppendUint16(StatsRequestMask)
	return b.Bytes()
}

// BuildRealtimeResponse encodes the controller's reply to a realtime request
// carrying the fields selected by mask. Used by simulators and tests.
func BuildRealtimeResponse(mask uint32, r Realtime) []byte {
	b := wire.NewBuffer(nil)
	b.AppendUint8(CommGetValuesSelective)
	b.AppendUint32(mask)
	for _, f := range realtimeFields {
		if mask&(1<<f.bit) == 0 {
			continue
		}
		if f.wide {
			b.AppendFloat32(f.get(&r), f.scale)
		} else {
			b.AppendFloat16(f.get(&r), f.scale)
		}
	}
	return b.Bytes()
}

// BuildStatsResponse encodes the controller's reply to a stats request.
func BuildStatsResponse(mask uint32, s Stats) []byte {
	b := wire.NewBuffer(nil)
	b.AppendUint8(CommGetStats)
	b.AppendUint32(mask)
	for _, f := range statsFields {
		if mask&(1<<f.bit) != 0 {
			b.AppendFloat32Auto(f.get(&s))
		}
	}
	return b.Bytes()
}

// Decoder turns response payloads into snapshot updates. It is not safe for
// concurrent use; callers serialize Decode and Reset.
type Decoder struct {
	realtime Realtime
	stats    Stats
	publish  Publisher
	now      func() time.Time
}

// NewDecoder creates a decoder that reports every update to publish, which
// may be nil.
func NewDecoder(publish Publisher) *Decoder {
	return &Decoder{
		publish: publish,
		now:     time.Now,
	}
}

// Decode applies a response payload to the matching snapshot and publishes
// the result. It returns false for empty payloads and unrecognized tags,
// leaving the snapshots untouched. Truncated responses decode missing fields
// as zero. A recognized response that carries no field (an empty mask, or a
// bare tag) returns true but changes nothing and publishes nothing, so
// LastUpdate only moves when a value was written.
func (d *Decoder) Decode(payload []byte) (Update, bool) {
	if len(payload) == 0 {
		return Update{}, false
	}

	b := wire.NewBuffer(payload)
	tag := b.PopUint8()

	var u Update
	switch tag {
	case CommGetValuesSelective:
		mask := b.PopUint32()
		var patch RealtimePatch
		for _, f := range realtimeFields {
			if mask&(1<<f.bit) == 0 {
				continue
			}
			var v float64
			if f.wide {
				v = b.PopFloat32(f.scale)
			} else {
				v = b.PopFloat16(f.scale)
			}
			f.set(&patch, v)
			u.Fields = append(u.Fields, f.name)
		}
		d.realtime.Apply(patch, d.now())
		u.Kind = KindRealtime

	case CommGetStats:
		mask := b.PopUint32()
		var patch StatsPatch
		for _, f := range statsFields {
			if mask&(1<<f.bit) == 0 {
				continue
			}
			f.set(&patch, b.PopFloat32Auto())
			u.Fields = append(u.Fields, f.name)
		}
		d.stats.Apply(patch, d.now())
		u.Kind = KindStats

	default:
		logging.Debug("Unrecognized telemetry message",
			zap.Uint8("tag", tag),
			zap.Int("length", len(payload)))
		return Update{}, false
	}

	if len(u.Fields) == 0 {
		u.Realtime = d.realtime
		u.Stats = d.stats
		return u, true
	}
	return d.emit(u), true
}

// SetConnected records the link state in the realtime snapshot and
// publishes a connection update.
func (d *Decoder) SetConnected(connected bool) Update {
	d.realtime.Apply(RealtimePatch{Connected: &connected}, d.now())
	return d.emit(Update{Kind: KindConnection, Fields: []string{"connected"}})
}

// Reset clears both snapshots without publishing.
func (d *Decoder) Reset() {
	d.realtime.Reset()
	d.stats.Reset()
}

// Realtime returns a copy of the realtime snapshot.
func (d *Decoder) Realtime() Realtime { return d.realtime }

// Stats returns a copy of the stats snapshot.
func (d *Decoder) Stats() Stats { return d.stats }

func (d *Decoder) emit(u Update) Update {
	u.Realtime = d.realtime
	u.Stats = d.stats
	if d.publish != nil {
		d.publish(u)
	}
	return u
}
