// Package server exposes a running link session to observers.
//
// # Endpoints
//
//	GET /healthz        liveness probe
//	GET /api/realtime   latest realtime snapshot (JSON)
//	GET /api/stats      latest stats snapshot (JSON)
//	GET /api/status     connection state, snapshot ages, stream counters
//	GET /ws             WebSocket push of every telemetry update
//	GET /metrics        Prometheus exposition (when a Gatherer is set)
//
// # WebSocket Push
//
// Each observer first receives the current state, then one JSON message per
// update published by the session:
//
//	{"kind":"realtime","realtime":{...},"stats":{...},"fields":["rpm"]}
//
// Observers have a bounded queue. One that falls behind is disconnected so
// the link never waits on a slow client.
//
// # Usage
//
//	hub := server.NewHub(0)
//	session := link.NewSession(t, link.Config{Publish: hub.Broadcast})
//	srv := server.New(&server.Config{Addr: ":8470", Gatherer: reg, Hub: hub}, session)
//	go srv.Start(ctx)
package server
