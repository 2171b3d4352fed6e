// Package link runs a telemetry session against one motor controller.
//
// A Transport delivers raw bytes in arbitrary chunks: a serial port
// (github.com/tarm/serial) or a WebSocket bridge (github.com/gorilla/websocket)
// in front of a BLE or UART gateway. A Session reassembles those chunks into
// packets, decodes telemetry, and polls the controller on a fixed interval:
//
//	t, err := link.OpenSerial(link.DefaultSerialConfig("/dev/ttyACM0"))
//	if err != nil {
//	    return err
//	}
//	s := link.NewSession(t, link.Config{Publish: hub.Broadcast})
//	err = s.Run(ctx)
//
// Run owns the transport and closes it on return. Each Session runs once.
package link
