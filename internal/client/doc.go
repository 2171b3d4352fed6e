// Package client reads telemetry from a running vesclink observer server
// over its JSON API.
//
// Requests that fail with a network error or a 5xx status are retried with
// exponential backoff. Every failure is a *ServerError whose Type selects
// the troubleshooting hints shown by the CLI:
//
//	c := client.NewClientWithURL("http://10.0.0.2:8470")
//	status, err := c.GetStatus(ctx)
//	if err != nil {
//	    fmt.Println(client.ShortMessage(err))
//	    for _, tip := range client.Troubleshooting(err) {
//	        fmt.Println(" -", tip)
//	    }
//	}
package client
