// Package discovery announces and finds vesclink observer servers with
// multicast DNS.
//
// A server started with advertising enabled registers the "_vesclink._tcp"
// service, publishing its link name and version as TXT records. Scanners
// browse for that service type and return one Instance per advertised name:
//
//	scanner := discovery.NewScanner()
//	instances, err := scanner.ScanForServers(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, inst := range instances {
//	    fmt.Println(inst.Name, inst.WebSocketURL())
//	}
//
// Multicast must be permitted on the local network. Instances on other
// subnets are not visible.
package discovery
