package tcpscan

import "github.com/rcourtman/netpulse/internal/models"

// commonPorts holds the ~28 well-known service ports scanned under
// PortRangeCommon (spec §4.5).
var commonPorts = []int{
	21, 22, 23, 25, 53, 80, 110, 111, 135, 139, 143, 161, 389, 443, 445,
	465, 514, 587, 636, 993, 995, 1433, 1521, 3306, 3389, 5432, 5900, 8080,
}

var webPorts = []int{80, 443, 8080, 8443, 8000, 8888, 3000, 5000, 9000, 9090}

var databasePorts = []int{3306, 5432, 1433, 1521, 27017, 6379, 11211, 5984, 9200, 7474}

var serviceNames = map[int]string{
	21: "ftp", 22: "ssh", 23: "telnet", 25: "smtp", 53: "dns",
	80: "http", 110: "pop3", 111: "rpcbind", 135: "msrpc", 139: "netbios-ssn",
	143: "imap", 161: "snmp", 389: "ldap", 443: "https", 445: "microsoft-ds",
	465: "smtps", 514: "syslog", 587: "submission", 636: "ldaps", 993: "imaps",
	995: "pop3s", 1433: "mssql", 1521: "oracle", 3000: "node", 3306: "mysql",
	3389: "rdp", 5000: "upnp", 5432: "postgresql", 5900: "vnc", 5984: "couchdb",
	6379: "redis", 7474: "neo4j", 8000: "http-alt", 8080: "http-proxy",
	8443: "https-alt", 8888: "http-alt2", 9000: "cslistener", 9090: "zeus-admin",
	9200: "elasticsearch", 11211: "memcached", 27017: "mongodb",
}

// ResolvePorts expands a PortRange (plus optional custom list) into the
// concrete ports to scan, per spec §4.5.
func ResolvePorts(portRange models.PortRange, customPorts []int) []int {
	switch portRange {
	case models.PortRangeCommon:
		return append([]int(nil), commonPorts...)
	case models.PortRangeWeb:
		return append([]int(nil), webPorts...)
	case models.PortRangeDatabase:
		return append([]int(nil), databasePorts...)
	case models.PortRangeAll:
		ports := make([]int, 65535)
		for i := range ports {
			ports[i] = i + 1
		}
		return ports
	case models.PortRangeCustom:
		return append([]int(nil), customPorts...)
	default:
		return nil
	}
}

func serviceNameFor(port int) string {
	return serviceNames[port]
}
