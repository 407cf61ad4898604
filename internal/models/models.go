// Package models holds the data types shared across storage, probes, the
// alert engine and the HTTP API. None of these types own their own
// persistence; repositories are responsible for reading and writing them.
package models

import "time"

// HostStatus is owned exclusively by the alert engine; no other component
// may write it.
type HostStatus string

const (
	HostStatusUnknown HostStatus = "unknown"
	HostStatusUp      HostStatus = "up"
	HostStatusWarning HostStatus = "warning"
	HostStatusDown    HostStatus = "down"
)

// Host is a monitored target.
type Host struct {
	ID                  int64
	Name                string
	Address             string
	PingIntervalSeconds int
	WarningThresholdMs  int64
	CriticalThresholdMs int64
	Status              HostStatus
	Enabled             bool
	GroupID             *int64
	CreatedAt           time.Time
	LastChecked         *time.Time
}

// HostGroup is an optional hierarchical tag over hosts.
type HostGroup struct {
	ID          int64
	Name        string
	Description string
	ParentID    *int64
	CreatedAt   time.Time
}

// PingResult is a single, immutable ICMP outcome.
type PingResult struct {
	ID           int64
	HostID       int64
	Timestamp    time.Time
	LatencyUs    int64
	Success      bool
	TTL          *int
	ErrorMessage string
}

// PingStatistics is derived, never stored.
type PingStatistics struct {
	TotalPings        int
	SuccessfulPings   int
	MinLatencyUs      int64
	MaxLatencyUs      int64
	AvgLatencyUs      float64
	JitterUs          float64
	PacketLossPercent float64
}

type AlertType string

const (
	AlertTypeHostDown      AlertType = "host_down"
	AlertTypeHighLatency   AlertType = "high_latency"
	AlertTypePacketLoss    AlertType = "packet_loss"
	AlertTypeHostRecovered AlertType = "host_recovered"
	AlertTypeScanComplete  AlertType = "scan_complete"
)

type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a threshold crossing or state transition.
type Alert struct {
	ID           string
	HostID       int64
	Type         AlertType
	Severity     AlertSeverity
	Title        string
	Message      string
	Timestamp    time.Time
	Acknowledged bool
}

// Clone returns a deep copy so an alert can be handed to goroutines (the
// notifier, websocket hub, subscribers) without aliasing.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// AlertThresholds is the global configuration the alert engine evaluates
// every result against. Per-host WarningThresholdMs/CriticalThresholdMs on
// Host are display-only; see DESIGN.md.
type AlertThresholds struct {
	LatencyWarningMs           int64
	LatencyCriticalMs          int64
	PacketLossWarningPercent   float64
	PacketLossCriticalPercent  float64
	ConsecutiveFailuresForDown int
}

// AlertFilter is a conjunction of optional fields; the zero value matches
// every alert.
type AlertFilter struct {
	Severity     *AlertSeverity
	Type         *AlertType
	Acknowledged *bool
	SearchText   string
}

func (f AlertFilter) Empty() bool {
	return f.Severity == nil && f.Type == nil && f.Acknowledged == nil && f.SearchText == ""
}

type PortState string

const (
	PortStateUnknown  PortState = "unknown"
	PortStateOpen     PortState = "open"
	PortStateClosed   PortState = "closed"
	PortStateFiltered PortState = "filtered"
)

// PortScanResult is an immutable row describing one probed port.
type PortScanResult struct {
	ID             int64
	TargetAddress  string
	Port           int
	State          PortState
	ServiceName    string
	ScanTimestamp  time.Time
}

type PortRange string

const (
	PortRangeCommon   PortRange = "common"
	PortRangeWeb      PortRange = "web"
	PortRangeDatabase PortRange = "database"
	PortRangeAll      PortRange = "all"
	PortRangeCustom   PortRange = "custom"
)

// ScheduledScanConfig describes a recurring port scan.
type ScheduledScanConfig struct {
	ID              int64
	Name            string
	TargetAddress   string
	PortRange       PortRange
	CustomPorts     []int
	IntervalMinutes int
	Enabled         bool
	NotifyOnChanges bool
	CreatedAt       time.Time
	LastRunAt       *time.Time
	NextRunAt       *time.Time
}

type PortChangeType string

const (
	ChangeNewOpen      PortChangeType = "new_open"
	ChangeNewClosed    PortChangeType = "new_closed"
	ChangeStateChanged PortChangeType = "state_changed"
)

// PortChange is one port's state delta between two scans of the same target.
type PortChange struct {
	Port          int
	ChangeType    PortChangeType
	PreviousState PortState
	CurrentState  PortState
	ServiceName   string
}

// PortScanDiff is the set of changes between two consecutive scans.
type PortScanDiff struct {
	ID                int64
	TargetAddress     string
	PreviousScanTime  time.Time
	CurrentScanTime   time.Time
	Changes           []PortChange
	TotalPortsScanned int
	OpenPortsBefore   int
	OpenPortsAfter    int
}

type SnmpVersion string

const (
	SnmpV1  SnmpVersion = "v1"
	SnmpV2c SnmpVersion = "v2c"
	SnmpV3  SnmpVersion = "v3"
)

type SnmpSecurityLevel string

const (
	SnmpNoAuthNoPriv SnmpSecurityLevel = "noAuthNoPriv"
	SnmpAuthNoPriv   SnmpSecurityLevel = "authNoPriv"
	SnmpAuthPriv     SnmpSecurityLevel = "authPriv"
)

// SnmpCredentials is a tagged union: exactly one of V2c/V3 is populated,
// selected by Version on the owning SnmpDeviceConfig.
type SnmpCredentials struct {
	// V2c
	Community string

	// V3
	Username        string
	SecurityLevel   SnmpSecurityLevel
	AuthProtocol    string
	AuthPassword    string
	PrivProtocol    string
	PrivPassword    string
	ContextName     string
	ContextEngineID string
}

// SnmpDeviceConfig configures polling of one host via SNMP.
type SnmpDeviceConfig struct {
	ID                 int64
	HostID              int64
	Version             SnmpVersion
	Credentials         SnmpCredentials
	Port                int
	TimeoutMs           int
	Retries             int
	PollIntervalSeconds int
	OIDs                []string
	Enabled             bool
	CreatedAt           time.Time
	LastPolled          *time.Time
}

type SnmpVarBindType string

const (
	SnmpTypeInteger        SnmpVarBindType = "integer"
	SnmpTypeOctetString    SnmpVarBindType = "octet_string"
	SnmpTypeObjectID       SnmpVarBindType = "object_identifier"
	SnmpTypeIPAddress      SnmpVarBindType = "ip_address"
	SnmpTypeCounter32      SnmpVarBindType = "counter32"
	SnmpTypeGauge32        SnmpVarBindType = "gauge32"
	SnmpTypeTimeTicks      SnmpVarBindType = "time_ticks"
	SnmpTypeCounter64      SnmpVarBindType = "counter64"
	SnmpTypeNull           SnmpVarBindType = "null"
	SnmpTypeNoSuchObject   SnmpVarBindType = "no_such_object"
	SnmpTypeNoSuchInstance SnmpVarBindType = "no_such_instance"
	SnmpTypeEndOfMibView   SnmpVarBindType = "end_of_mib_view"
	SnmpTypeUnknown        SnmpVarBindType = "unknown"
)

// SnmpVarBind is one OID/value pair from a GET/GET-NEXT/WALK response.
type SnmpVarBind struct {
	OID           string
	Type          SnmpVarBindType
	Value         string
	IntValue      *int64
	CounterValue  *uint64
}

// SnmpResult is the outcome of one poll.
type SnmpResult struct {
	ID           int64
	HostID       int64
	Timestamp    time.Time
	Version      SnmpVersion
	VarBinds     []SnmpVarBind
	ResponseTimeUs int64
	Success      bool
	ErrorMessage string
	ErrorStatus  int
	ErrorIndex   int
}

// WebhookEndpoint is a notification sink configured by the operator.
// Supplemented beyond spec.md, which names "configured webhook endpoints"
// without defining their storage shape.
type WebhookEndpoint struct {
	ID        int64
	URL       string
	Enabled   bool
	Secret    string
	CreatedAt time.Time
}
