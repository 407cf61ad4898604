package api

import (
	"github.com/rcourtman/netpulse/internal/models"
)

// hostJSON mirrors spec §4.11's Host JSON shape: epoch-second timestamps,
// status as a string, groupId/lastChecked nullable.
type hostJSON struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Address             string `json:"address"`
	PingIntervalSeconds int    `json:"pingIntervalSeconds"`
	WarningThresholdMs  int64  `json:"warningThresholdMs"`
	CriticalThresholdMs int64  `json:"criticalThresholdMs"`
	Status              string `json:"status"`
	Enabled             bool   `json:"enabled"`
	GroupID             *int64 `json:"groupId"`
	CreatedAt           int64  `json:"createdAt"`
	LastChecked         *int64 `json:"lastChecked"`
}

func hostToJSON(h *models.Host) hostJSON {
	var lastChecked *int64
	if h.LastChecked != nil {
		ts := h.LastChecked.Unix()
		lastChecked = &ts
	}
	return hostJSON{
		ID: h.ID, Name: h.Name, Address: h.Address,
		PingIntervalSeconds: h.PingIntervalSeconds,
		WarningThresholdMs:  h.WarningThresholdMs,
		CriticalThresholdMs: h.CriticalThresholdMs,
		Status:              string(h.Status),
		Enabled:             h.Enabled,
		GroupID:             h.GroupID,
		CreatedAt:           h.CreatedAt.Unix(),
		LastChecked:         lastChecked,
	}
}

// hostPatch is the partial shape accepted by create/update: missing
// fields keep the current value on update, per spec §4.11.
type hostPatch struct {
	Name                *string `json:"name"`
	Address             *string `json:"address"`
	PingIntervalSeconds *int    `json:"pingIntervalSeconds"`
	WarningThresholdMs  *int64  `json:"warningThresholdMs"`
	CriticalThresholdMs *int64  `json:"criticalThresholdMs"`
	Enabled             *bool   `json:"enabled"`
	GroupID             **int64 `json:"groupId"`
}

func (p hostPatch) applyTo(h *models.Host) {
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Address != nil {
		h.Address = *p.Address
	}
	if p.PingIntervalSeconds != nil {
		h.PingIntervalSeconds = *p.PingIntervalSeconds
	}
	if p.WarningThresholdMs != nil {
		h.WarningThresholdMs = *p.WarningThresholdMs
	}
	if p.CriticalThresholdMs != nil {
		h.CriticalThresholdMs = *p.CriticalThresholdMs
	}
	if p.Enabled != nil {
		h.Enabled = *p.Enabled
	}
	if p.GroupID != nil {
		h.GroupID = *p.GroupID
	}
}

type groupJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parentId"`
	CreatedAt   int64  `json:"createdAt"`
}

func groupToJSON(g *models.HostGroup) groupJSON {
	return groupJSON{ID: g.ID, Name: g.Name, Description: g.Description, ParentID: g.ParentID, CreatedAt: g.CreatedAt.Unix()}
}

type groupWithHostsJSON struct {
	groupJSON
	Hosts []hostJSON `json:"hosts"`
}

type alertJSON struct {
	ID           string `json:"id"`
	HostID       int64  `json:"hostId"`
	Type         string `json:"type"`
	Severity     string `json:"severity"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Timestamp    int64  `json:"timestamp"`
	Acknowledged bool   `json:"acknowledged"`
}

func alertToJSON(a *models.Alert) alertJSON {
	return alertJSON{
		ID: a.ID, HostID: a.HostID, Type: string(a.Type), Severity: string(a.Severity),
		Title: a.Title, Message: a.Message, Timestamp: a.Timestamp.Unix(), Acknowledged: a.Acknowledged,
	}
}

type pingResultJSON struct {
	ID           int64  `json:"id"`
	HostID       int64  `json:"hostId"`
	Timestamp    int64  `json:"timestamp"`
	LatencyUs    int64  `json:"latencyUs"`
	Success      bool   `json:"success"`
	TTL          *int   `json:"ttl"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

func pingResultToJSON(p *models.PingResult) pingResultJSON {
	return pingResultJSON{
		ID: p.ID, HostID: p.HostID, Timestamp: p.Timestamp.Unix(),
		LatencyUs: p.LatencyUs, Success: p.Success, TTL: p.TTL, ErrorMessage: p.ErrorMessage,
	}
}

type statisticsJSON struct {
	TotalPings        int     `json:"totalPings"`
	SuccessfulPings   int     `json:"successfulPings"`
	MinLatencyUs      int64   `json:"minLatencyUs"`
	MaxLatencyUs      int64   `json:"maxLatencyUs"`
	AvgLatencyUs      float64 `json:"avgLatencyUs"`
	JitterUs          float64 `json:"jitterUs"`
	PacketLossPercent float64 `json:"packetLossPercent"`
}

func statisticsToJSON(s models.PingStatistics) statisticsJSON {
	return statisticsJSON(s)
}

type portScanResultJSON struct {
	ID            int64  `json:"id"`
	TargetAddress string `json:"targetAddress"`
	Port          int    `json:"port"`
	State         string `json:"state"`
	ServiceName   string `json:"serviceName"`
	ScanTimestamp int64  `json:"scanTimestamp"`
}

func portScanResultToJSON(p *models.PortScanResult) portScanResultJSON {
	return portScanResultJSON{
		ID: p.ID, TargetAddress: p.TargetAddress, Port: p.Port,
		State: string(p.State), ServiceName: p.ServiceName, ScanTimestamp: p.ScanTimestamp.Unix(),
	}
}
