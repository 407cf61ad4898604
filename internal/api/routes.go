package api

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rcourtman/netpulse/internal/apperr"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/repositories"
)

// Deps are the repositories the route table reads and writes.
type Deps struct {
	Hosts   *repositories.HostRepository
	Groups  *repositories.HostGroupRepository
	Metrics *repositories.MetricsRepository
	Scans   *repositories.ScanRepository
	Version string
}

// RegisterRoutes installs the full route table from spec §4.11 onto s.
func RegisterRoutes(s *Server, deps Deps) {
	s.Handle("GET", "/api/health", false, healthHandler(deps))

	s.Handle("GET", "/api/hosts", true, listHostsHandler(deps))
	s.Handle("GET", "/api/hosts/:id", true, getHostHandler(deps))
	s.Handle("POST", "/api/hosts", true, createHostHandler(deps))
	s.Handle("PUT", "/api/hosts/:id", true, updateHostHandler(deps))
	s.Handle("DELETE", "/api/hosts/:id", true, deleteHostHandler(deps))

	s.Handle("GET", "/api/groups", true, listGroupsHandler(deps))
	s.Handle("GET", "/api/groups/:id", true, getGroupHandler(deps))
	s.Handle("POST", "/api/groups", true, createGroupHandler(deps))
	s.Handle("DELETE", "/api/groups/:id", true, deleteGroupHandler(deps))

	s.Handle("GET", "/api/alerts", true, listAlertsHandler(deps))
	s.Handle("POST", "/api/alerts/:id/acknowledge", true, acknowledgeAlertHandler(deps))
	s.Handle("POST", "/api/alerts/acknowledge-all", true, acknowledgeAllHandler(deps))

	s.Handle("GET", "/api/hosts/:id/metrics", true, hostMetricsHandler(deps))
	s.Handle("GET", "/api/hosts/:id/statistics", true, hostStatisticsHandler(deps))
	s.Handle("GET", "/api/hosts/:id/export", true, hostExportHandler(deps))

	s.Handle("GET", "/api/portscans", true, portScansHandler(deps))
}

func ok(body any) *Response {
	b, _ := json.Marshal(body)
	return &Response{StatusCode: 200, Body: b}
}

func created(body any) *Response {
	b, _ := json.Marshal(body)
	return &Response{StatusCode: 201, Body: b}
}

func errResponse(err error) *Response {
	if appErr, matched := apperr.As(err); matched {
		switch appErr.Kind {
		case apperr.KindValidation:
			return &Response{StatusCode: 400, Body: jsonError(appErr.Message, 400)}
		case apperr.KindNotFound:
			return &Response{StatusCode: 404, Body: jsonError(appErr.Message, 404)}
		case apperr.KindAuth:
			return &Response{StatusCode: 401, Body: jsonError(appErr.Message, 401)}
		}
	}
	return &Response{StatusCode: 500, Body: jsonError("Internal server error", 500)}
}

func pathInt64(req *Request, name string) (int64, error) {
	return strconv.ParseInt(req.PathParams[name], 10, 64)
}

func queryInt(req *Request, name string, def int) int {
	v, ok := req.Query[name]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func healthHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		count, err := deps.Hosts.Count(ctx)
		if err != nil {
			return errResponse(err)
		}
		return ok(map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"version":   deps.Version,
			"hosts":     count,
		})
	}
}

func listHostsHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		hosts, err := deps.Hosts.FindAll(ctx)
		if err != nil {
			return errResponse(err)
		}
		out := make([]hostJSON, 0, len(hosts))
		for _, h := range hosts {
			out = append(out, hostToJSON(h))
		}
		return ok(out)
	}
}

func getHostHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		id, err := pathInt64(req, "id")
		if err != nil {
			return &Response{StatusCode: 400, Body: jsonError("invalid host id", 400)}
		}
		host, err := deps.Hosts.FindByID(ctx, id)
		if err != nil {
			return errResponse(err)
		}
		return ok(hostToJSON(host))
	}
}

func createHostHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		var patch hostPatch
		if err := json.Unmarshal(req.Body, &patch); err != nil {
			return &Response{StatusCode: 400, Body: jsonError("invalid request body", 400)}
		}
		host := &models.Host{PingIntervalSeconds: 30, CreatedAt: time.Now(), Status: models.HostStatusUnknown, Enabled: true}
		patch.applyTo(host)
		id, err := deps.Hosts.Insert(ctx, host)
		if err != nil {
			return errResponse(err)
		}
		host.ID = id
		return created(hostToJSON(host))
	}
}

func updateHostHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		id, err := pathInt64(req, "id")
		if err != nil {
			return &Response{StatusCode: 400, Body: jsonError("invalid host id", 400)}
		}
		host, err := deps.Hosts.FindByID(ctx, id)
		if err != nil {
			return errResponse(err)
		}
		var patch hostPatch
		if err := json.Unmarshal(req.Body, &patch); err != nil {
			return &Response{StatusCode: 400, Body: jsonError("invalid request body", 400)}
		}
		patch.applyTo(host)
		if err := deps.Hosts.Update(ctx, host); err != nil {
			return errResponse(err)
		}
		return ok(hostToJSON(host))
	}
}

func deleteHostHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		id, err := pathInt64(req, "id")
		if err != nil {
			return &Response{StatusCode: 400, Body: jsonError("invalid host id", 400)}
		}
		if err := deps.Hosts.Remove(ctx, id); err != nil {
			return errResponse(err)
		}
		return &Response{StatusCode: 200, Body: []byte(`{"deleted":true}`)}
	}
}

func listGroupsHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		groups, err := deps.Groups.FindAll(ctx)
		if err != nil {
			return errResponse(err)
		}
		out := make([]groupJSON, 0, len(groups))
		for _, g := range groups {
			out = append(out, groupToJSON(g))
		}
		return ok(out)
	}
}

func getGroupHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		id, err := pathInt64(req, "id")
		if err != nil {
			return &Response{StatusCode: 400, Body: jsonError("invalid group id", 400)}
		}
		group, err := deps.Groups.FindByID(ctx, id)
		if err != nil {
			return errResponse(err)
		}
		hosts, err := deps.Hosts.FindByGroupID(ctx, &id)
		if err != nil {
			return errResponse(err)
		}
		hostsJSON := make([]hostJSON, 0, len(hosts))
		for _, h := range hosts {
			hostsJSON = append(hostsJSON, hostToJSON(h))
		}
		return ok(groupWithHostsJSON{groupJSON: groupToJSON(group), Hosts: hostsJSON})
	}
}

func createGroupHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			ParentID    *int64 `json:"parentId"`
		}
		if err := json.Unmarshal(req.Body, &body); err != nil {
			return &Response{StatusCode: 400, Body: jsonError("invalid request body", 400)}
		}
		group := &models.HostGroup{Name: body.Name, Description: body.Description, ParentID: body.ParentID, CreatedAt: time.Now()}
		id, err := deps.Groups.Insert(ctx, group)
		if err != nil {
			return errResponse(err)
		}
		group.ID = id
		return created(groupToJSON(group))
	}
}

func deleteGroupHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		id, err := pathInt64(req, "id")
		if err != nil {
			return &Response{StatusCode: 400, Body: jsonError("invalid group id", 400)}
		}
		if err := deps.Groups.Remove(ctx, id); err != nil {
			return errResponse(err)
		}
		return &Response{StatusCode: 200, Body: []byte(`{"deleted":true}`)}
	}
}

func listAlertsHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		filter := models.AlertFilter{SearchText: req.Query["search"]}
		if v, ok := req.Query["severity"]; ok {
			sev := models.AlertSeverity(v)
			filter.Severity = &sev
		}
		if v, ok := req.Query["type"]; ok {
			t := models.AlertType(v)
			filter.Type = &t
		}
		if v, ok := req.Query["acknowledged"]; ok {
			ack := v == "true"
			filter.Acknowledged = &ack
		}
		limit := queryInt(req, "limit", 100)
		alerts, err := deps.Metrics.GetAlertsFiltered(ctx, filter, limit)
		if err != nil {
			return errResponse(err)
		}
		out := make([]alertJSON, 0, len(alerts))
		for _, a := range alerts {
			out = append(out, alertToJSON(a))
		}
		return ok(out)
	}
}

func acknowledgeAlertHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		id := req.PathParams["id"]
		if err := deps.Metrics.AcknowledgeAlert(ctx, id); err != nil {
			return errResponse(err)
		}
		return ok(map[string]bool{"acknowledged": true})
	}
}

func acknowledgeAllHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		n, err := deps.Metrics.AcknowledgeAll(ctx)
		if err != nil {
			return errResponse(err)
		}
		return ok(map[string]int64{"acknowledged": n})
	}
}

func hostMetricsHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		id, err := pathInt64(req, "id")
		if err != nil {
			return &Response{StatusCode: 400, Body: jsonError("invalid host id", 400)}
		}
		limit := queryInt(req, "limit", 100)
		results, err := deps.Metrics.GetPingResults(ctx, id, limit)
		if err != nil {
			return errResponse(err)
		}
		out := make([]pingResultJSON, 0, len(results))
		for _, r := range results {
			out = append(out, pingResultToJSON(r))
		}
		return ok(out)
	}
}

func hostStatisticsHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		id, err := pathInt64(req, "id")
		if err != nil {
			return &Response{StatusCode: 400, Body: jsonError("invalid host id", 400)}
		}
		samples := queryInt(req, "samples", 100)
		stats, err := deps.Metrics.GetStatistics(ctx, id, samples)
		if err != nil {
			return errResponse(err)
		}
		return ok(statisticsToJSON(*stats))
	}
}

func hostExportHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		id, err := pathInt64(req, "id")
		if err != nil {
			return &Response{StatusCode: 400, Body: jsonError("invalid host id", 400)}
		}
		limit := queryInt(req, "limit", 1000)
		format := req.Query["format"]
		if format == "csv" {
			csv, err := deps.Metrics.ExportToCSV(ctx, id, limit)
			if err != nil {
				return errResponse(err)
			}
			return &Response{
				StatusCode: 200,
				Headers: map[string]string{
					"Content-Type":        "text/csv",
					"Content-Disposition": "attachment; filename=\"export.csv\"",
				},
				Body: csv,
			}
		}
		results, err := deps.Metrics.GetPingResults(ctx, id, limit)
		if err != nil {
			return errResponse(err)
		}
		out := make([]pingResultJSON, 0, len(results))
		for _, r := range results {
			out = append(out, pingResultToJSON(r))
		}
		body, _ := json.Marshal(out)
		return &Response{StatusCode: 200, Headers: map[string]string{"Content-Type": "application/json"}, Body: body}
	}
}

func portScansHandler(deps Deps) Handler {
	return func(ctx context.Context, req *Request) *Response {
		address := req.Query["address"]
		if address == "" {
			return &Response{StatusCode: 400, Body: jsonError("address is required", 400)}
		}
		limit := queryInt(req, "limit", 100)
		results, err := deps.Metrics.GetPortScanResults(ctx, address, limit)
		if err != nil {
			return errResponse(err)
		}
		out := make([]portScanResultJSON, 0, len(results))
		for _, r := range results {
			out = append(out, portScanResultToJSON(r))
		}
		return ok(out)
	}
}
