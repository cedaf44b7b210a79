package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/liorwn/openclaw-cloudflare/internal/audit"
)

// Device is one gateway pairing entry.
type Device struct {
	RequestID string `json:"requestId"`
}

// DeviceList is the gateway's pairing state.
type DeviceList struct {
	Pending []Device `json:"pending"`
	Paired  []Device `json:"paired"`
}

// ApproveResult reports a batch approval.
type ApproveResult struct {
	Approved []string `json:"approved"`
	Failed   []string `json:"failed,omitempty"`
}

// ListDevices asks the gateway CLI for pending and paired devices. The CLI
// prints free-form text around one JSON object; extraction tolerates that.
func (f *Facade) ListDevices(ctx context.Context) (DeviceList, error) {
	ctx, cancel := context.WithTimeout(ctx, listDevicesTimeout)
	defer cancel()

	if _, err := f.sup.EnsureRunning(ctx); err != nil {
		return DeviceList{}, err
	}

	out := f.run.Run(ctx, f.cfg.GatewayCLI+" devices list --json", listDevicesTimeout)
	payload, ok := extractJSON(out)
	if !ok {
		return DeviceList{}, fmt.Errorf("no device payload in gateway output")
	}

	var list DeviceList
	if err := json.Unmarshal([]byte(payload), &list); err != nil {
		return DeviceList{}, fmt.Errorf("decode device payload: %w", err)
	}
	return list, nil
}

// ApprovePending approves every pending device, one at a time. Approvals go
// over a single logical channel into the gateway, so the batch is strictly
// sequential. A failed approval does not stop the rest of the batch.
func (f *Facade) ApprovePending(ctx context.Context) (ApproveResult, error) {
	list, err := f.ListDevices(ctx)
	if err != nil {
		return ApproveResult{}, err
	}

	ids := make([]string, 0, len(list.Pending))
	for _, d := range list.Pending {
		ids = append(ids, d.RequestID)
	}
	return f.ApproveDevices(ctx, ids)
}

// ApproveDevices approves the given pairing requests sequentially.
func (f *Facade) ApproveDevices(ctx context.Context, ids []string) (ApproveResult, error) {
	ctx, cancel := context.WithTimeout(ctx, approveTimeout)
	defer cancel()

	if _, err := f.sup.EnsureRunning(ctx); err != nil {
		return ApproveResult{}, err
	}

	var res ApproveResult
	for _, id := range ids {
		out := f.run.Run(ctx, fmt.Sprintf("%s devices approve %s", f.cfg.GatewayCLI, id), approveTimeout)
		if approved(out) {
			res.Approved = append(res.Approved, id)
		} else {
			f.logger.Warn("device approval not confirmed", "request_id", id)
			res.Failed = append(res.Failed, id)
		}
	}

	audit.Emit(ctx, f.sink, audit.Event{
		Type:    audit.EventDeviceApprove,
		Success: len(res.Failed) == 0,
		Files:   len(res.Approved),
	})
	return res, nil
}

// approved is the success signal for one approval: a case-insensitive
// "approved" substring. Fragile but intentional, to survive format drift in
// the gateway CLI output.
func approved(out string) bool {
	return strings.Contains(strings.ToLower(out), "approved")
}

// extractJSON returns the first balanced {...} span in free-form text. This
// is the single place gateway CLI output is parsed; everything downstream
// gets either a well-formed candidate or a clean miss.
func extractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
