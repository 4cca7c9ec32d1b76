// Package channel holds the front-end adapters (CLI, Telegram, Discord,
// WebSocket) and the manager that routes outbound replies back to them.
package channel

import "strings"

// Allowlist restricts which sender IDs may talk to the assistant. An empty
// list allows everyone.
type Allowlist struct {
	ids map[string]struct{}
}

func NewAllowlist(ids []string) *Allowlist {
	a := &Allowlist{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			a.ids[id] = struct{}{}
		}
	}
	return a
}

func (a *Allowlist) Allowed(senderID string) bool {
	if len(a.ids) == 0 {
		return true
	}
	_, ok := a.ids[senderID]
	return ok
}
