package esign

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// logTime layouts observed in provider audit trails. The provider is not
// consistent about fractional seconds.
var logTimeLayouts = []string{
	"2006-01-02T15:04:05.9999999Z07:00",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// FormatAuditEvent normalizes a raw provider audit event into an AuditEntry.
// The provider does not assign a stable event id on every account tier, so
// when the EventId field is absent the id is derived deterministically from
// the envelope id, actor, action and log time; re-fetching the same trail
// yields the same ids either way.
func FormatAuditEvent(envelopeID string, raw RawAuditEvent) (AuditEntry, error) {
	fields := make(map[string]string, len(raw.EventFields))
	for _, f := range raw.EventFields {
		fields[f.Name] = f.Value
	}

	action := Action(fields["Action"])
	if action == "" {
		return AuditEntry{}, fmt.Errorf("esign: audit event for envelope %s missing Action field", envelopeID)
	}

	logTime, err := ParseLogTime(fields["logTime"])
	if err != nil {
		return AuditEntry{}, fmt.Errorf("esign: audit event for envelope %s: %w", envelopeID, err)
	}

	entry := AuditEntry{
		ID:      fields["EventId"],
		Action:  action,
		UserID:  fields["UserId"],
		LogTime: logTime,
	}
	if entry.ID == "" {
		sum := sha256.Sum256([]byte(envelopeID + "|" + entry.UserID + "|" + string(action) + "|" + fields["logTime"]))
		entry.ID = hex.EncodeToString(sum[:16])
	}
	return entry, nil
}

// ParseLogTime parses the provider's audit timestamp, tolerating the layout
// drift between API versions.
func ParseLogTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("esign: empty logTime")
	}
	for _, layout := range logTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("esign: unparseable logTime %q", value)
}
