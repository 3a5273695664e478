// Package featureflags evaluates the FEATURE_FLAGS setting.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Known flags.
const (
	// Markdown renders post bodies as Markdown. When off, bodies are shown as plain text.
	Markdown = "markdown"
	// LiveEvents publishes post activity and serves the /ws subscriber endpoint.
	LiveEvents = "live_events"
)

// flag is one parsed entry. percent is -1 for plain on/off values.
type flag struct {
	raw     string
	on      bool
	percent int
}

// Manager holds flags parsed from a comma-separated key=value list, e.g.
// "markdown=on,live_events=25%".
type Manager struct {
	flags map[string]flag
}

// NewManager parses raw. Malformed pairs and unknown values are ignored.
func NewManager(raw string) *Manager {
	out := make(map[string]flag)

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		f, ok := parseValue(value)
		if !ok {
			continue
		}
		out[key] = f
	}

	return &Manager{flags: out}
}

func parseValue(value string) (flag, bool) {
	switch value {
	case "on", "true", "1":
		return flag{raw: value, on: true, percent: -1}, true
	case "off", "false", "0":
		return flag{raw: value, percent: -1}, true
	}
	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return flag{}, false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil {
		return flag{}, false
	}
	return flag{raw: value, percent: min(max(pct, 0), 100)}, true
}

// On reports whether a flag is enabled for the whole process. Percentage rollouts
// only count when they are at 100%.
func (m *Manager) On(name string) bool {
	return m.Enabled(name, 0)
}

// Enabled reports whether a flag is enabled for userID. A percentage rollout buckets
// users deterministically and never includes anonymous visitors unless it is 100%.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	f, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}
	switch {
	case f.percent < 0:
		return f.on
	case f.percent == 0:
		return false
	case f.percent == 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < f.percent
}

// Raw returns a copy of the configured values.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, f := range m.flags {
		out[k] = f.raw
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
