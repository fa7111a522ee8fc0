package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Key layout.
const (
	appPrefix       = "app/"
	intentionPrefix = "intention/"
	QuotaKey        = "quota"
)

// AppKey is the key of an app's phase entry.
func AppKey(appID string) string { return appPrefix + appID }

// IntentionKey is the key of an app's intention timer.
func IntentionKey(appID string) string { return intentionPrefix + appID }

// EntryRecord is the persisted form of a per-app entry.
type EntryRecord struct {
	Phase     string     `json:"phase"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// IntentionRecord is the persisted form of an intention timer.
type IntentionRecord struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// QuotaRecord is the persisted global quota. A nil Remaining means the
// field was never written and the quota is full.
type QuotaRecord struct {
	Remaining   *int       `json:"remaining,omitempty"`
	WindowStart *time.Time `json:"windowStart,omitempty"`
}

// Encode serializes a record.
func Encode(v any) ([]byte, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// Decode deserializes a record. Unknown fields are ignored.
func Decode(data []byte, v any) error {
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// State is the decoded content of a store.
type State struct {
	Entries    map[string]EntryRecord
	Intentions map[string]IntentionRecord
	Quota      QuotaRecord
	// Discarded lists keys whose values could not be decoded or whose
	// key is not part of the layout.
	Discarded []string
}

// DecodeState decodes raw store content, skipping anything it cannot read.
func DecodeState(raw map[string][]byte) State {
	st := State{
		Entries:    make(map[string]EntryRecord),
		Intentions: make(map[string]IntentionRecord),
	}
	for key, value := range raw {
		switch {
		case key == QuotaKey:
			var q QuotaRecord
			if err := Decode(value, &q); err != nil {
				st.Discarded = append(st.Discarded, key)
				continue
			}
			st.Quota = q
		case strings.HasPrefix(key, appPrefix) && len(key) > len(appPrefix):
			var e EntryRecord
			if err := Decode(value, &e); err != nil {
				st.Discarded = append(st.Discarded, key)
				continue
			}
			st.Entries[strings.TrimPrefix(key, appPrefix)] = e
		case strings.HasPrefix(key, intentionPrefix) && len(key) > len(intentionPrefix):
			var i IntentionRecord
			if err := Decode(value, &i); err != nil || i.ExpiresAt.IsZero() {
				st.Discarded = append(st.Discarded, key)
				continue
			}
			st.Intentions[strings.TrimPrefix(key, intentionPrefix)] = i
		default:
			st.Discarded = append(st.Discarded, key)
		}
	}
	return st
}
