package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchOperations(t *testing.T) {
	b := NewBatch()
	assert.True(t, b.Empty())

	b.Put("a", []byte("1"))
	b.Delete("b")
	b.Delete("b")
	assert.Equal(t, []string{"a", "b"}, b.Keys())

	b.Delete("a")
	assert.Empty(t, b.Puts)
	assert.ElementsMatch(t, []string{"a", "b"}, b.Deletes)

	b.Put("b", []byte("2"))
	assert.Equal(t, []string{"a"}, b.Deletes)
	assert.Equal(t, []byte("2"), b.Puts["b"])
}

func TestBatchMergeLaterWins(t *testing.T) {
	dirty := NewBatch()
	dirty.Put("app/x", []byte("old"))
	dirty.Put("quota", []byte("q"))

	next := NewBatch()
	next.Delete("app/x")

	dirty.Merge(next)
	assert.Equal(t, []string{"app/x"}, dirty.Deletes)
	assert.Equal(t, []byte("q"), dirty.Puts["quota"])
	assert.NotContains(t, dirty.Puts, "app/x")
}

func TestDecodeStateTolerant(t *testing.T) {
	raw := map[string][]byte{
		"app/com.a":       []byte(`{"phase":"ACTIVE","expiresAt":"2026-01-01T10:00:00Z","extra":true}`),
		"app/com.b":       []byte(`{not json`),
		"app/com.c":       []byte(`{}`),
		"intention/com.a": []byte(`{"expiresAt":"2026-01-01T11:00:00Z"}`),
		"intention/com.d": []byte(`{}`),
		"quota":           []byte(`{"remaining":2,"future":"field"}`),
		"unknown/thing":   []byte(`{}`),
	}

	st := DecodeState(raw)

	require.Contains(t, st.Entries, "com.a")
	assert.Equal(t, "ACTIVE", st.Entries["com.a"].Phase)
	require.NotNil(t, st.Entries["com.a"].ExpiresAt)
	assert.True(t, st.Entries["com.a"].ExpiresAt.Equal(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)))

	assert.Equal(t, "", st.Entries["com.c"].Phase)
	assert.NotContains(t, st.Entries, "com.b")

	assert.Contains(t, st.Intentions, "com.a")
	assert.NotContains(t, st.Intentions, "com.d")

	require.NotNil(t, st.Quota.Remaining)
	assert.Equal(t, 2, *st.Quota.Remaining)

	assert.ElementsMatch(t, []string{"app/com.b", "intention/com.d", "unknown/thing"}, st.Discarded)
}

func TestDecodeStateMissingQuota(t *testing.T) {
	st := DecodeState(map[string][]byte{"quota": []byte(`{}`)})
	assert.Nil(t, st.Quota.Remaining)

	st = DecodeState(nil)
	assert.Nil(t, st.Quota.Remaining)
	assert.Empty(t, st.Entries)
}

func TestEncodeRoundTripKeys(t *testing.T) {
	assert.Equal(t, "app/com.x", AppKey("com.x"))
	assert.Equal(t, "intention/com.x", IntentionKey("com.x"))

	exp := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	data, err := Encode(EntryRecord{Phase: "ACTIVE", ExpiresAt: &exp})
	require.NoError(t, err)

	st := DecodeState(map[string][]byte{AppKey("com.x"): data})
	require.NotNil(t, st.Entries["com.x"].ExpiresAt)
	assert.True(t, exp.Equal(*st.Entries["com.x"].ExpiresAt))
}
