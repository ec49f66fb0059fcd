package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		Configure("info", true)
	})
	return &buf
}

func TestLog_RedactsEmails(t *testing.T) {
	buf := capture(t)
	Configure("debug", true)

	Info("profile scored",
		"email", "john.doe@example.com",
		"customer_id", "C-1042",
		"note", "contact ab@example.com",
		"score", 0.75)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "profile scored", entry["msg"])
	assert.Equal(t, RedactEmail("john.doe@example.com"), entry["email"])
	assert.Equal(t, "id~"+Fingerprint("C-1042"), entry["customer_id"])
	assert.Equal(t, "contact "+RedactEmail("ab@example.com"), entry["note"])
	assert.NotContains(t, buf.String(), "john.doe")
	assert.NotContains(t, buf.String(), "C-1042")
	assert.Equal(t, "0.75", entry["score"])
}

func TestLog_LevelFilter(t *testing.T) {
	buf := capture(t)
	Configure("warn", false)

	Info("dropped")
	Warn("kept", "email", "a@x.com")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "a@x.com")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("Warning"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestRedactEmail(t *testing.T) {
	got := RedactEmail("john.doe@example.com")
	assert.Regexp(t, `^j\*\*\*~[0-9a-f]{6}@example\.com$`, got)
	assert.Equal(t, got, RedactEmail("john.doe@example.com"), "stable across calls")
	assert.NotEqual(t, got, RedactEmail("jane.doe@example.com"))
	assert.NotEqual(t, RedactEmail("A@x.com"), RedactEmail("a@x.com"))

	for _, bad := range []string{"not-an-email", "@example.com", "a@", "a@b@c"} {
		assert.Equal(t, "***@***", RedactEmail(bad), bad)
	}
}

func TestRedactPIIValue(t *testing.T) {
	assert.Equal(t, RedactEmail("a@x.com"), redactPIIValue("Email", "a@x.com"))
	assert.Equal(t, "["+RedactEmail("a@x.com")+" "+RedactEmail("b@x.com")+"]",
		redactPIIValue("emails", "[a@x.com b@x.com]"))
	assert.Equal(t, "id~"+Fingerprint("C1"), redactPIIValue("customer_id", "C1"))
	assert.Empty(t, redactPIIValue("customer_id", ""))
	assert.Equal(t, "billing", redactPIIValue("recent_ticket_issue", "billing"))
}
