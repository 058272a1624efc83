package srp_test

import (
	"sync"
	"testing"

	"github.com/fzdarsky/srpgate/pkg/srp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
	fields   []map[string]any
}

func (l *recordingLogger) Warn(msg string, fields ...map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
	if len(fields) > 0 {
		l.fields = append(l.fields, fields[0])
	}
}

func TestSetLogger_WarnsOnShortSecret(t *testing.T) {
	rec := &recordingLogger{}
	srp.SetLogger(rec)
	t.Cleanup(func() { srp.SetLogger(nil) })

	g := srp.MustLookup(1024, "sha1")

	_, err := srp.ClientPublic(g, []byte{0x42})
	require.NoError(t, err)

	require.Len(t, rec.messages, 1)
	assert.Contains(t, rec.messages[0], "below recommended size")
	assert.Equal(t, 7, rec.fields[0]["bits"])
	assert.Equal(t, srp.MinSecretBits, rec.fields[0]["recommended"])

	_, err = srp.ClientPublic(g, randomSecret(t))
	require.NoError(t, err)
	assert.Len(t, rec.messages, 1, "full-size secrets must not warn")
}
