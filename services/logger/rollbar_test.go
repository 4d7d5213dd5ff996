package logsvc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/user"
)

func TestRollbarLogger_local(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Debug = true

	tests := []struct {
		name  string
		log   func(l *RollbarLogger)
		level string
		check func(t *testing.T, entry map[string]interface{})
	}{
		{
			name:  "debug",
			log:   func(l *RollbarLogger) { l.Debug("hello") },
			level: "debug",
		},
		{
			name:  "error with err",
			log:   func(l *RollbarLogger) { l.Error("boom", errors.New("kaput")) },
			level: "error",
			check: func(t *testing.T, entry map[string]interface{}) {
				assert.Equal(t, "kaput", entry["error"])
				assert.Contains(t, entry["trace"], "kaput")
			},
		},
		{
			name: "warn with user & fields",
			log: func(l *RollbarLogger) {
				l.Warn("careful", user.User{ID: "u1", Username: "jdoe"}, map[string]interface{}{"path": "/v1/series"})
			},
			level: "warn",
			check: func(t *testing.T, entry map[string]interface{}) {
				assert.Equal(t, "u1", entry["user_id"])
				assert.Equal(t, "jdoe", entry["username"])
				assert.Equal(t, "/v1/series", entry["path"])
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			tt.log(NewRollbarLogger(buf, conf))

			entry := make(map[string]interface{})
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, conf.AppName, entry["app"])
			if tt.check != nil {
				tt.check(t, entry)
			}
		})
	}
}

func TestRollbarLogger_level(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Debug = false

	buf := new(bytes.Buffer)
	NewRollbarLogger(buf, conf).Debug("hidden")
	assert.Empty(t, buf.String())
}
