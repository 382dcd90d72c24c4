package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	// Test cases
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "memory", "-s", "secret",
			"-t", "5", "-r", "60", "-o", "2", "-m", "deferred", "-k", "10", "-l", "trainer",
			"-w", "*/30 * * * * *", "-x", "48", "-g", "web, ios", "-p", "com.app", "-v", "debug",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrGRPC:             "127.0.0.1:9090",
				DatabaseDSN:                  "memory",
				SecretKey:                    "secret",
				AccessTokenValidityDuration:  5 * time.Minute,
				RefreshTokenValidityDuration: time.Hour,
				OTPValidityDuration:          2 * time.Minute,
				SignupMode:                   SignupDeferred,
				BcryptCost:                   10,
				DefaultRole:                  models.RoleTrainer,
				SweepSchedule:                "*/30 * * * * *",
				SessionRetention:             48 * time.Hour,
				GoogleAudiences:              []string{"web", "ios"},
				AppleAudiences:               []string{"com.app"},
				LogLevel:                     "debug",
			}},
		{name: "foreign flags are ignored", args: []string{"cmd", "-c", "cfg.json", "-z", "1", "-a", ":1"},
			expected: &Config{EndpointAddrGRPC: ":1"}},
		{name: "bad int panics", args: []string{"cmd", "-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {

				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
}
