package config

import (
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields tell an absent key from an empty one.
type JsonConfig struct {
	ServerEndpointAddr *string         `json:"server_endpoint_addr"`
	RequestTimeout     *timex.Duration `json:"request_timeout"`
	StateFile          *string         `json:"state_file"`
}

// parseJson overlays Config with values from the JSON file named by -c or
// -config, or by AUTHCTL_CONFIG. Keys missing from the file keep their
// current values. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath(os.Args[1:], "AUTHCTL_CONFIG")
	if path == "" {
		return
	}

	var jc JsonConfig
	if err := flagx.LoadJSON(path, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != nil {
		cfg.ServerEndpointAddr = *jc.ServerEndpointAddr
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.StateFile != nil {
		cfg.StateFile = *jc.StateFile
	}
}
