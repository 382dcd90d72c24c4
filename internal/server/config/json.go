package config

import (
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// It is filled from the current Config before unmarshalling, so keys missing
// from the file keep their earlier values.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	OTPValidityDuration          timex.Duration `json:"otp_validity_duration"`
	SignupMode                   string         `json:"signup_mode"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	DefaultRole                  string         `json:"default_role"`
	SweepSchedule                string         `json:"sweep_schedule"`
	SessionRetention             timex.Duration `json:"session_retention"`
	GoogleAudiences              []string       `json:"google_audiences"`
	AppleAudiences               []string       `json:"apple_audiences"`
	GoogleJWKSURL                string         `json:"google_jwks_url"`
	AppleJWKSURL                 string         `json:"apple_jwks_url"`
	SMTPAddr                     string         `json:"smtp_addr"`
	SMTPFrom                     string         `json:"smtp_from"`
	SMTPUser                     string         `json:"smtp_user"`
	SMTPPassword                 string         `json:"smtp_password"`
	LogLevel                     string         `json:"log_level"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags, falling
// back to the GOPHAUTH_CONFIG environment variable. If neither is set, no
// JSON file is loaded. If the file cannot be read or contains invalid JSON,
// the function panics.
func parseJson(config *Config) {
	path := flagx.ConfigPath(os.Args[1:], "GOPHAUTH_CONFIG")
	if path == "" {
		return
	}

	c := fromConfig(config)
	if err := flagx.LoadJSON(path, c); err != nil {
		panic(err)
	}

	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	config.OTPValidityDuration = c.OTPValidityDuration.Duration
	config.SignupMode = SignupMode(c.SignupMode)
	config.BcryptCost = c.BcryptCost
	config.DefaultRole = models.Role(c.DefaultRole)
	config.SweepSchedule = c.SweepSchedule
	config.SessionRetention = c.SessionRetention.Duration
	config.GoogleAudiences = c.GoogleAudiences
	config.AppleAudiences = c.AppleAudiences
	config.GoogleJWKSURL = c.GoogleJWKSURL
	config.AppleJWKSURL = c.AppleJWKSURL
	config.SMTPAddr = c.SMTPAddr
	config.SMTPFrom = c.SMTPFrom
	config.SMTPUser = c.SMTPUser
	config.SMTPPassword = c.SMTPPassword
	config.LogLevel = c.LogLevel
}

func fromConfig(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC:             c.EndpointAddrGRPC,
		DatabaseDSN:                  c.DatabaseDSN,
		SecretKey:                    c.SecretKey,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		OTPValidityDuration:          timex.Duration{Duration: c.OTPValidityDuration},
		SignupMode:                   string(c.SignupMode),
		BcryptCost:                   c.BcryptCost,
		DefaultRole:                  string(c.DefaultRole),
		SweepSchedule:                c.SweepSchedule,
		SessionRetention:             timex.Duration{Duration: c.SessionRetention},
		GoogleAudiences:              c.GoogleAudiences,
		AppleAudiences:               c.AppleAudiences,
		GoogleJWKSURL:                c.GoogleJWKSURL,
		AppleJWKSURL:                 c.AppleJWKSURL,
		SMTPAddr:                     c.SMTPAddr,
		SMTPFrom:                     c.SMTPFrom,
		SMTPUser:                     c.SMTPUser,
		SMTPPassword:                 c.SMTPPassword,
		LogLevel:                     c.LogLevel,
	}
}
