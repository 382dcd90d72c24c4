package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN, or "memory"
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-o int      otp validity, minutes
//	-m string   signup mode: password | deferred
//	-k int      bcrypt cost
//	-l string   default role for signup and social login
//	-w string   sweep cron spec (with seconds)
//	-x int      revoked session retention, hours
//	-g string   comma separated Google client ids
//	-p string   comma separated Apple client ids
//	-v string   log level
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-r", "-o", "-m", "-k", "-l", "-w", "-x", "-g", "-p", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")
	otpValidityDuration := fs.Int("o", int(config.OTPValidityDuration.Minutes()), "otp_validity_duration (in minutes)")

	signupMode := fs.String("m", string(config.SignupMode), "signup mode (password|deferred)")
	fs.IntVar(&config.BcryptCost, "k", config.BcryptCost, "bcrypt cost")
	defaultRole := fs.String("l", string(config.DefaultRole), "default role")
	fs.StringVar(&config.SweepSchedule, "w", config.SweepSchedule, "session sweep cron spec")
	retention := fs.Int("x", int(config.SessionRetention.Hours()), "revoked session retention (in hours)")

	google := fs.String("g", strings.Join(config.GoogleAudiences, ","), "google client ids")
	apple := fs.String("p", strings.Join(config.AppleAudiences, ","), "apple client ids")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.OTPValidityDuration = time.Duration(*otpValidityDuration) * time.Minute
	config.SignupMode = SignupMode(*signupMode)
	config.DefaultRole = models.Role(*defaultRole)
	config.SessionRetention = time.Duration(*retention) * time.Hour
	config.GoogleAudiences = splitList(*google)
	config.AppleAudiences = splitList(*apple)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
