/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/TomCDN/TuneTimeline/games/timeline"
)

type Config struct {
	adminPassword   string
	bind            string
	defaultPlaylist string
	fetchTimeout    time.Duration
	locale          string
	otelEndpoint    string
	port            int
	prefix          string
	profile         bool
	revealDelay     time.Duration
	sessionTimeout  time.Duration
	targetScore     int
	tlsCert         string
	tlsKey          string
	verbose         bool
	version         bool

	defaultLocale language.Tag
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.targetScore < 1 {
		return fmt.Errorf("invalid target score (must be at least 1): %d", c.targetScore)
	}
	if c.revealDelay < 0 || c.fetchTimeout < 0 || c.sessionTimeout < 0 {
		return errors.New("durations must not be negative")
	}

	tag, err := timeline.ParseLocale(c.locale)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.locale, err)
	}
	c.defaultLocale = tag

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) options() timeline.Options {
	return timeline.Options{
		AdminPassword:   c.adminPassword,
		DefaultPlaylist: c.defaultPlaylist,
		TargetScore:     c.targetScore,
		RevealDelay:     c.revealDelay,
		FetchTimeout:    c.fetchTimeout,
		IdleTimeout:     c.sessionTimeout,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TUNETIMELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "tunetimeline",
		Short:         "A two-team music timeline guessing game, played in the browser.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			if cfg.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.adminPassword, "admin-password", "MASTER", "shared secret for admin login (env: TUNETIMELINE_ADMIN_PASSWORD)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TUNETIMELINE_BIND)")
	fs.StringVar(&cfg.defaultPlaylist, "default-playlist", "https://open.spotify.com/playlist/321iL49aeqqqtKfrQLO91I", "playlist loaded into every new room (env: TUNETIMELINE_DEFAULT_PLAYLIST)")
	fs.DurationVar(&cfg.fetchTimeout, "fetch-timeout", 15*time.Second, "time allowed for a playlist fetch (env: TUNETIMELINE_FETCH_TIMEOUT)")
	fs.StringVar(&cfg.locale, "locale", "nl", "default language for error messages (env: TUNETIMELINE_LOCALE)")
	fs.StringVar(&cfg.otelEndpoint, "otel-endpoint", "", "OTLP/HTTP endpoint for traces, empty to disable (env: TUNETIMELINE_OTEL_ENDPOINT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TUNETIMELINE_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TUNETIMELINE_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TUNETIMELINE_PROFILE)")
	fs.DurationVar(&cfg.revealDelay, "reveal-delay", 1500*time.Millisecond, "pause between a challenge and its reveal (env: TUNETIMELINE_REVEAL_DELAY)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are closed, 0 to disable (env: TUNETIMELINE_SESSION_TIMEOUT)")
	fs.IntVar(&cfg.targetScore, "target-score", timeline.DefaultTargetScore, "score needed to win a game (env: TUNETIMELINE_TARGET_SCORE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TUNETIMELINE_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TUNETIMELINE_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TUNETIMELINE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TUNETIMELINE_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("tunetimeline v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
