// Command sandbox is the interactive intercept SDK test screen.
//
// Without flags it connects to the intercept service at sdk.endpoint. With
// --standalone it serves a seed catalogue in-process instead.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"intercept-sandbox/internal/api"
	"intercept-sandbox/internal/app/server"
	"intercept-sandbox/internal/config"
	"intercept-sandbox/internal/frequency"
	"intercept-sandbox/internal/i18n"
	"intercept-sandbox/internal/screen"
	"intercept-sandbox/internal/sdk"
	"intercept-sandbox/internal/storage"
	"intercept-sandbox/internal/tui"
)

var version = "dev" // set by the linker

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}

type options struct {
	cfgFile    string
	standalone string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	o := &options{v: viper.New()}
	cmd := &cobra.Command{
		Use:     "sandbox",
		Short:   "Exercise the intercept SDK from a single terminal screen.",
		Version: version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, client, closeLog, err := o.setup(cmd.Context(), "sandbox.log")
			if err != nil {
				return err
			}
			defer closeLog()
			defer client.Wait()
			return tui.Run(cmd.Context(), screenConfig(cfg), client)
		},
	}
	cmd.AddCommand(newCheckCmd(o))

	f := cmd.PersistentFlags()
	f.StringVar(&o.cfgFile, "config", "", "config file (default is ./configs/application.yaml)")
	f.StringVar(&o.standalone, "standalone", "", "serve this seed catalogue in-process instead of using --endpoint")
	f.String("endpoint", "", "intercept service base URL")
	f.String("brand", "", "brand id")
	f.String("project", "", "project (zone) id")
	f.String("intercept", "", "intercept id")
	f.String("lang", "", `UI language ("en", "de")`)

	_ = o.v.BindPFlag("sdk.endpoint", f.Lookup("endpoint"))
	_ = o.v.BindPFlag("sdk.brand_id", f.Lookup("brand"))
	_ = o.v.BindPFlag("sdk.project_id", f.Lookup("project"))
	_ = o.v.BindPFlag("sdk.intercept_id", f.Lookup("intercept"))
	_ = o.v.BindPFlag("sdk.language", f.Lookup("lang"))
	return cmd
}

func newCheckCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Initialize and evaluate once without the UI, printing both statuses.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, client, closeLog, err := o.setup(cmd.Context(), "")
			if err != nil {
				return err
			}
			defer closeLog()
			defer client.Wait()

			out := cmd.OutOrStdout()
			st := screen.Check(cmd.Context(), screenConfig(cfg), client, consoleHost{out})
			fmt.Fprintln(out, st.InitStatus)
			fmt.Fprintln(out, st.DisplayStatus)
			if !st.Initialized {
				return st.Err
			}
			return nil
		},
	}
}

// setup loads config, logging, i18n and builds the SDK client. logFile
// keeps log lines off the terminal the UI draws on; the returned func
// closes it.
func (o *options) setup(ctx context.Context, logFile string) (config.Config, *sdk.Client, func(), error) {
	noop := func() {}
	cfg, err := config.LoadFrom(o.v, o.cfgFile)
	if err != nil {
		return cfg, nil, noop, err
	}
	if cfg.Server.LogFile != "" {
		logFile = cfg.Server.LogFile
	}
	w, closeLog, err := openLog(logFile)
	if err != nil {
		return cfg, nil, noop, err
	}
	config.SetupLogging(cfg.Server.LogLevel, w)
	i18n.Init(cfg.SDK.Language)

	client, err := o.connect(ctx, cfg)
	if err != nil {
		closeLog()
		return cfg, nil, noop, err
	}
	return cfg, client, closeLog, nil
}

// openLog opens path for appending. An empty path logs to stderr.
func openLog(path string) (io.Writer, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() {
		config.SetupLogging(zerolog.GlobalLevel().String(), nil)
		_ = f.Close()
	}, nil
}

// connect resolves the service endpoint, starting the embedded one for
// --standalone, and builds the SDK client.
func (o *options) connect(ctx context.Context, cfg config.Config) (*sdk.Client, error) {
	endpoint := cfg.SDK.Endpoint
	if o.standalone != "" {
		seed, err := storage.LoadSeed(o.standalone)
		if err != nil {
			return nil, err
		}
		var freq api.Capper
		if cfg.Redis.Addr != "" {
			rs, err := frequency.NewRedis(ctx, cfg.Redis.Addr)
			if err != nil {
				return nil, err
			}
			freq = rs
		}
		if endpoint, err = server.Embedded(ctx, seed, freq); err != nil {
			if rs, ok := freq.(*frequency.Redis); ok {
				rs.Close()
			}
			return nil, err
		}
	}
	log.Info().Str("endpoint", endpoint).Str("brand_id", cfg.SDK.BrandID).
		Str("project_id", cfg.SDK.ProjectID).Msg("sandbox starting")

	return sdk.New(endpoint, sdk.WithHTTPClient(&http.Client{Timeout: cfg.SDK.RequestTimeout})), nil
}

func screenConfig(cfg config.Config) screen.Config {
	return screen.Config{
		BrandID:       cfg.SDK.BrandID,
		ProjectID:     cfg.SDK.ProjectID,
		InterceptID:   cfg.SDK.InterceptID,
		PropertyKey:   cfg.SDK.TestPropertyKey,
		PropertyValue: cfg.SDK.TestPropertyValue,
	}
}

// consoleHost prints a displayed intercept; it is always in the foreground.
type consoleHost struct{ w io.Writer }

func (h consoleHost) ForegroundHost() (sdk.Host, bool) { return h, true }

func (h consoleHost) Present(interceptID string, c sdk.Creative) {
	fmt.Fprintf(h.w, "[%s] %s\n", interceptID, c.Headline)
	if c.SurveyURL != "" {
		fmt.Fprintf(h.w, "  %s\n", c.SurveyURL)
	}
}
