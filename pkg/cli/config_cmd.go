package cli

import (
	"io"

	"github.com/spf13/cobra"

	"mdms/internal/service/metadata"
)

// effectiveConfig is the configuration shown by "config show".
type effectiveConfig struct {
	DB             string            `json:"db" yaml:"db"`
	ListenAddr     string            `json:"listen_addr" yaml:"listen_addr"`
	LogLevel       string            `json:"log_level" yaml:"log_level"`
	CacheSize      int               `json:"cache_size" yaml:"cache_size"`
	BatchSize      int               `json:"batch_size" yaml:"batch_size"`
	RateLimitRPS   float64           `json:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int               `json:"rate_limit_burst" yaml:"rate_limit_burst"`
	Store          map[string]string `json:"store" yaml:"store"`
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration and the store settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				settings, err := store.Settings(cmd.Context())
				if err != nil {
					return err
				}
				if a.output == "table" || a.output == "" {
					return a.render(out, nil, []string{"key", "value"}, settingsRows(settings))
				}
				return a.render(out, effectiveConfig{
					DB:             a.dbPath,
					ListenAddr:     a.cfg.ListenAddr,
					LogLevel:       a.logLevel,
					CacheSize:      a.cfg.CacheSize,
					BatchSize:      a.cfg.BatchSize,
					RateLimitRPS:   a.cfg.RateLimitRPS,
					RateLimitBurst: a.cfg.RateLimitBurst,
					Store:          settings,
				}, nil, nil)
			})
		},
	})
	return cmd
}
