package cmd

import (
	"io"

	log "github.com/inconshreveable/log15"
	"github.com/puppetlabs/relay-notify/pkg/notify/opt"
	"github.com/spf13/cobra"
)

func NewRootCommand() (*cobra.Command, error) {
	c := &cobra.Command{
		Use:           "relay-notify",
		Short:         "Report exceptions to an error-tracking API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c.PersistentFlags().Bool("debug", false, "write debug-level log records")

	c.AddCommand(NewServeCommand())
	c.AddCommand(NewEmitCommand())

	return c, nil
}

// loadConfig reads the configuration and points the root logger at the
// command's error stream.
func loadConfig(cmd *cobra.Command) (*opt.Config, error) {
	cfg, err := opt.NewConfig()
	if err != nil {
		return nil, err
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}

	configureLogging(cmd.ErrOrStderr(), cfg.Debug)

	return cfg, nil
}

func configureLogging(w io.Writer, debug bool) {
	lvl := log.LvlInfo
	if debug {
		lvl = log.LvlDebug
	}

	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(w, log.LogfmtFormat())))
}
