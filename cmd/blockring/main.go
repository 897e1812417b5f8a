package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	brb "github.com/sushydev/block_ring_buffer_go"
)

type runOptions struct {
	capacity         string
	configPath       string
	missingKeyPolicy string
	logLevel         string
	locking          bool
}

func addRunFlags(flags *pflag.FlagSet, o *runOptions) {
	flags.StringVar(&o.capacity, "capacity", "", "buffer capacity, e.g. 18, 18B or 64KiB (overrides the config file)")
	flags.StringVarP(&o.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&o.missingKeyPolicy, "missing-key-policy", "", "delete of an unknown key: not_found or ignore")
	flags.StringVar(&o.logLevel, "log-level", "info", "set log level to one of: debug, info, warn, error")
	flags.BoolVar(&o.locking, "locking", false, "wrap the buffer in a mutex")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zapcfg := zap.NewProductionConfig()
	zapcfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	zapcfg.Encoding = "console"
	zapcfg.Level = zap.NewAtomicLevelAt(lvl)
	zapcfg.OutputPaths = []string{"stderr"}

	return zapcfg.Build()
}

func loadConfig(o *runOptions) (brb.Config, error) {
	cfg := brb.DefaultConfig()
	if o.configPath != "" {
		loaded, err := brb.LoadConfig(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if o.capacity != "" {
		n, err := humanize.ParseBytes(o.capacity)
		if err != nil {
			return cfg, errors.Wrapf(err, "invalid --capacity %q", o.capacity)
		}
		cfg.Capacity = brb.ByteSize(n)
	}
	if o.missingKeyPolicy != "" {
		cfg.MissingKeyPolicy = o.missingKeyPolicy
	}

	return cfg, cfg.Validate()
}

func newBuffer(cfg brb.Config, locking bool, logger *zap.Logger) (brb.BlockBufferInterface, error) {
	policy, err := brb.ParseMissingKeyPolicy(cfg.MissingKeyPolicy)
	if err != nil {
		return nil, err
	}

	opts := []brb.Option{brb.WithLogger(logger), brb.WithMissingKeyPolicy(policy)}
	if locking {
		return brb.NewLockingBufferManager(int64(cfg.Capacity), opts...)
	}

	return brb.NewFromConfig(cfg, opts...)
}

func newRunCommand() *cobra.Command {
	var o runOptions

	cmd := &cobra.Command{
		Use:   "run [script]",
		Short: "Replay a block command script against a new buffer",
		Long: `Replay a block command script against a new buffer.

The script is read from the named file, or from stdin when omitted. One
command per line:

  add <key> <data>    add a block ("quoted" data may use Go escapes)
  addhash <data>      add a block keyed by its content hash
  del <key>           mark a block for deletion
  get <key>           print one block
  compact             reclaim delete-pending blocks
  flush               compact and print every live byte
  stats               print capacity, free and used bytes
  layout              print every block with offset and size

Lines starting with # are ignored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(o.logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := loadConfig(&o)
			if err != nil {
				return err
			}

			buffer, err := newBuffer(cfg, o.locking, logger)
			if err != nil {
				return err
			}
			defer buffer.Close()

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			logger.Info("buffer ready",
				zap.Stringer("capacity", cfg.Capacity),
				zap.String("missing_key_policy", cfg.MissingKeyPolicy),
			)

			return runScript(buffer, in, cmd.OutOrStdout(), logger)
		},
	}
	addRunFlags(cmd.Flags(), &o)

	return cmd
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "blockring",
		Short:         "Keyed variable-size blocks in a fixed-capacity ring buffer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand())

	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
