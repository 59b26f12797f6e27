package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vegasq/objql/internal/config"
	"github.com/vegasq/objql/internal/viewstore"
	"github.com/vegasq/objql/memory"
	"github.com/vegasq/objql/output"
	"github.com/vegasq/objql/query"
	"github.com/vegasq/objql/reader"
)

// demoSchema is where the demo tables live when a data directory is served
const demoSchema = "demo"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	DataDir    string
	Format     string
	Locale     string
	LogLevel   string
	ViewStore  string
	Params     []string

	cfg *config.Config
}

// NewRootCommand creates the root command for the objq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "objq",
		Short: "objq - query objects with SQL",
		Long: `Run SQL-like queries over directories of parquet files and in-memory tables.

Without --data the demo tables Test and Users are the default schema. With
--data every <name>.parquet file in the directory is a table and the demo
tables move to the "demo" schema.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "configuration file (default objq.yaml or $"+config.EnvConfigFile+")")
	flags.StringVarP(&opts.DataDir, "data", "d", "", "directory of parquet tables")
	flags.StringVarP(&opts.Format, "format", "f", "", "output format ("+strings.Join(output.Formats, "|")+")")
	flags.StringVar(&opts.Locale, "locale", "", "collation locale")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.ViewStore, "views", "", "file views are stored in")
	flags.StringArrayVarP(&opts.Params, "param", "p", nil, "query parameter name=value, repeatable")

	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))

	return cmd
}

// load reads the configuration and applies flags set on the command line
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir = o.DataDir
	}
	if flags.Changed("format") {
		cfg.Format = o.Format
	}
	if flags.Changed("locale") {
		cfg.Locale = o.Locale
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if flags.Changed("views") {
		cfg.ViewStore = o.ViewStore
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// engine builds a query engine from the loaded configuration
func (o *RootOptions) engine(ctx context.Context, cmd *cobra.Command) (*query.Engine, error) {
	cfg := o.cfg
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()}))

	opts := []query.Option{
		query.WithLocale(cfg.Locale),
		query.WithLogger(logger),
		query.WithMaxDepth(cfg.MaxDepth),
		query.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	}
	demo := memory.Demo(memory.WithLogger(logger))
	if cfg.DataDir != "" {
		opts = append(opts,
			query.WithProvider("", reader.NewProvider(cfg.DataDir, reader.WithLogger(logger))),
			query.WithProvider(demoSchema, demo))
	} else {
		opts = append(opts, query.WithProvider("", demo))
	}
	if p := cfg.ViewStorePath(); p != "" {
		opts = append(opts, query.WithViewStore(viewstore.New(p)))
	}
	return query.NewEngine(ctx, opts...)
}

// formatter returns the configured output formatter writing to cmd's output
func (o *RootOptions) formatter(cmd *cobra.Command) (output.Formatter, error) {
	return output.New(o.cfg.Format, cmd.OutOrStdout())
}

// params parses the --param flags. Values that read as numbers or booleans
// bind as such; everything else binds as a string.
func (o *RootOptions) params() (map[string]interface{}, error) {
	if len(o.Params) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(o.Params))
	for _, p := range o.Params {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q: want name=value", p)
		}
		out[name] = paramValue(value)
	}
	return out, nil
}

func paramValue(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// run executes sql and writes the result in the configured format
func (o *RootOptions) run(cmd *cobra.Command, sql string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	params, err := o.params()
	if err != nil {
		return err
	}
	formatter, err := o.formatter(cmd)
	if err != nil {
		return err
	}
	e, err := o.engine(ctx, cmd)
	if err != nil {
		return err
	}
	rows, err := e.Query(ctx, sql, params)
	if err != nil {
		return err
	}
	return formatter.Format(rows)
}
