package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Cyberappy/Hayabusa-setup/internal/prefilter"
	"github.com/Cyberappy/Hayabusa-setup/internal/rules"
	"github.com/Cyberappy/Hayabusa-setup/internal/store"
	"github.com/Cyberappy/Hayabusa-setup/pkg/hayabusa"
)

type convertOptions struct {
	outDir     string
	toStdout   bool
	keywords   []string
	ignoreCase bool
	dsn        string
	migrations string
	logFile    string
	verbose    bool
}

func newConvertCommand() *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <rules-dir>",
		Short: "Convert every Sigma rule under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "./hayabusa_rules", "output directory for converted rules")
	cmd.Flags().BoolVar(&opts.toStdout, "stdout", false, "print converted rules to stdout instead of writing files")
	cmd.Flags().StringSliceVar(&opts.keywords, "grep", nil, "only convert rules whose source mentions one of these keywords")
	cmd.Flags().BoolVar(&opts.ignoreCase, "ignore-case", false, "case-insensitive keyword matching")
	cmd.Flags().StringVar(&opts.dsn, "dsn", os.Getenv("HAYABUSA_DB_DSN"), "Postgres DSN to store conversion results (optional)")
	cmd.Flags().StringVar(&opts.migrations, "migrations", "", "directory of .sql migrations to run instead of the built-in schema")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "also write logs to this rotating file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func runConvert(rulesDir string, opts *convertOptions) error {
	log := newLogger(opts.verbose, opts.logFile)
	defer log.Sync()

	var filter *prefilter.Matcher
	if len(opts.keywords) > 0 {
		m, err := prefilter.New(opts.keywords, opts.ignoreCase)
		if err != nil {
			return err
		}
		filter = m
	}

	loaded, skipped, err := rules.LoadDirRecursive(rulesDir)
	if err != nil {
		return fmt.Errorf("load rules from %s: %w", rulesDir, err)
	}
	for _, s := range skipped {
		log.Warn("skipping unparseable rule file", zap.String("path", s.Path), zap.Error(s.Err))
	}

	var st *store.Store
	if opts.dsn != "" {
		st, err = store.Open(opts.dsn, log)
		if err != nil {
			return err
		}
		defer st.Close()
		if opts.migrations != "" {
			err = st.RunMigrations(opts.migrations)
		} else {
			err = st.InitSchema(context.Background())
		}
		if err != nil {
			return err
		}
	}

	backend := hayabusa.New(hayabusa.DefaultOptions())
	converted, failed, filtered := 0, 0, 0

	for _, l := range loaded {
		if filter != nil && !filter.Match(string(l.Raw)) {
			filtered++
			continue
		}

		out, err := backend.Convert(l.Rule)
		if err != nil {
			failed++
			log.Warn("conversion failed", zap.String("path", l.Path), zap.Error(err))
			continue
		}

		if opts.toStdout {
			fmt.Printf("%s---\n", out)
		} else {
			dest := filepath.Join(opts.outDir, outputName(rulesDir, l.Path))
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(dest, out, 0o644); err != nil {
				return err
			}
			log.Debug("wrote converted rule", zap.String("path", dest))
		}

		if st != nil {
			row := store.Converted{
				UID:    l.Rule.ID,
				Title:  l.Rule.Title,
				Level:  l.Rule.Level,
				Output: string(out),
			}
			if err := st.Upsert(context.Background(), row); err != nil {
				return err
			}
		}
		converted++
	}

	log.Info("conversion finished",
		zap.Int("converted", converted),
		zap.Int("failed", failed),
		zap.Int("filtered", filtered),
		zap.Int("skipped", len(skipped)),
	)
	if converted == 0 {
		return fmt.Errorf("no rules converted from %s", rulesDir)
	}
	return nil
}

// outputName keeps the source layout below the rules root, normalizing the
// extension to .yml.
func outputName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	ext := filepath.Ext(rel)
	return strings.TrimSuffix(rel, ext) + ".yml"
}
