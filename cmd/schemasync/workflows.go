package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/kadirbelkuyu/schemasync/internal/app"
	"github.com/kadirbelkuyu/schemasync/internal/apply"
	"github.com/kadirbelkuyu/schemasync/internal/archive"
	"github.com/kadirbelkuyu/schemasync/internal/catalog"
	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/objectstore"
	"github.com/kadirbelkuyu/schemasync/internal/profiles"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
	"github.com/kadirbelkuyu/schemasync/internal/ui/explorer"
	"github.com/kadirbelkuyu/schemasync/pkg/interactive"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
	"github.com/kadirbelkuyu/schemasync/pkg/progress"
)

// Logs go to stderr so json and yaml output on stdout stays parseable.
func newLogger() *logger.Logger {
	return logger.NewLoggerWithOutput(os.Stderr, verbose)
}

// newProfileManager keeps profiles in object storage when SCHEMASYNC_S3_*
// is configured and in a YAML file otherwise.
func newProfileManager(log *logger.Logger) (*profiles.Manager, error) {
	if cfg, ok := objectstore.ConfigFromEnv(); ok {
		client, err := objectstore.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("cannot open profile bucket: %w", err)
		}
		store := profiles.NewObjectStore(client, cfg.Bucket, os.Getenv("SCHEMASYNC_PROFILES_KEY"))
		return profiles.NewManager(store, log), nil
	}
	return profiles.NewManager(profiles.NewFileStore(profilesFile), log), nil
}

// newService builds the workflow service. When liveSides is positive each
// inspection phase advances a bar on stderr.
func newService(log *logger.Logger, liveSides int) *app.Service {
	opts := []catalog.Option{catalog.WithLogger(log)}
	if liveSides > 0 {
		opts = append(opts, catalog.WithProgress(phaseProgress(liveSides*len(catalog.Phases))))
	}
	return app.NewService(catalog.NewReader(opts...), log, app.WithParallel(parallel))
}

func phaseProgress(total int) catalog.ProgressFunc {
	bar := progress.NewBar(os.Stderr, int64(total), "Inspecting")
	var (
		mu   sync.Mutex
		done int
	)
	return func(phase catalog.Phase, _, _ int) {
		mu.Lock()
		defer mu.Unlock()
		done++
		bar.Step(string(phase), done)
	}
}

// progressSides counts the live sources when text output leaves room for a bar.
func progressSides(sources ...app.Source) int {
	if !textOutput() {
		return 0
	}
	n := 0
	for _, src := range sources {
		if src.Config != nil {
			n++
		}
	}
	return n
}

func textOutput() bool {
	return strings.EqualFold(outputFormat, "text") || outputFormat == ""
}

// writeStructured prints v as json or yaml.
func writeStructured(w io.Writer, v any) error {
	data, err := schema.Marshal(v, schema.Format(strings.ToLower(outputFormat)))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// resolveSources picks each side from its snapshot flag, then its config
// flag, then the named profile. Without any of them the user picks a saved
// profile interactively.
func resolveSources(ctx context.Context, manager *profiles.Manager) (app.Source, app.Source, error) {
	var pair *profiles.Pair
	needProfile := (db1SnapshotPath == "" && db1ConfigPath == "") || (db2SnapshotPath == "" && db2ConfigPath == "")

	if needProfile {
		name := profileName
		if name == "" {
			list, err := manager.List(ctx)
			if err != nil {
				return app.Source{}, app.Source{}, err
			}
			if len(list) == 0 {
				return app.Source{}, app.Source{}, errs.New(errs.ErrKindConfiguration,
					"no databases given: use --profile, --db1-config/--db2-config or --db1-snapshot/--db2-snapshot")
			}
			selected, err := interactive.NewProfileSelector(os.Stdin, os.Stderr).SelectProfile(list)
			if err != nil {
				return app.Source{}, app.Source{}, err
			}
			name = selected.Name
		}
		p, err := manager.Get(ctx, name)
		if err != nil {
			return app.Source{}, app.Source{}, err
		}
		pair = &p
	}

	a, err := sideSource(db1SnapshotPath, db1ConfigPath, pair, func(p *profiles.Pair) config.DatabaseConfig { return p.DB1 })
	if err != nil {
		return app.Source{}, app.Source{}, fmt.Errorf("database 1: %w", err)
	}
	b, err := sideSource(db2SnapshotPath, db2ConfigPath, pair, func(p *profiles.Pair) config.DatabaseConfig { return p.DB2 })
	if err != nil {
		return app.Source{}, app.Source{}, fmt.Errorf("database 2: %w", err)
	}
	return a, b, nil
}

func sideSource(snapshotPath, configPath string, pair *profiles.Pair, pick func(*profiles.Pair) config.DatabaseConfig) (app.Source, error) {
	switch {
	case snapshotPath != "":
		return app.FileSource(snapshotPath), nil
	case configPath != "":
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return app.Source{}, fmt.Errorf("cannot load config: %w", err)
		}
		return app.LiveSource(cfg.Database), nil
	case pair != nil:
		return app.LiveSource(pick(pair)), nil
	}
	return app.Source{}, errs.New(errs.ErrKindConfiguration, "no connection descriptor")
}

func runCompare(cmd *cobra.Command, args []string) error {
	log := newLogger()
	manager, err := newProfileManager(log)
	if err != nil {
		return err
	}
	a, b, err := resolveSources(cmd.Context(), manager)
	if err != nil {
		return err
	}

	cmp, err := newService(log, progressSides(a, b)).Compare(cmd.Context(), a, b)
	if err != nil {
		return err
	}
	if textOutput() {
		app.WriteComparison(os.Stdout, cmp)
		return nil
	}
	return writeStructured(os.Stdout, cmp)
}

func runSync(cmd *cobra.Command, args []string) error {
	dir, err := schema.ParseDirection(direction)
	if err != nil {
		return err
	}

	log := newLogger()
	manager, err := newProfileManager(log)
	if err != nil {
		return err
	}
	a, b, err := resolveSources(cmd.Context(), manager)
	if err != nil {
		return err
	}

	service := newService(log, progressSides(a, b))
	res, err := service.Sync(cmd.Context(), a, b, dir)
	if err != nil {
		return err
	}
	if textOutput() {
		app.WriteStatements(os.Stdout, res)
	} else if err := writeStructured(os.Stdout, res); err != nil {
		return err
	}

	if !applyChanges {
		return nil
	}
	pending := apply.Executable(res.Statements)
	if len(pending) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to apply.")
		return nil
	}
	if !assumeYes {
		selector := interactive.NewProfileSelector(os.Stdin, os.Stderr)
		if !selector.ConfirmAction(fmt.Sprintf("%d statements", len(pending)), res.Target.String()) {
			fmt.Fprintln(os.Stderr, "Apply cancelled.")
			return nil
		}
	}

	result, err := service.Apply(cmd.Context(), res)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Applied %d statements to %s in %s (%d skipped).\n",
		result.Executed, res.Target, result.Duration.Round(time.Millisecond), result.Skipped)
	return nil
}

// inspectSource resolves the single side selected by --side.
func inspectSource(ctx context.Context, manager *profiles.Manager) (app.Source, error) {
	first := true
	switch strings.ToLower(inspectSide) {
	case "db1", "1", "a":
	case "db2", "2", "b":
		first = false
	default:
		return app.Source{}, errs.Newf(errs.ErrKindInvalidInput, "unknown side %q: use db1 or db2", inspectSide)
	}

	snapshotPath, configPath := db1SnapshotPath, db1ConfigPath
	if !first {
		snapshotPath, configPath = db2SnapshotPath, db2ConfigPath
	}
	if snapshotPath != "" || configPath != "" {
		return sideSource(snapshotPath, configPath, nil, nil)
	}
	if profileName == "" {
		return app.Source{}, errs.New(errs.ErrKindConfiguration, "no database given: use --profile or --db1-config/--db2-config")
	}
	pair, err := manager.Get(ctx, profileName)
	if err != nil {
		return app.Source{}, err
	}
	if first {
		return app.LiveSource(pair.DB1), nil
	}
	return app.LiveSource(pair.DB2), nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := newLogger()
	manager, err := newProfileManager(log)
	if err != nil {
		return err
	}
	src, err := inspectSource(ctx, manager)
	if err != nil {
		return err
	}

	if diagnose {
		if src.Config == nil {
			return errs.New(errs.ErrKindConfiguration, "diagnostics need a live database, not a snapshot file")
		}
		diag, err := catalog.NewReader(catalog.WithLogger(log)).Diagnose(ctx, *src.Config)
		if err != nil {
			return err
		}
		if textOutput() {
			fmt.Fprintln(os.Stdout, diag.String())
			return nil
		}
		return writeStructured(os.Stdout, diag)
	}

	service := app.NewService(catalog.NewReader(catalog.WithLogger(log)), log)
	snap, err := service.Inspect(ctx, src)
	if err != nil {
		return err
	}

	if outputPath != "" {
		if err := snap.WriteFile(outputPath); err != nil {
			return err
		}
		log.Infof("Snapshot written to %s", outputPath)
	}

	if archiveTarget != "" {
		s3cfg, _ := objectstore.ConfigFromEnv()
		dest, err := archive.ParseTarget(archiveTarget, s3cfg)
		if err != nil {
			return err
		}
		format := schema.FormatJSON
		if strings.EqualFold(outputFormat, "yaml") {
			format = schema.FormatYAML
		}
		label := profileName
		if label == "" && src.Config != nil {
			label = src.Config.Database
		}
		meta, err := archive.NewArchiver(dest, format).Archive(ctx, label, src.String(), snap)
		if err != nil {
			return err
		}
		log.WithField("sha256", meta.Checksum).Infof("Snapshot archived to %s", meta.Location)
	}

	if textOutput() {
		fmt.Fprintf(os.Stdout, "%s: %s\n", src, snap.Summary())
		return nil
	}
	return writeStructured(os.Stdout, snap)
}

func runExplore(cmd *cobra.Command, args []string) error {
	log := newLogger()
	manager, err := newProfileManager(log)
	if err != nil {
		return err
	}
	a, b, err := resolveSources(cmd.Context(), manager)
	if err != nil {
		return err
	}

	cmp, err := newService(log, progressSides(a, b)).Compare(cmd.Context(), a, b)
	if err != nil {
		return err
	}
	return explorer.Run(app.ExplorerInput(cmp))
}
