package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kadirbelkuyu/schemasync/internal/app"
	"github.com/kadirbelkuyu/schemasync/internal/ui/desktop"
)

const appName = "SchemaSync: schema comparison and DDL synthesis"

const asciiBanner = `
  ____       _                          ____
 / ___|  ___| |__   ___ _ __ ___   __ _/ ___| _   _ _ __   ___
 \___ \ / __| '_ \ / _ \ '_ ` + "`" + ` _ \ / _` + "`" + ` \___ \| | | | '_ \ / __|
  ___) | (__| | | |  __/ | | | | | (_| |___) | |_| | | | | (__
 |____/ \___|_| |_|\___|_| |_| |_|\__,_|____/ \__, |_| |_|\___|
                                              |___/
`

var rootCmd = &cobra.Command{
	Use:   "schemasync",
	Short: "Compare database schemas and generate the DDL that reconciles them",
	Long: `Inspect two PostgreSQL, MySQL or MongoDB databases, report how their schemas
differ and synthesize the statements that bring one side in line with the other.`,
	RunE: runInteractive,
}

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch the guided interactive workflow",
	RunE:  runInteractive,
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the schemas of two databases",
	RunE:  runCompare,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Generate (and optionally apply) the DDL that reconciles two schemas",
	RunE:  runSync,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Capture the schema snapshot of one database",
	RunE:  runInspect,
}

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Browse a comparison in the terminal console",
	RunE:  runExplore,
}

var desktopCmd = &cobra.Command{
	Use:   "desktop",
	Short: "Launch the desktop interface",
	RunE:  runDesktop,
}

var (
	profileName     string
	db1ConfigPath   string
	db2ConfigPath   string
	db1SnapshotPath string
	db2SnapshotPath string
	outputFormat    string
	profilesFile    string
	parallel        bool
	verbose         bool

	direction    string
	applyChanges bool
	assumeYes    bool

	inspectSide   string
	outputPath    string
	archiveTarget string
	diagnose      bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&profileName, "profile", "", "Saved profile holding both connection descriptors")
	flags.StringVar(&db1ConfigPath, "db1-config", "", "Path to the Database 1 configuration file")
	flags.StringVar(&db2ConfigPath, "db2-config", "", "Path to the Database 2 configuration file")
	flags.StringVar(&db1SnapshotPath, "db1-snapshot", "", "Use a snapshot file instead of connecting to Database 1")
	flags.StringVar(&db2SnapshotPath, "db2-snapshot", "", "Use a snapshot file instead of connecting to Database 2")
	flags.StringVar(&outputFormat, "format", "text", "Output format: text, json or yaml")
	flags.StringVar(&profilesFile, "profiles-file", "", "Path to the profiles document (default configs/profiles.yaml)")
	flags.BoolVar(&parallel, "parallel", false, "Inspect both databases concurrently")
	flags.BoolVar(&verbose, "verbose", false, "Enable verbose logging")

	syncCmd.Flags().StringVar(&direction, "direction", "AtoB", "AtoB makes Database 2 match Database 1, BtoA the reverse")
	syncCmd.Flags().BoolVar(&applyChanges, "apply", false, "Execute the generated statements against the target database")
	syncCmd.Flags().BoolVar(&assumeYes, "yes", false, "Do not ask for confirmation before applying")

	inspectCmd.Flags().StringVar(&inspectSide, "side", "db1", "Which side of the profile or flags to inspect: db1 or db2")
	inspectCmd.Flags().StringVar(&outputPath, "output", "", "Write the snapshot to this .json or .yaml file")
	inspectCmd.Flags().StringVar(&archiveTarget, "archive", "", "Archive the snapshot to a directory or s3://bucket/prefix")
	inspectCmd.Flags().BoolVar(&diagnose, "diagnose", false, "Report the session identity and every visible table")

	rootCmd.AddCommand(interactiveCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(desktopCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(serveCmd)

	cobra.OnInitialize(func() {
		rootCmd.SilenceUsage = true
		rootCmd.SilenceErrors = true
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runInteractive(cmd *cobra.Command, args []string) error {
	log := newLogger()
	manager, err := newProfileManager(log)
	if err != nil {
		return err
	}
	application := app.NewApplication(os.Stdin, os.Stdout, printBanner, manager, newService(log, 0))
	return application.RunInteractive(cmd.Context())
}

func runDesktop(cmd *cobra.Command, args []string) error {
	log := newLogger()
	manager, err := newProfileManager(log)
	if err != nil {
		return err
	}
	return desktop.Run(manager, newService(log, 0), log)
}

func printBanner() {
	fmt.Print(asciiBanner)
	fmt.Println(appName)
	fmt.Println(strings.Repeat("-", len(appName)))
}
