package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/profiles"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
	"github.com/kadirbelkuyu/schemasync/internal/server"
	"github.com/kadirbelkuyu/schemasync/pkg/interactive"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage saved connection profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfilesList,
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a profile with its passwords masked",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesShow,
}

var profilesSaveCmd = &cobra.Command{
	Use:   "save [name]",
	Short: "Save --db1-config and --db2-config as a profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfilesSave,
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesDelete,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the compare and sync workflows over HTTP",
	RunE:  runServe,
}

var serveAddr string

func init() {
	profilesDeleteCmd.Flags().BoolVar(&assumeYes, "yes", false, "Do not ask for confirmation")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on")

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	profilesCmd.AddCommand(profilesSaveCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	manager, err := newProfileManager(newLogger())
	if err != nil {
		return err
	}
	list, err := manager.List(cmd.Context())
	if err != nil {
		return err
	}
	if !textOutput() {
		return writeStructured(os.Stdout, list)
	}

	if len(list) == 0 {
		fmt.Printf("No profiles in %s.\n", manager.Location())
		return nil
	}
	fmt.Printf("Profiles in %s:\n", manager.Location())
	fmt.Println(strings.Repeat("=", 80))
	for _, p := range list {
		fmt.Printf("%-24s %-8s %-8s\n", p.Name, p.DB1Type, p.DB2Type)
		fmt.Printf("    db1: %s\n    db2: %s\n", p.DB1, p.DB2)
	}
	return nil
}

func runProfilesShow(cmd *cobra.Command, args []string) error {
	manager, err := newProfileManager(newLogger())
	if err != nil {
		return err
	}
	pair, err := manager.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	redacted := profiles.Pair{DB1: pair.DB1.Redacted(), DB2: pair.DB2.Redacted()}

	format := schema.FormatYAML
	if strings.EqualFold(outputFormat, "json") {
		format = schema.FormatJSON
	}
	data, err := schema.Marshal(redacted, format)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runProfilesSave(cmd *cobra.Command, args []string) error {
	if db1ConfigPath == "" || db2ConfigPath == "" {
		return fmt.Errorf("both --db1-config and --db2-config are required")
	}
	db1, err := config.LoadConfig(db1ConfigPath)
	if err != nil {
		return fmt.Errorf("cannot load Database 1 config: %w", err)
	}
	db2, err := config.LoadConfig(db2ConfigPath)
	if err != nil {
		return fmt.Errorf("cannot load Database 2 config: %w", err)
	}

	manager, err := newProfileManager(newLogger())
	if err != nil {
		return err
	}
	name := profileName
	if len(args) == 1 {
		name = args[0]
	}
	stored, err := manager.Save(cmd.Context(), name, profiles.Pair{DB1: db1.Database, DB2: db2.Database})
	if err != nil {
		return err
	}
	fmt.Printf("Saved profile %q to %s.\n", stored, manager.Location())
	return nil
}

func runProfilesDelete(cmd *cobra.Command, args []string) error {
	manager, err := newProfileManager(newLogger())
	if err != nil {
		return err
	}
	if !assumeYes {
		selector := interactive.NewProfileSelector(os.Stdin, os.Stdout)
		if !selector.ConfirmAction("profile delete", args[0]) {
			fmt.Println("Delete cancelled.")
			return nil
		}
	}
	if err := manager.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted profile %q.\n", args[0])
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.NewJSONLogger(os.Stderr, verbose)
	manager, err := newProfileManager(log)
	if err != nil {
		return err
	}
	srv := server.New(newService(log, 0), manager, log)
	return srv.ListenAndServe(cmd.Context(), serveAddr)
}
