package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/profiles"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
	"github.com/kadirbelkuyu/schemasync/internal/ui/explorer"
)

type Application struct {
	reader         *bufio.Reader
	out            io.Writer
	printBanner    func()
	profileManager *profiles.Manager
	service        *Service
	explore        func(explorer.Input) error
}

func NewApplication(r io.Reader, w io.Writer, printBanner func(), manager *profiles.Manager, service *Service) *Application {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}

	var reader *bufio.Reader
	if br, ok := r.(*bufio.Reader); ok {
		reader = br
	} else {
		reader = bufio.NewReader(r)
	}

	if manager == nil {
		manager = profiles.NewManager(nil, nil)
	}
	if service == nil {
		service = NewService(nil, nil)
	}

	return &Application{
		reader:         reader,
		out:            w,
		printBanner:    printBanner,
		profileManager: manager,
		service:        service,
		explore:        explorer.Run,
	}
}

func (a *Application) RunInteractive(ctx context.Context) error {
	if a.printBanner != nil {
		a.printBanner()
	}
	a.println("Interactive mode is ready. Press Ctrl+C or choose option 6 to exit.")

	handlers := map[string]struct {
		run   func(context.Context) error
		label string
	}{
		"1": {a.handleCompare, "Comparison"},
		"2": {a.handleSync, "Sync"},
		"3": {a.handleInspect, "Inspection"},
		"4": {a.handleExplore, "Explorer"},
		"5": {a.handleProfiles, "Listing"},
	}
	aliases := map[string]string{
		"compare": "1", "sync": "2", "inspect": "3", "explore": "4", "profiles": "5",
	}

	for {
		a.println()
		a.println("Select an operation:")
		a.println("  1) Compare two databases")
		a.println("  2) Generate sync statements")
		a.println("  3) Inspect a database")
		a.println("  4) Browse differences in the TUI")
		a.println("  5) List saved profiles")
		a.println("  6) Exit")

		a.printf("\nChoice: ")
		choice, err := a.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return a.exit()
			}
			return err
		}

		choice = strings.ToLower(strings.TrimSpace(choice))
		if alias, ok := aliases[choice]; ok {
			choice = alias
		}
		switch choice {
		case "6", "exit", "quit", "q":
			return a.exit()
		}

		h, ok := handlers[choice]
		if !ok {
			a.println("Invalid selection. Try again.")
			continue
		}
		if err := h.run(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return a.exit()
			}
			a.printf("%s failed: %v\n", h.label, err)
		}
	}
}

func (a *Application) exit() error {
	a.println()
	a.println("Exiting interactive mode.")
	return nil
}

func (a *Application) handleCompare(ctx context.Context) error {
	a.println()
	a.println("Compare two databases")

	pair, err := a.loadOrPromptPair()
	if err != nil {
		return err
	}

	cmp, err := a.service.Compare(ctx, LiveSource(pair.DB1), LiveSource(pair.DB2))
	if err != nil {
		return err
	}
	a.println()
	WriteComparison(a.out, cmp)
	return nil
}

func (a *Application) handleSync(ctx context.Context) error {
	a.println()
	a.println("Generate sync statements")

	pair, err := a.loadOrPromptPair()
	if err != nil {
		return err
	}
	dir, err := a.promptDirection()
	if err != nil {
		return err
	}

	res, err := a.service.Sync(ctx, LiveSource(pair.DB1), LiveSource(pair.DB2), dir)
	if err != nil {
		return err
	}
	a.println()
	WriteStatements(a.out, res)

	if len(res.Statements) == 1 && res.Statements[0] == schema.NoChangesStatement {
		return nil
	}
	confirm, err := a.promptYesNo(fmt.Sprintf("Apply these statements to %s?", targetLabel(dir)), false)
	if err != nil || !confirm {
		return err
	}

	applied, err := a.service.Apply(ctx, res)
	if err != nil {
		return err
	}
	a.printf("Applied %d statements in %s.\n", applied.Executed, applied.Duration.Round(time.Millisecond))
	return nil
}

func (a *Application) handleInspect(ctx context.Context) error {
	a.println()
	a.println("Inspect a database")

	cfg, err := a.promptDatabase("database", "")
	if err != nil {
		return err
	}

	snap, err := a.service.Inspect(ctx, LiveSource(cfg))
	if err != nil {
		return err
	}
	a.printf("\n%s: %s\n", cfg.String(), snap.Summary())

	path, err := a.promptString("Save snapshot to file (leave blank to skip)", false)
	if err != nil || path == "" {
		return err
	}
	if err := snap.WriteFile(path); err != nil {
		return err
	}
	a.printf("Snapshot written to %s\n", path)
	return nil
}

func (a *Application) handleExplore(ctx context.Context) error {
	a.println()
	a.println("Browse differences in the console UI")

	pair, err := a.loadOrPromptPair()
	if err != nil {
		return err
	}

	cmp, err := a.service.Compare(ctx, LiveSource(pair.DB1), LiveSource(pair.DB2))
	if err != nil {
		return err
	}
	return a.explore(ExplorerInput(cmp))
}

func (a *Application) handleProfiles(ctx context.Context) error {
	list, err := a.profileManager.List(ctx)
	if err != nil {
		return err
	}
	a.printf("\nProfiles in %s:\n", a.profileManager.Location())
	if len(list) == 0 {
		a.println("  (none)")
		return nil
	}
	for i, p := range list {
		a.printf("  %d) %s\n       db1: %s\n       db2: %s\n", i+1, p.Name, p.DB1, p.DB2)
	}
	return nil
}

// ExplorerInput adapts a comparison for the TUI browser.
func ExplorerInput(cmp *Comparison) explorer.Input {
	return explorer.Input{
		Title:     "schemasync " + cmp.ID,
		DB1:       cmp.DB1,
		DB2:       cmp.DB2,
		Diff:      cmp.Diff,
		Snapshot1: cmp.Snapshot1,
		Snapshot2: cmp.Snapshot2,
	}
}

func (a *Application) loadOrPromptPair() (profiles.Pair, error) {
	if pair, ok, err := a.selectProfile(); err != nil {
		return profiles.Pair{}, err
	} else if ok {
		return pair, nil
	}

	db1, err := a.promptDatabase(SideDB1, "")
	if err != nil {
		return profiles.Pair{}, err
	}
	db2, err := a.promptDatabase(SideDB2, db1.Type)
	if err != nil {
		return profiles.Pair{}, err
	}

	pair := profiles.Pair{DB1: db1, DB2: db2}
	if err := a.persistPair(pair); err != nil {
		if errors.Is(err, io.EOF) {
			return profiles.Pair{}, err
		}
		a.printf("Warning: failed to save profile: %v\n", err)
	}
	return pair, nil
}

func (a *Application) selectProfile() (profiles.Pair, bool, error) {
	ctx := context.Background()
	list, err := a.profileManager.List(ctx)
	if err != nil {
		return profiles.Pair{}, false, err
	}
	if len(list) == 0 {
		return profiles.Pair{}, false, nil
	}

	for {
		a.println("Saved profiles:")
		for i, p := range list {
			a.printf("  %d) %s (%s vs %s)\n", i+1, p.Name, p.DB1Type, p.DB2Type)
		}
		a.println("  n) Enter connection details")

		choice, err := a.promptString("Select a profile (number) or 'n'", true)
		if err != nil {
			return profiles.Pair{}, false, err
		}

		choice = strings.ToLower(strings.TrimSpace(choice))
		if choice == "n" || choice == "new" {
			return profiles.Pair{}, false, nil
		}

		index, err := strconv.Atoi(choice)
		if err != nil || index < 1 || index > len(list) {
			a.println("Please choose a valid option.")
			continue
		}

		pair, err := a.profileManager.Get(ctx, list[index-1].Name)
		if err != nil {
			a.printf("Failed to load %s: %v\n", list[index-1].Name, err)
			continue
		}
		return pair, true, nil
	}
}

func (a *Application) persistPair(pair profiles.Pair) error {
	save, err := a.promptYesNo("Save these connections as a profile?", true)
	if err != nil || !save {
		return err
	}

	name, err := a.promptString("Profile name (leave blank for a generated one)", false)
	if err != nil {
		return err
	}

	stored, err := a.profileManager.Save(context.Background(), name, pair)
	if err != nil {
		return err
	}
	a.printf("Saved profile %q.\n", stored)
	return nil
}

func (a *Application) promptDatabase(label, defaultType string) (config.DatabaseConfig, error) {
	a.printf("\nConfigure %s connection\n", label)

	dbType, err := a.promptDatabaseType(defaultType)
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	cfg := config.DatabaseConfig{Type: dbType}
	cfg.ApplyDefaults()

	if dbType == "mongo" {
		useURI, err := a.promptYesNo("Provide a MongoDB URI?", false)
		if err != nil {
			return cfg, err
		}
		if useURI {
			if cfg.URI, err = a.promptString("MongoDB URI", true); err != nil {
				return cfg, err
			}
			cfg.Database, err = a.promptString("Database name (leave blank for all)", false)
			return cfg, err
		}
	}

	if cfg.Host, err = a.promptStringWithDefault("Host", "localhost"); err != nil {
		return cfg, err
	}
	if cfg.Port, err = a.promptInt("Port", cfg.Port); err != nil {
		return cfg, err
	}
	if dbType == "mongo" {
		if cfg.Database, err = a.promptString("Database name (leave blank for all)", false); err != nil {
			return cfg, err
		}
	} else if cfg.Database, err = a.promptString("Database name", true); err != nil {
		return cfg, err
	}
	if cfg.Username, err = a.promptString("Username (leave blank for none)", false); err != nil {
		return cfg, err
	}
	if cfg.Password, err = a.promptString("Password or ${ENV:NAME} reference (leave blank for none)", false); err != nil {
		return cfg, err
	}
	if dbType == "postgres" {
		if cfg.SSLMode, err = a.promptStringWithDefault("SSL mode", cfg.SSLMode); err != nil {
			return cfg, err
		}
	}

	viaSSH, err := a.promptYesNo("Connect through an SSH tunnel?", false)
	if err != nil {
		return cfg, err
	}
	if viaSSH {
		cfg.ConnMethod = config.ConnSSH
		if cfg.SSH, err = a.promptSSH(); err != nil {
			return cfg, err
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (a *Application) promptSSH() (config.SSHConfig, error) {
	var (
		ssh config.SSHConfig
		err error
	)
	if ssh.Host, err = a.promptString("SSH host", true); err != nil {
		return ssh, err
	}
	if ssh.Port, err = a.promptInt("SSH port", 22); err != nil {
		return ssh, err
	}
	if ssh.User, err = a.promptString("SSH user", true); err != nil {
		return ssh, err
	}
	if ssh.KeyPath, err = a.promptString("Private key path (leave blank to use a password)", false); err != nil {
		return ssh, err
	}
	if ssh.KeyPath == "" {
		ssh.Password, err = a.promptString("SSH password", true)
	}
	return ssh, err
}

func (a *Application) promptDatabaseType(defaultType string) (string, error) {
	for {
		a.println()
		a.println("Select database type:")
		a.println("1. PostgreSQL")
		a.println("2. MySQL / MariaDB")
		a.println("3. MongoDB")
		if defaultType != "" {
			a.printf("Selection [%s]: ", defaultType)
		} else {
			a.printf("Selection: ")
		}

		input, err := a.readLine()
		if err != nil {
			return "", err
		}
		if input == "" && defaultType != "" {
			return defaultType, nil
		}

		switch strings.ToLower(strings.TrimSpace(input)) {
		case "1", "postgres", "postgresql":
			return "postgres", nil
		case "2", "mysql", "mariadb":
			return "mysql", nil
		case "3", "mongo", "mongodb":
			return "mongo", nil
		default:
			a.println("Please choose 1, 2 or 3.")
		}
	}
}

func (a *Application) promptDirection() (schema.Direction, error) {
	for {
		a.println()
		a.println("Which side is the source?")
		a.printf("1. %s -> %s (AtoB)\n", SideDB1, SideDB2)
		a.printf("2. %s -> %s (BtoA)\n", SideDB2, SideDB1)
		a.printf("Selection [1]: ")

		input, err := a.readLine()
		if err != nil {
			return "", err
		}
		switch strings.ToLower(input) {
		case "", "1", "atob":
			return schema.AtoB, nil
		case "2", "btoa":
			return schema.BtoA, nil
		default:
			a.println("Please choose 1 or 2.")
		}
	}
}

func (a *Application) promptString(label string, required bool) (string, error) {
	for {
		a.printf("%s: ", label)
		input, err := a.readLine()
		if err != nil {
			return "", err
		}
		if input == "" && required {
			a.println("Please provide a value.")
			continue
		}
		return input, nil
	}
}

func (a *Application) promptYesNo(question string, defaultValue bool) (bool, error) {
	suffix := "(y/N)"
	if defaultValue {
		suffix = "(Y/n)"
	}

	for {
		a.printf("%s %s ", question, suffix)
		input, err := a.readLine()
		if err != nil {
			return false, err
		}

		if input == "" {
			return defaultValue, nil
		}

		switch strings.ToLower(input) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			a.println("Please answer with y or n.")
		}
	}
}

func (a *Application) promptInt(question string, defaultValue int) (int, error) {
	for {
		a.printf("%s [%d]: ", question, defaultValue)
		input, err := a.readLine()
		if err != nil {
			return 0, err
		}

		if input == "" {
			return defaultValue, nil
		}

		value, err := strconv.Atoi(input)
		if err != nil {
			a.println("Please enter a valid number.")
			continue
		}

		return value, nil
	}
}

func (a *Application) promptStringWithDefault(label, defaultValue string) (string, error) {
	for {
		if defaultValue != "" {
			a.printf("%s [%s]: ", label, defaultValue)
		} else {
			a.printf("%s: ", label)
		}

		input, err := a.readLine()
		if err != nil {
			return "", err
		}

		if input == "" {
			if defaultValue != "" {
				return defaultValue, nil
			}
			a.println("Please provide a value.")
			continue
		}

		return input, nil
	}
}

func (a *Application) readLine() (string, error) {
	line, err := a.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *Application) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *Application) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}
