package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/keyvault/keyvault/internal/hostconfig"
	"github.com/keyvault/keyvault/internal/sessiontoken"
	"github.com/keyvault/keyvault/pkg/crypto"
	"github.com/keyvault/keyvault/pkg/vault"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// sessionTokenTTL bounds how long a persisted session capsule (see
// internal/sessiontoken) stays valid, independent of the vault's own
// auto-lock timer — a capsule outliving the process that minted it is
// still bounded by this even if nothing ever calls lock.
const sessionTokenTTL = 15 * time.Minute

// sessionTokenEnvVar holds the token unsealing the current process's
// session capsule, if any.
const sessionTokenEnvVar = "KEYVAULT_SESSION_TOKEN"

var (
	vaultHome string
	vaultPath string
	v         *vault.Vault
)

var rootCmd = &cobra.Command{
	Use:           "keyvault",
	Short:         "keyvault is a local-first secrets manager for humans, scripts, and AI agents",
	Long:          `A fast, modern secrets manager built with Go.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		home := vaultHome
		if home == "" {
			home = os.Getenv("KEYVAULT_HOME")
		}
		if home == "" {
			h, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get user home directory: %w", err)
			}
			home = filepath.Join(h, ".keyvault")
		}
		if err := os.MkdirAll(home, 0700); err != nil {
			return fmt.Errorf("failed to create vault directory: %w", err)
		}

		cfg, err := hostconfig.Load(home)
		if err != nil {
			return fmt.Errorf("failed to load host config: %w", err)
		}
		if cfg.VaultPath != "" {
			vaultPath = cfg.VaultPath
		} else {
			vaultPath = filepath.Join(home, "vault.json")
		}

		v = vault.New(vaultPath)
		vaultHomeResolved = home
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return hostconfig.Touch(vaultHomeResolved, time.Now().UnixMilli())
	},
}

// vaultHomeResolved is the effective vault home directory chosen during
// PersistentPreRunE, kept separate from the --vault-home flag value since
// that flag may be empty and fall back to KEYVAULT_HOME or the default.
var vaultHomeResolved string

var (
	addEnvironment string
	addTags        string
	addDomains     string
	addNotes       string
	addFavorite    bool
	addExpires     string
	addRateLimit   string
)

var (
	updateTags    string
	updateDomains string
)

var (
	listEnvironment  string
	listTag          string
	listDomain       string
	listFavoriteOnly bool
)

var auditLimit int

func init() {
	rootCmd.PersistentFlags().StringVar(&vaultHome, "vault-home", "", "vault directory (default ~/.keyvault, or $KEYVAULT_HOME)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(touchCmd)
	rootCmd.AddCommand(auditCmd)

	addCmd.Flags().StringVar(&addEnvironment, "environment", "", "production, development, staging, or testing")
	addCmd.Flags().StringVar(&addTags, "tags", "", "comma-separated tags")
	addCmd.Flags().StringVar(&addDomains, "domains", "", "comma-separated domains")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "free-text notes")
	addCmd.Flags().BoolVar(&addFavorite, "favorite", false, "mark as favorite")
	addCmd.Flags().StringVar(&addExpires, "expires", "", "expiration duration (e.g. 30d, 1y)")
	addCmd.Flags().StringVar(&addRateLimit, "rate-limit", "", "rate-limit hint for hosts")

	updateCmd.Flags().String("service-name", "", "new service name")
	updateCmd.Flags().Bool("plaintext", false, "prompt for a new secret value")
	updateCmd.Flags().String("environment", "", "new environment")
	updateCmd.Flags().StringVar(&updateTags, "tags", "", "replace tags (comma-separated)")
	updateCmd.Flags().StringVar(&updateDomains, "domains", "", "replace domains (comma-separated)")
	updateCmd.Flags().String("notes", "", "new notes")
	updateCmd.Flags().Bool("favorite", false, "set favorite")
	updateCmd.Flags().Bool("unfavorite", false, "clear favorite")
	updateCmd.Flags().String("rate-limit", "", "new rate-limit hint")

	listCmd.Flags().StringVar(&listEnvironment, "environment", "", "filter by environment")
	listCmd.Flags().StringVar(&listTag, "tag", "", "filter by tag")
	listCmd.Flags().StringVar(&listDomain, "domain", "", "filter by domain")
	listCmd.Flags().BoolVar(&listFavoriteOnly, "favorite", false, "only favorites")

	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "number of audit records to show, newest first")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes a new vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Initializing new vault at %s...\n", vaultPath)

		fmt.Print("Enter master password: ")
		password1, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		fmt.Print("Confirm master password: ")
		password2, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		if string(password1) != string(password2) {
			return fmt.Errorf("passwords do not match")
		}

		if err := v.Initialize(string(password1)); err != nil {
			return fmt.Errorf("failed to initialize vault: %w", err)
		}

		fmt.Printf("Vault initialized at %s\n", vaultPath)
		return nil
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlocks the vault for the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("Enter master password: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		count, err := v.Unlock(string(password))
		if err != nil {
			return fmt.Errorf("failed to unlock vault: %w", err)
		}
		fmt.Printf("Vault unlocked (%d entries)\n", count)

		if err := persistSession(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to persist session: %v\n", err)
		}
		return nil
	},
}

// persistSession seals the vault's current session key into a capsule so
// a later invocation of this CLI (a separate process) can skip the
// password prompt by supplying KEYVAULT_SESSION_TOKEN, until the capsule
// expires or lock deletes it.
func persistSession() error {
	key, err := v.ExportSessionKey()
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(key)

	token, err := sessiontoken.Create(vaultHomeResolved, key, sessionTokenTTL)
	if err != nil {
		return err
	}
	fmt.Printf("Session token (export %s to skip the password prompt for %s):\n%s\n",
		sessionTokenEnvVar, sessionTokenTTL, token)
	return nil
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Locks the vault and discards the cached session key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		if err := v.Lock(); err != nil {
			return fmt.Errorf("failed to lock vault: %w", err)
		}
		if err := sessiontoken.Delete(vaultHomeResolved); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to delete session capsule: %v\n", err)
		}
		fmt.Println("Vault locked")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Reports vault initialization and lock state",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := v.Status()
		if err != nil {
			return fmt.Errorf("failed to get vault status: %w", err)
		}
		fmt.Printf("Initialized: %t\n", st.Initialized)
		fmt.Printf("Unlocked: %t\n", st.Unlocked)
		fmt.Printf("Entries: %d\n", st.EntryCount)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add [service-name]",
	Short: "Adds a new entry, prompting for its secret value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serviceName := args[0]

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		fmt.Print("Enter secret value: ")
		secretBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read secret value: %w", err)
		}
		fmt.Println()

		record := vault.NewRecord{
			ServiceName: serviceName,
			Plaintext:   string(secretBytes),
			Environment: addEnvironment,
			Notes:       addNotes,
			Favorite:    addFavorite,
			RateLimit:   addRateLimit,
		}
		if addTags != "" {
			record.Tags = strings.Split(addTags, ",")
		}
		if addDomains != "" {
			record.Domains = strings.Split(addDomains, ",")
		}
		if addExpires != "" {
			offsetMillis, err := parseDurationMillis(addExpires)
			if err != nil {
				return fmt.Errorf("invalid expiration format: %w", err)
			}
			ts := time.Now().UnixMilli() + offsetMillis
			record.ExpiresAt = &ts
		}

		id, err := v.Add(record)
		if err != nil {
			return fmt.Errorf("failed to add entry: %w", err)
		}

		fmt.Printf("Entry added: %s\n", id)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Gets the decrypted secret for an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		entry, err := v.Get(id)
		if err != nil {
			return fmt.Errorf("failed to get entry: %w", err)
		}
		fmt.Println(entry.Plaintext)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Updates fields of an existing entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		var partial vault.PartialRecord

		if s, _ := cmd.Flags().GetString("service-name"); s != "" {
			partial.ServiceName = &s
		}
		if e, _ := cmd.Flags().GetString("environment"); e != "" {
			partial.Environment = &e
		}
		if n, _ := cmd.Flags().GetString("notes"); cmd.Flags().Changed("notes") {
			partial.Notes = &n
		}
		if rl, _ := cmd.Flags().GetString("rate-limit"); cmd.Flags().Changed("rate-limit") {
			partial.RateLimit = &rl
		}
		if fav, _ := cmd.Flags().GetBool("favorite"); fav {
			t := true
			partial.Favorite = &t
		}
		if unfav, _ := cmd.Flags().GetBool("unfavorite"); unfav {
			f := false
			partial.Favorite = &f
		}
		if cmd.Flags().Changed("tags") {
			partial.TagsSet = true
			if updateTags != "" {
				partial.Tags = strings.Split(updateTags, ",")
			}
		}
		if cmd.Flags().Changed("domains") {
			partial.DomainsSet = true
			if updateDomains != "" {
				partial.Domains = strings.Split(updateDomains, ",")
			}
		}
		if prompt, _ := cmd.Flags().GetBool("plaintext"); prompt {
			fmt.Print("Enter new secret value: ")
			secretBytes, err := term.ReadPassword(int(syscall.Stdin))
			if err != nil {
				return fmt.Errorf("failed to read secret value: %w", err)
			}
			fmt.Println()
			pt := string(secretBytes)
			partial.Plaintext = &pt
		}

		if err := v.Update(id, partial); err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		fmt.Printf("Entry %s updated\n", id)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Deletes an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		if err := v.Delete(id); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		fmt.Printf("Entry %s deleted\n", id)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists entries matching the given filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		filter := vault.ListFilter{
			Environment: listEnvironment,
			Tag:         listTag,
			Domain:      listDomain,
		}
		if listFavoriteOnly {
			filter.Favorite = true
			filter.FavoriteSet = true
		}

		entries, err := v.List(filter)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}
		printEntries(entries)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Searches entries by service name, tag, environment, or notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		entries, err := v.Search(args[0])
		if err != nil {
			return fmt.Errorf("failed to search entries: %w", err)
		}
		printEntries(entries)
		return nil
	},
}

func printEntries(entries []vault.EntryView) {
	if len(entries) == 0 {
		fmt.Println("No entries found")
		return
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %s", e.ID, e.ServiceName)
		if e.Environment != "" {
			line += fmt.Sprintf(" [%s]", e.Environment)
		}
		if len(e.Tags) > 0 {
			line += fmt.Sprintf(" tags=%s", strings.Join(e.Tags, ","))
		}
		if e.Favorite {
			line += " *"
		}
		fmt.Println(line)
	}
}

var touchCmd = &cobra.Command{
	Use:   "touch [id] [domain]",
	Short: "Records usage of an entry against a domain",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		domain := ""
		if len(args) == 2 {
			domain = args[1]
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		if err := v.RecordUsage(id, domain); err != nil {
			return fmt.Errorf("failed to record usage: %w", err)
		}
		fmt.Printf("Usage recorded for %s\n", id)
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Shows the most recent audit log records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		records, err := v.AuditTail(auditLimit)
		if err != nil {
			return fmt.Errorf("failed to read audit log: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No audit records")
			return nil
		}
		for _, r := range records {
			fmt.Printf("seq=%d  %s  action=%s\n", r.Sequence, formatMillis(r.Timestamp), r.Action)
		}
		return nil
	},
}

// ensureUnlocked prompts for the master password and unlocks the vault if
// it isn't already.
func ensureUnlocked() error {
	st, err := v.Status()
	if err != nil {
		return err
	}
	if st.Unlocked {
		return nil
	}

	if token := os.Getenv(sessionTokenEnvVar); token != "" {
		if key, err := sessiontoken.Load(vaultHomeResolved, token); err == nil {
			_, restoreErr := v.RestoreSession(key)
			crypto.SecureWipe(key)
			if restoreErr == nil {
				return nil
			}
		}
	}

	fmt.Print("Enter master password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	if _, err := v.Unlock(string(passwordBytes)); err != nil {
		return fmt.Errorf("failed to unlock vault: %w", err)
	}
	return nil
}

// parseDurationMillis parses a duration string like "30d", "1y", "24h" the
// way the teacher's root.go parses --expires, returning milliseconds since
// the vault's root document stores timestamps as Unix millis.
func parseDurationMillis(s string) (int64, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("duration too short: %s", s)
	}
	unit := s[len(s)-1]
	valueStr := s[:len(s)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", valueStr)
	}
	const day = 24 * 3600_000
	switch unit {
	case 'h':
		return int64(value) * 3600_000, nil
	case 'd':
		return int64(value) * day, nil
	case 'w':
		return int64(value) * 7 * day, nil
	case 'm':
		return int64(value) * 30 * day, nil
	case 'y':
		return int64(value) * 365 * day, nil
	default:
		return 0, fmt.Errorf("unrecognized duration unit in %q (use h/d/w/m/y)", s)
	}
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format(time.RFC3339)
}
