package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loykin/cloudmaint/internal/config"
	"github.com/loykin/cloudmaint/internal/credential"
	"github.com/loykin/cloudmaint/internal/env"
)

// createCredCommand creates the cred subcommand tree.
func createCredCommand(c command, credFlags *CredFlags) *cobra.Command {
	cred := &cobra.Command{
		Use:   "cred",
		Short: "Manage the encrypted credential store",
		Long: `Manage named secrets kept in a single encrypted file. The passphrase
comes from the ` + credential.PassphraseEnv + ` environment variable; store
operations back up the previous blob before overwriting it.`,
	}
	cred.PersistentFlags().StringVar(&credFlags.File, "file", "", "credential file path (overrides config)")

	store := &cobra.Command{
		Use:   "store",
		Short: "Encrypt and store name=value secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.CredStore(*credFlags)
		},
	}
	store.Flags().StringArrayVar(&credFlags.Set, "set", nil, "secret as name=value (repeatable)")
	if err := store.MarkFlagRequired("set"); err != nil {
		panic(err)
	}

	load := &cobra.Command{
		Use:   "load",
		Short: "Decrypt and print stored secret names",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.CredLoad(*credFlags)
		},
	}

	backup := &cobra.Command{
		Use:   "backup",
		Short: "Copy the encrypted blob to a timestamped backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.CredBackup(*credFlags)
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Verify the blob decrypts with the current passphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.CredValidate(*credFlags)
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show credential file metadata and backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.CredStatus(*credFlags)
		},
	}

	cred.AddCommand(store, load, backup, validate, status)
	return cred
}

func (c command) credStore(f CredFlags) (*credential.Store, *config.FileConfig, error) {
	fc, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	path := f.File
	if path == "" {
		path = fc.Paths.Credential
	}
	return credential.New(path, nil), fc, nil
}

// CredStore encrypts and persists the given name=value pairs, merging them
// over any existing records. The previous blob is backed up first.
func (c command) CredStore(f CredFlags) error {
	store, _, err := c.credStore(f)
	if err != nil {
		return err
	}
	records := make(map[string]string, len(f.Set))
	for _, kv := range f.Set {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid --set %q (want name=value)", kv)
		}
		records[name] = value
	}

	existing, err := store.Load()
	switch {
	case err == nil:
		if _, berr := store.Backup(); berr != nil {
			return berr
		}
		for k, v := range records {
			existing[k] = v
		}
		records = existing
	case errors.Is(err, credential.ErrNotFound):
		// first store, nothing to merge or back up
	default:
		return err
	}

	if err := store.Save(records); err != nil {
		return err
	}
	fmt.Printf("stored %d credential(s) in %s\n", len(records), store.Path())
	return nil
}

// CredLoad decrypts the store and prints the record names. Values are
// deliberately not printed; they are exported as environment bindings for
// task runs only.
func (c command) CredLoad(f CredFlags) error {
	store, _, err := c.credStore(f)
	if err != nil {
		return err
	}
	records, err := store.Load()
	if err != nil {
		return err
	}
	fmt.Printf("%d credential(s) in %s:\n", len(records), store.Path())
	for name := range records {
		fmt.Printf("  %s (exported as %s%s)\n", name, env.CredentialPrefix, name)
	}
	return nil
}

// CredBackup copies the current encrypted blob aside.
func (c command) CredBackup(f CredFlags) error {
	store, _, err := c.credStore(f)
	if err != nil {
		return err
	}
	path, err := store.Backup()
	if err != nil {
		return err
	}
	fmt.Printf("backup written to %s\n", path)
	return nil
}

// CredValidate checks the blob decrypts cleanly.
func (c command) CredValidate(f CredFlags) error {
	store, _, err := c.credStore(f)
	if err != nil {
		return err
	}
	if err := store.Validate(); err != nil {
		return err
	}
	fmt.Println("credential store OK")
	return nil
}

// CredStatus prints file metadata and known backups.
func (c command) CredStatus(f CredFlags) error {
	store, _, err := c.credStore(f)
	if err != nil {
		return err
	}
	st, err := store.Stat()
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}
