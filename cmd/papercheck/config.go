package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/papercheck/internal/api"
	"github.com/jackzampolin/papercheck/internal/config"
	"github.com/jackzampolin/papercheck/internal/home"
	"github.com/jackzampolin/papercheck/internal/knowledge"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and inspect the local configuration",
}

var (
	initForce   bool
	initCatalog bool
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to the home directory",
	Long: `Init writes config.yaml with every setting at its default.

With --catalog it also writes knowledge.yaml, a copy of the built-in
recognition patterns, error library and topic guide, and points
knowledge.catalog_file at it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", h.ConfigPath())
		}
		cfg := config.DefaultConfig()
		if initCatalog {
			if err := os.WriteFile(h.CatalogPath(), knowledge.DefaultCatalogYAML(), 0o644); err != nil {
				return fmt.Errorf("write catalog: %w", err)
			}
			fmt.Printf("Wrote %s\n", h.CatalogPath())
			cfg.Knowledge.CatalogFile = h.CatalogPath()
		}
		if err := config.Write(h.ConfigPath(), cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", h.ConfigPath())
		return nil
	},
}

var showPrefix string

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective local configuration",
	Long: `Show loads the config the server would load (file, defaults and
PAPERCHECK_* environment overrides) and prints every key. Secrets are
redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		cm, err := config.NewManager(h.ConfigFile(cfgFile), nil)
		if err != nil {
			return err
		}
		entries, err := config.Describe(cm.Get(), showPrefix)
		if err != nil {
			return err
		}
		return api.Output(struct {
			File     string         `json:"file,omitempty" yaml:"file,omitempty"`
			Settings []config.Entry `json:"settings" yaml:"settings"`
		}{cm.File(), entries})
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config")
	configInitCmd.Flags().BoolVar(&initCatalog, "catalog", false, "Also write an editable knowledge catalog")
	configShowCmd.Flags().StringVar(&showPrefix, "prefix", "", "Only keys with this prefix, e.g. cache")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
