// Package main provides the egp CLI entry point.
package main

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/erasmus-gp/egpcore/pkg/egpconfig"
	"github.com/erasmus-gp/egpcore/pkg/egplog"
)

func yamlMarshal(cfg *egpconfig.Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

var version = "0.1.0"

func main() {
	var configPath string
	cfg := egpconfig.Default()

	rootCmd := &cobra.Command{
		Use:   "egp",
		Short: "egp - Erasmus Genetic Programming core toolkit",
		Long: `egp drives the Erasmus Genetic Programming core library: the
type hierarchy, connection graph model, and signed genetic code store.

Commands:
  keygen       generate an Ed25519 signing key pair
  sign         sign a file, writing a detached signature sidecar
  verify-sig   verify a file against its signature sidecar
  types        inspect and load the type registry
  cgraph       classify and verify connection graphs
  config       print the effective configuration`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := egpconfig.Load(configPath)
			if err != nil {
				return err
			}
			*cfg = *loaded
			if err := cfg.Validate(); err != nil {
				return err
			}
			switch strings.ToLower(cfg.LogLevel) {
			case "verify":
				egplog.SetLevel(egplog.VerifyLevel)
			case "consistency":
				egplog.SetLevel(egplog.ConsistencyLevel)
			default:
				if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
					egplog.SetLevel(lvl)
				}
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("egp v%s\n", version)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yamlMarshal(cfg)
			if err != nil {
				return err
			}
			cmd.Print(string(data))
			return nil
		},
	})

	rootCmd.AddCommand(newKeygenCmd())
	rootCmd.AddCommand(newSignCmd())
	rootCmd.AddCommand(newVerifySigCmd())
	rootCmd.AddCommand(newTypesCmd())
	rootCmd.AddCommand(newCGraphCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
