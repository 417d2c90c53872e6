package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/erasmus-gp/egpcore/pkg/egpgraph"
	"github.com/erasmus-gp/egpcore/pkg/egpsign"
	"github.com/erasmus-gp/egpcore/pkg/egptype"
)

func newKeygenCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 signing key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, pub, err := egpsign.GenerateKeyPair()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", outDir, err)
			}
			privPath := outDir + "/private.pem"
			pubPath := outDir + "/public.pem"
			if err := os.WriteFile(privPath, priv, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", privPath, err)
			}
			if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", pubPath, err)
			}
			cmd.Printf("private key: %s\n", privPath)
			cmd.Printf("public key:  %s\n", pubPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "directory to write private.pem/public.pem into")
	return cmd
}

func newSignCmd() *cobra.Command {
	var keyPath, creatorStr string
	var algo string
	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Sign a file, writing a detached .sig sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			privPEM, err := os.ReadFile(keyPath)
			if err != nil {
				return fmt.Errorf("reading private key: %w", err)
			}
			creator := uuid.New()
			if creatorStr != "" {
				creator, err = uuid.Parse(creatorStr)
				if err != nil {
					return fmt.Errorf("parsing --creator: %w", err)
				}
			}
			sigPath, err := egpsign.SignFile(args[0], privPEM, creator, egpsign.Algorithm(algo))
			if err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", sigPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "path to PEM-encoded private key (required)")
	cmd.Flags().StringVar(&creatorStr, "creator", "", "creator UUID (default: generated)")
	cmd.Flags().StringVar(&algo, "algorithm", string(egpsign.Ed25519), "signing algorithm (Ed25519 or RSA)")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newVerifySigCmd() *cobra.Command {
	var keyPath, sigPath string
	cmd := &cobra.Command{
		Use:   "verify-sig [file]",
		Short: "Verify a file against its signature sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pubPEM, err := os.ReadFile(keyPath)
			if err != nil {
				return fmt.Errorf("reading public key: %w", err)
			}
			ok, err := egpsign.VerifyFileSignature(args[0], pubPEM, sigPath)
			if err != nil {
				return err
			}
			if !ok {
				cmd.Println("INVALID")
				os.Exit(1)
			}
			cmd.Println("OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "path to PEM-encoded public key (required)")
	cmd.Flags().StringVar(&sigPath, "sig", "", "path to .sig sidecar (default: <file>.sig)")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newTypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Inspect and load the type registry",
	}
	cmd.AddCommand(newTypesLoadCmd())
	cmd.AddCommand(newTypesChartCmd())
	return cmd
}

func openRegistry(dir string) (*egptype.Registry, error) {
	return egptype.NewRegistry(dir, 1024, 256, 256, false)
}

func newTypesLoadCmd() *cobra.Command {
	var dbDir, pubKeyPath string
	cmd := &cobra.Command{
		Use:   "load [bundle]",
		Short: "Load a signed type bundle into the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pubPEM, err := os.ReadFile(pubKeyPath)
			if err != nil {
				return fmt.Errorf("reading public key: %w", err)
			}
			reg, err := openRegistry(dbDir)
			if err != nil {
				return err
			}
			defer reg.Close()
			if err := reg.EnsureLoaded(args[0], pubPEM); err != nil {
				return err
			}
			defs, err := reg.All()
			if err != nil {
				return err
			}
			cmd.Printf("loaded %d types\n", len(defs))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbDir, "db", "./egp-types", "type registry data directory")
	cmd.Flags().StringVar(&pubKeyPath, "key", "", "path to the bundle signer's public key (required)")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newTypesChartCmd() *cobra.Command {
	var dbDir string
	var concrete bool
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render the type hierarchy as a Mermaid flowchart",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(dbDir)
			if err != nil {
				return err
			}
			defer reg.Close()
			chart, err := reg.InheritanceChart(concrete)
			if err != nil {
				return err
			}
			cmd.Print(chart)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbDir, "db", "./egp-types", "type registry data directory")
	cmd.Flags().BoolVar(&concrete, "concrete", false, "omit abstract types from the chart")
	return cmd
}

func newCGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cgraph",
		Short: "Classify and verify connection graphs",
	}
	cmd.AddCommand(newCGraphClassifyCmd())
	cmd.AddCommand(newCGraphVerifyCmd())
	return cmd
}

func loadJSONCGraph(path string) (egpgraph.JSONCGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var jcg egpgraph.JSONCGraph
	if err := json.Unmarshal(data, &jcg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return jcg, nil
}

func newCGraphClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [file.json]",
		Short: "Classify a JSON connection graph's structural kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jcg, err := loadJSONCGraph(args[0])
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(jcg))
			for k := range jcg {
				keys = append(keys, k)
			}
			cmd.Println(egpgraph.ClassifyKeys(keys))
			return nil
		},
	}
	return cmd
}

func newCGraphVerifyCmd() *cobra.Command {
	var dbDir string
	cmd := &cobra.Command{
		Use:   "verify [file.json]",
		Short: "Verify a JSON connection graph's structural invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jcg, err := loadJSONCGraph(args[0])
			if err != nil {
				return err
			}

			reg, err := openRegistry(dbDir)
			if err != nil {
				return err
			}
			defer reg.Close()

			resolve := func(name string) (int32, error) {
				td, err := reg.Get(name)
				if err != nil {
					return 0, err
				}
				return td.UID(), nil
			}
			ifaces, err := egpgraph.ToInterfaces(jcg, resolve)
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(ifaces))
			for k := range ifaces {
				keys = append(keys, k)
			}
			g := egpgraph.NewCGraph(egpgraph.ClassifyKeys(keys))
			for key, iface := range ifaces {
				if err := g.Set(key, iface); err != nil {
					return err
				}
			}
			if !g.IsStable() {
				return fmt.Errorf("graph is not stable: every destination endpoint must be connected")
			}

			frozen, err := egpgraph.Freeze(g)
			if err != nil {
				return err
			}
			if err := egpgraph.Verify(frozen); err != nil {
				return err
			}
			cmd.Println("OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&dbDir, "db", "./egp-types", "type registry data directory (for type name resolution)")
	return cmd
}
