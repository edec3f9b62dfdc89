// Command pulse runs the autonomic daemon loop described in spec.md §4.14
// and exposes the thin CLI surface spec.md §6 calls for: `run`,
// `genome {export|import|show|diff}`, and `status`. Grounded on
// cmd/qubicdb-cli/main.go's cobra root-command-plus-subcommands shape in
// the pack (the teacher's own cmd/bud has no subcommand structure at
// all — it is a single long-running process with flags, not a CLI).
package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/astra-ventures/pulse/internal/clock"
	"github.com/astra-ventures/pulse/internal/config"
	"github.com/astra-ventures/pulse/internal/daemon"
	"github.com/astra-ventures/pulse/internal/genome"
	"github.com/astra-ventures/pulse/internal/logging"
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "pulse",
		Short: "pulse — an autonomic nervous-system daemon for an autonomous agent",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "pulse.yaml", "path to the YAML config file")

	rootCmd.AddCommand(
		runCmd(&configPath),
		statusCmd(&configPath),
		genomeCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadContext(configPath string) (*pulsectx.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.Logging.Level)
	return pulsectx.New(cfg, clock.RealClock{}), nil
}

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the daemon tick loop until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			pctx, err := loadContext(*configPath)
			if err != nil {
				return err
			}
			d := daemon.New(pctx)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, daemon.Signals()...)
			return d.Run(sigCh)
		},
	}
}

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print the current drive pressures and evaluator thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			pctx, err := loadContext(*configPath)
			if err != nil {
				return err
			}
			daemon.New(pctx)
			for _, name := range pctx.Registry.Names() {
				fmt.Printf("%s: %v\n", name, pctx.Registry.StatusOf(name))
			}
			return nil
		},
	}
}

func genomeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genome",
		Short: "export, import, show, or diff the tunable-parameter genome",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "export",
			Short: "print the current genome as YAML",
			RunE: func(c *cobra.Command, args []string) error {
				pctx, err := loadContext(*configPath)
				if err != nil {
					return err
				}
				d := daemon.New(pctx)
				data, err := d.Genome().ExportYAML()
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "import a genome YAML document, validating against guardrails",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				pctx, err := loadContext(*configPath)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				d := daemon.New(pctx)
				rejected, err := d.Genome().ImportYAML(data)
				if err != nil {
					return err
				}
				for _, r := range rejected {
					fmt.Fprintf(os.Stderr, "rejected: %s\n", r)
				}
				fmt.Printf("imported (%d rejected)\n", len(rejected))
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "alias for export",
			RunE: func(c *cobra.Command, args []string) error {
				pctx, err := loadContext(*configPath)
				if err != nil {
					return err
				}
				d := daemon.New(pctx)
				data, err := d.Genome().ExportYAML()
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "diff <file-a> <file-b>",
			Short: "structurally compare two genome YAML documents",
			Args:  cobra.ExactArgs(2),
			RunE: func(c *cobra.Command, args []string) error {
				a, err := readGenome(args[0])
				if err != nil {
					return err
				}
				b, err := readGenome(args[1])
				if err != nil {
					return err
				}
				diffs := genome.Diff(a, b)
				if len(diffs) == 0 {
					fmt.Println("(no differences)")
					return nil
				}
				for _, line := range diffs {
					fmt.Println(line)
				}
				return nil
			},
		},
	)
	return cmd
}

func readGenome(path string) (genome.Genome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return genome.Genome{}, err
	}
	var g genome.Genome
	if err := yaml.Unmarshal(data, &g); err != nil {
		return genome.Genome{}, err
	}
	return g, nil
}
