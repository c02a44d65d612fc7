package cli

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"boulder-catalog/internal/holds"
)

func HoldsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holds",
		Short: "Generate and normalize hold layouts",
	}

	cmd.AddCommand(holdsGenerateCmd())
	cmd.AddCommand(holdsImportCmd())
	return cmd
}

func holdsGenerateCmd() *cobra.Command {
	defaults := holds.DefaultGridOptions()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a jittered grid of holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, _ := cmd.Flags().GetInt("rows")
			cols, _ := cmd.Flags().GetInt("cols")
			margin, _ := cmd.Flags().GetFloat64("margin")
			randomness, _ := cmd.Flags().GetFloat64("randomness")
			seed, _ := cmd.Flags().GetInt64("seed")
			output, _ := cmd.Flags().GetString("output")

			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}

			generated, err := holds.Generate(holds.GridOptions{
				Rows:              rows,
				Cols:              cols,
				MarginPercent:     margin,
				RandomnessPercent: randomness,
			}, rand.New(rand.NewSource(seed)))
			if err != nil {
				return err
			}

			if output == "" {
				return holds.Export(cmd.OutOrStdout(), generated)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			defer f.Close()

			if err := holds.Export(f, generated); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %d holds to %s\n", len(generated), output)
			return nil
		},
	}

	cmd.Flags().Int("rows", defaults.Rows, "number of rows")
	cmd.Flags().Int("cols", defaults.Cols, "number of columns")
	cmd.Flags().Float64("margin", defaults.MarginPercent, "margin from the edges in percent")
	cmd.Flags().Float64("randomness", defaults.RandomnessPercent, "jitter in percent of a grid step")
	cmd.Flags().Int64("seed", 0, "random seed (default: current time)")
	cmd.Flags().StringP("output", "o", "", "file to write instead of stdout")
	return cmd
}

func holdsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Read a hold file and print it in relative coordinates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imported, err := readHolds(args[0])
			if err != nil {
				return err
			}
			return holds.Export(cmd.OutOrStdout(), imported)
		},
	}
}
