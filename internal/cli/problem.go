package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"boulder-catalog/internal/domain"
	"boulder-catalog/internal/holds"
	"boulder-catalog/internal/query"
	"boulder-catalog/internal/store"
)

func listCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List problems",
		Example: `  boulder list
  boulder list --filter 'gradeIndex >= gradeRank("6a") && creator == "ana"'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			expression, _ := cmd.Flags().GetString("filter")

			var filter *query.Filter
			if expression != "" {
				f, err := query.Compile(expression)
				if err != nil {
					return err
				}
				filter = f
			}

			return withStore(cmd, open, func(s *store.Store) error {
				if msg := s.State().Error; msg != "" {
					warn(cmd, msg)
				}

				problems := s.Routes()
				if filter != nil {
					matched, err := filter.Apply(problems)
					if err != nil {
						return err
					}
					problems = matched
				}

				out := cmd.OutOrStdout()
				if len(problems) == 0 {
					fmt.Fprintln(out, "No problems found")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tGRADE\tCREATOR\tHOLDS\tCREATED")
				fmt.Fprintln(w, "--\t----\t-----\t-------\t-----\t-------")
				for _, p := range problems {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
						p.ID, p.Name, dash(p.Grade), dash(p.Creator), len(p.Holds), p.CreatedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().String("filter", "", "expression selecting problems")
	return cmd
}

func showCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show problem details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withStore(cmd, open, func(s *store.Store) error {
				p, outcome, err := s.GetRoute(cmd.Context(), id)
				if err != nil {
					return problemError(id, err)
				}
				warnIfDegraded(cmd, outcome, s)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Problem: %d\n", p.ID)
				fmt.Fprintf(out, "Name: %s\n", p.Name)
				fmt.Fprintf(out, "Grade: %s\n", dash(p.Grade))
				fmt.Fprintf(out, "Creator: %s\n", dash(p.Creator))
				fmt.Fprintf(out, "Created: %s\n", p.CreatedAt.Format("2006-01-02 15:04"))
				if p.UpdatedAt != nil {
					fmt.Fprintf(out, "Updated: %s\n", p.UpdatedAt.Format("2006-01-02 15:04"))
				}
				fmt.Fprintf(out, "Holds: %d\n", len(p.Holds))
				for _, h := range p.Holds {
					fmt.Fprintf(out, "  (%.3f, %.3f) %s\n", h.X, h.Y, h.Type)
				}
				return nil
			})
		},
	}
}

func addCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a problem",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			creator, _ := cmd.Flags().GetString("creator")
			grade, _ := cmd.Flags().GetString("grade")
			holdsFile, _ := cmd.Flags().GetString("holds")

			req := &domain.CreateProblemRequest{Name: name, Creator: creator, Grade: grade, Holds: []domain.Hold{}}
			if holdsFile != "" {
				h, err := readHolds(holdsFile)
				if err != nil {
					return err
				}
				req.Holds = h
			}

			return withStore(cmd, open, func(s *store.Store) error {
				p, outcome, err := s.AddRoute(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("failed to add problem: %w", err)
				}
				warnIfDegraded(cmd, outcome, s)

				fmt.Fprintf(cmd.OutOrStdout(), "✓ Created problem %d: %s\n", p.ID, p.Name)
				return nil
			})
		},
	}

	cmd.Flags().String("name", "", "problem name")
	cmd.Flags().String("creator", "", "who set the problem")
	cmd.Flags().String("grade", "", "Fontainebleau grade, e.g. 6a+")
	cmd.Flags().String("holds", "", "JSON file with the holds")
	cmd.MarkFlagRequired("name")
	return cmd
}

func updateCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update a problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			req := &domain.UpdateProblemRequest{}
			for flag, field := range map[string]**string{
				"name":    &req.Name,
				"creator": &req.Creator,
				"grade":   &req.Grade,
			} {
				if cmd.Flags().Changed(flag) {
					value, _ := cmd.Flags().GetString(flag)
					*field = &value
				}
			}
			if cmd.Flags().Changed("holds") {
				holdsFile, _ := cmd.Flags().GetString("holds")
				h, err := readHolds(holdsFile)
				if err != nil {
					return err
				}
				req.Holds = &h
			}

			return withStore(cmd, open, func(s *store.Store) error {
				p, outcome, err := s.UpdateRoute(cmd.Context(), id, req)
				if err != nil {
					return problemError(id, err)
				}
				warnIfDegraded(cmd, outcome, s)

				fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated problem %d: %s\n", p.ID, p.Name)
				return nil
			})
		},
	}

	cmd.Flags().String("name", "", "new name")
	cmd.Flags().String("creator", "", "new creator")
	cmd.Flags().String("grade", "", "new grade")
	cmd.Flags().String("holds", "", "JSON file replacing the holds")
	return cmd
}

func deleteCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withStore(cmd, open, func(s *store.Store) error {
				outcome, err := s.DeleteRoute(cmd.Context(), id)
				if err != nil {
					return problemError(id, err)
				}
				warnIfDegraded(cmd, outcome, s)

				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted problem %d\n", id)
				return nil
			})
		},
	}
}

func nextIDCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "next-id",
		Short: "Print the id the next problem will get",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, open, func(s *store.Store) error {
				state := s.State()
				if state.Error != "" {
					warn(cmd, state.Error)
				}
				fmt.Fprintln(cmd.OutOrStdout(), state.NextID)
				return nil
			})
		},
	}
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid problem id: %s", arg)
	}
	return id, nil
}

func problemError(id int, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("problem %d not found", id)
	}
	return err
}

func readHolds(path string) ([]domain.Hold, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open holds file: %w", err)
	}
	defer f.Close()

	return holds.Import(f)
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
