package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"paycalc/internal/domain/auth"
	"paycalc/internal/domain/formula"
	"paycalc/internal/domain/payroll"
	"paycalc/internal/domain/tax"
)

var errInvalid = errors.New("validation failed")

// calcFile is the YAML layout read by calc and check-structure.
type calcFile struct {
	Components          []payroll.SalaryComponent   `yaml:"components"`
	Overrides           []payroll.ComponentOverride `yaml:"overrides"`
	Variables           map[string]float64          `yaml:"variables"`
	TaxBrackets         []tax.Bracket               `yaml:"taxBrackets"`
	StrictMissingAmount bool                        `yaml:"strictMissingAmount"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "payrollctl",
		Short:         "Evaluate salary formulas, structures and tax tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newEvalCmd(),
		newValidateCmd(),
		newCalcCmd(),
		newTaxCmd(),
		newCheckStructureCmd(),
		newTokenCmd(),
	)
	return root
}

func newEvalCmd() *cobra.Command {
	var vars []string
	cmd := &cobra.Command{
		Use:   "eval <formula>",
		Short: "Evaluate a formula against name=value variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseVars(vars)
			if err != nil {
				return err
			}
			result, err := formula.Evaluate(args[0], scope)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(result, 'f', -1, 64))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&vars, "var", nil, "variable as name=value, repeatable")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <formula>",
		Short: "Check that a formula parses and evaluates against sample values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := formula.Validate(args[0])
			if err := writeJSON(cmd.OutOrStdout(), v); err != nil {
				return err
			}
			if !v.Valid {
				return errInvalid
			}
			return nil
		},
	}
}

func newCalcCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calculate a salary from a YAML structure file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in calcFile
			if err := readYAML(path, &in); err != nil {
				return err
			}
			if err := tax.Validate(in.TaxBrackets); err != nil {
				return err
			}
			calc := payroll.NewCalculator(payroll.Options{
				StrictMissingAmount: in.StrictMissingAmount,
				TaxBrackets:         in.TaxBrackets,
			})
			result, err := calc.Calculate(in.Components, in.Overrides, in.Variables)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "structure file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTaxCmd() *cobra.Command {
	var (
		path  string
		gross float64
	)
	cmd := &cobra.Command{
		Use:   "tax",
		Short: "Apply a YAML tax table to a gross amount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in struct {
				Brackets []tax.Bracket `yaml:"brackets"`
			}
			if err := readYAML(path, &in); err != nil {
				return err
			}
			if err := tax.Validate(in.Brackets); err != nil {
				return err
			}
			owed := tax.Calculate(gross, in.Brackets)
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"gross": gross,
				"tax":   owed,
				"net":   gross - owed,
				"bands": tax.Resolve(in.Brackets),
			})
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "tax table file")
	cmd.Flags().Float64Var(&gross, "gross", 0, "gross amount")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newCheckStructureCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "check-structure",
		Short: "Validate the components and overrides of a YAML structure file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in calcFile
			if err := readYAML(path, &in); err != nil {
				return err
			}
			var issues []payroll.Issue
			for _, err := range []error{
				payroll.ValidateStructure(in.Components),
				payroll.ValidateOverrides(in.Components, in.Overrides),
			} {
				var verr *payroll.ValidationError
				if errors.As(err, &verr) {
					issues = append(issues, verr.Issues...)
				} else if err != nil {
					return err
				}
			}
			if err := writeJSON(cmd.OutOrStdout(), map[string]any{"valid": len(issues) == 0, "issues": issues}); err != nil {
				return err
			}
			if len(issues) > 0 {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "structure file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if strings.TrimSpace(secret) == "" {
				return errors.New("JWT_SECRET is not set")
			}
			tok, err := auth.GenerateToken(secret, subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "payrollctl", "token subject")
	cmd.Flags().StringVar(&role, "role", auth.RoleViewer, "admin, payroll_manager or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func parseVars(raw []string) (map[string]float64, error) {
	scope := make(map[string]float64, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("variable %q must be name=value", kv)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		scope[strings.TrimSpace(name)] = n
	}
	return scope, nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
