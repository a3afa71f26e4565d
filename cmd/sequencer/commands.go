package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pavelanni/sequencer/internal/document"
	"github.com/pavelanni/sequencer/internal/enrich"
	"github.com/pavelanni/sequencer/internal/export"
	"github.com/pavelanni/sequencer/internal/handler"
	appI18n "github.com/pavelanni/sequencer/internal/i18n"
	"github.com/pavelanni/sequencer/internal/llm"
	"github.com/pavelanni/sequencer/internal/model"
	"github.com/pavelanni/sequencer/internal/sequencer"
	"github.com/pavelanni/sequencer/internal/validate"
)

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file>",
		Short: "Extract objectives, Bloom levels and progression from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			analysis, report := a.seq.Analyze(a.ctx(cmd), doc)
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"shape":      doc.Shape,
				"analysis":   analysis,
				"validation": report,
			})
		},
	}
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check the internal consistency of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			report := validate.Check(a.ctx(cmd), doc, a.v.GetBool("strict"))
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("%s: %d error(s)", args[0], len(report.Errors))
			}
			return nil
		},
	}
	cmd.Flags().Bool("strict", false, "Add numbering and week-progression warnings")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Generate, enrich and store a screen sequence for a document",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringP("format", "f", string(export.FormatJSON), "Output format (json, csv, csv-full, csv-flat, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.Bool("strict", false, "Add numbering and week-progression warnings")
	f.Bool("no-save", false, "Do not store the run in the database")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	format, err := export.ParseFormat(a.v.GetString("format"))
	if err != nil {
		return err
	}
	doc, err := readDocument(args[0])
	if err != nil {
		return err
	}

	res, err := a.seq.Generate(a.ctx(cmd), doc)
	if errors.Is(err, sequencer.ErrInvalidDocument) {
		for _, e := range res.Report.Errors {
			slog.Error("validation error", "error", e)
		}
		return err
	}
	if err != nil {
		return err
	}
	if res.Failed() {
		return errors.New(res.Error)
	}
	for _, w := range res.Warnings {
		slog.Warn("generation warning", "warning", w)
	}

	if !a.v.GetBool("no-save") {
		analysis := res.Analysis
		domain := analysis.Domain
		if domain == "" {
			domain = doc.Domain
		}
		run := &model.Run{
			Shape:    res.Shape,
			Model:    a.client.Model(),
			Domain:   domain,
			Screens:  res.Screens,
			Analysis: &analysis,
			Warnings: res.Warnings,
		}
		if err := a.db.SaveRun(run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		slog.Info(appI18n.Tp(a.ctx(cmd), "ScreensGenerated", len(run.Screens)), "run_id", run.ID)
	}

	return writeOutput(a.v.GetString("output"), func(w io.Writer) error {
		return export.Write(w, format, res.Screens, a.agg)
	})
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Store a screen sequence read from a CSV export as a new run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			screens, err := export.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if a.v.GetBool("enrich") {
				screens = enrich.New(a.policy).Screens(screens, model.AnalysisResult{})
			}

			run := &model.Run{
				Shape:    model.ShapeImport,
				Screens:  screens,
				Warnings: validate.ActivityTypes(a.ctx(cmd), screens, a.policy.Authorized),
			}
			if err := a.db.SaveRun(run); err != nil {
				return fmt.Errorf("save run: %w", err)
			}
			slog.Info("imported run", "run_id", run.ID, "screens", len(screens), "path", args[0])
			return nil
		},
	}
	cmd.Flags().Bool("enrich", false, "Fill missing Bloom level, difficulty, duration and objective")
	return cmd
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if id := a.v.GetInt64("set-current"); id != 0 {
				if err := a.db.SetCurrentRun(id); err != nil {
					return fmt.Errorf("set current run %d: %w", id, err)
				}
				slog.Info("current run changed", "run_id", id)
			}

			runs, err := a.db.ListRuns(model.RunFilter{
				Shape:  model.Shape(a.v.GetString("shape")),
				Domain: a.v.GetString("domain"),
				Limit:  a.v.GetInt("limit"),
			})
			if err != nil {
				return err
			}
			type row struct {
				ID      int64       `json:"id"`
				Created string      `json:"created_at"`
				Shape   model.Shape `json:"shape"`
				Model   string      `json:"model"`
				Domain  string      `json:"domain"`
				Screens int         `json:"screens"`
			}
			rows := make([]row, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, row{r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Shape, r.Model, r.Domain, len(r.Screens)})
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
	f := cmd.Flags()
	f.String("shape", "", "Only runs of this document shape (new, legacy, import)")
	f.String("domain", "", "Only runs whose domain contains this text")
	f.Int("limit", 20, "Maximum number of runs")
	f.Int64("set-current", 0, "Make this run the current one before listing")
	return cmd
}

// loadRun returns the run with the given ID, or the current run for 0.
func (a *app) loadRun(id int64) (model.Run, error) {
	if id == 0 {
		run, err := a.db.LatestRun()
		if err != nil {
			return model.Run{}, fmt.Errorf("latest run: %w", err)
		}
		return run, nil
	}
	run, err := a.db.GetRun(id)
	if err != nil {
		return model.Run{}, fmt.Errorf("run %d: %w", id, err)
	}
	return run, nil
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			format, err := export.ParseFormat(a.v.GetString("format"))
			if err != nil {
				return err
			}
			run, err := a.loadRun(a.v.GetInt64("run"))
			if err != nil {
				return err
			}
			return writeOutput(a.v.GetString("output"), func(w io.Writer) error {
				return export.Write(w, format, run.Screens, a.agg)
			})
		},
	}
	f := cmd.Flags()
	f.Int64("run", 0, "Run ID (0 = latest)")
	f.StringP("format", "f", string(export.FormatCSV), "Output format (json, csv, csv-full, csv-flat, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print summary and activity statistics of a stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.loadRun(a.v.GetInt64("run"))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"run_id":   run.ID,
				"summary":  a.agg.Summarize(run.Screens),
				"activity": a.agg.Activity(run.Screens),
			})
		},
	}
	cmd.Flags().Int64("run", 0, "Run ID (0 = latest)")
	return cmd
}

func scriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Generate the production script of one screen of a stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.loadRun(a.v.GetInt64("run"))
			if err != nil {
				return err
			}
			number := a.v.GetString("screen")
			var screen *model.Screen
			for i := range run.Screens {
				if run.Screens[i].Number == number {
					screen = &run.Screens[i]
					break
				}
			}
			if screen == nil {
				return fmt.Errorf("run %d has no screen %q", run.ID, number)
			}

			script, err := llm.Script(cmd.Context(), a.client, *screen)
			if err != nil {
				return err
			}
			if err := a.db.SaveScript(run.ID, number, script); err != nil {
				return fmt.Errorf("save script: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), script)
			return err
		},
	}
	f := cmd.Flags()
	f.Int64("run", 0, "Run ID (0 = latest)")
	f.String("screen", "", "Screen number (num_ecran)")
	_ = cmd.MarkFlagRequired("screen")
	return cmd
}

func sampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print an example objectives document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			shape := model.ShapeNew
			if legacy, _ := cmd.Flags().GetBool("legacy"); legacy {
				shape = model.ShapeLegacy
			}
			data, err := document.Sample(shape)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().Bool("legacy", false, "Print the legacy layout")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an API token and print it once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			token, err := handler.IssueToken(a.db, args[0])
			if err != nil {
				return fmt.Errorf("create token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List API tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			tokens, err := a.db.ListTokens()
			if err != nil {
				return err
			}
			if tokens == nil {
				tokens = []model.APIToken{}
			}
			return writeJSON(cmd.OutOrStdout(), tokens)
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <name>",
		Short: "Delete an API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.db.DeleteToken(args[0]); err != nil {
				return fmt.Errorf("revoke token %s: %w", args[0], err)
			}
			slog.Info("revoked API token", "name", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}

// readDocument loads and parses an objectives document; "-" reads stdin.
func readDocument(path string) (*document.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := document.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOutput runs write against stdout for "" or "-", a created file otherwise.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("wrote output", "path", path)
	return nil
}
