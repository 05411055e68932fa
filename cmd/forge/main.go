package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"resume-forge/config"
	"resume-forge/internal/adapter/repository"
	"resume-forge/internal/bootstrap"
	"resume-forge/internal/domain"
	"resume-forge/internal/model"
	"resume-forge/pkg/pdfpages"
)

var rootCmd = &cobra.Command{
	Use:           "forge",
	Short:         "Tailor a resume to a job description from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate, compile and fit a resume for one job description",
	RunE:  runForge,
}

var pagesCmd = &cobra.Command{
	Use:   "pages file.pdf",
	Short: "Print the page-count signals for a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		est := pdfpages.Analyze(raw)
		fmt.Fprintf(cmd.OutOrStdout(), "pages: %d (leaf=%d root=%d max=%d fallback=%t)\n",
			est.Pages, est.LeafObjects, est.RootCount, est.MaxCount, est.Fallback)
		return nil
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse resume.txt",
	Short: "Parse sectioned resume text and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		res, err := model.ParseResume(string(raw))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		return res.Err()
	},
}

func init() {
	runCmd.Flags().String("resume", "", "sectioned resume text file (required)")
	runCmd.Flags().String("jd", "", "job description text file (required)")
	runCmd.Flags().String("out", "", "output PDF path (default ResumeForge_<date>.pdf)")
	runCmd.Flags().String("feedback", "", "optional feedback for the generator")
	_ = runCmd.MarkFlagRequired("resume")
	_ = runCmd.MarkFlagRequired("jd")

	rootCmd.AddCommand(runCmd, pagesCmd, parseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runForge(cmd *cobra.Command, _ []string) error {
	resumePath, _ := cmd.Flags().GetString("resume")
	jdPath, _ := cmd.Flags().GetString("jd")
	outPath, _ := cmd.Flags().GetString("out")
	feedback, _ := cmd.Flags().GetString("feedback")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	cfg.Store.Backend = config.StoreMemory
	logger := bootstrap.InitLogger(cfg.Logging)

	rawResume, err := os.ReadFile(resumePath)
	if err != nil {
		return err
	}
	jd, err := os.ReadFile(jdPath)
	if err != nil {
		return err
	}

	st, err := bootstrap.SettingsFromResume(cfg.Seed.APIKey, cfg.Seed.Model, cfg.Compiler.URL, string(rawResume))
	if err != nil {
		return err
	}
	if missing := st.Missing(); len(missing) > 0 {
		return fmt.Errorf("missing settings: %s (set ANTHROPIC_API_KEY and ANTHROPIC_MODEL)", strings.Join(missing, ", "))
	}

	store := repository.NewMemoryStore(repository.Options{MaxHistory: cfg.Pipeline.MaxHistory})
	if err := store.Settings().Set(ctx, st); err != nil {
		return err
	}
	backends := &bootstrap.Backends{Jobs: store, Settings: store.Settings()}
	notifier, err := bootstrap.NewNotifier(config.NotifyConfig{WebhookURL: cfg.Notify.WebhookURL}, nil, logger)
	if err != nil {
		return err
	}
	proc := bootstrap.NewProcessor(cfg, backends, notifier, logger)

	job, err := proc.Start(ctx, string(jd), "cli:"+jdPath)
	if err != nil {
		return err
	}
	if feedback != "" {
		if job, err = proc.Regenerate(ctx, job.ID, feedback); err != nil {
			return err
		}
	}
	if err := proc.Run(ctx, job.ID); err != nil {
		return err
	}

	job, err = store.Get(ctx, job.ID)
	if err != nil {
		return err
	}
	return report(cmd, job, outPath)
}

func report(cmd *cobra.Command, job *domain.Job, outPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", job.Status.Badge(), job.StatusText())
	if job.Status == domain.StatusError {
		return fmt.Errorf("forge failed: %s", job.Error)
	}

	if fit := job.Assessment.FitLevel(); fit != "" {
		fmt.Fprintf(out, "fit: %s\n", fit)
	}
	if w := job.Assessment.Warning(); w != "" {
		fmt.Fprintf(out, "warning: %s\n", w)
	}

	if outPath == "" {
		outPath = fmt.Sprintf("ResumeForge_%s.pdf", time.Now().Format("2006-01-02"))
	}
	if err := os.WriteFile(outPath, job.Artifact, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%d pages, %d bytes)\n", outPath, pdfpages.Count(job.Artifact), len(job.Artifact))
	return nil
}
