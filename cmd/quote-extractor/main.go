package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/quotestack/quote-extractor/constants"
	"github.com/quotestack/quote-extractor/internal/capture"
	"github.com/quotestack/quote-extractor/internal/common"
	"github.com/quotestack/quote-extractor/internal/config"
	"github.com/quotestack/quote-extractor/internal/ingest"
	"github.com/quotestack/quote-extractor/internal/ocr"
	"github.com/quotestack/quote-extractor/internal/pipeline"
	"github.com/quotestack/quote-extractor/internal/template"
)

// Exit codes: 1 for fatal setup or batch errors, 2 when strict validation
// blocked at least one document.
const (
	exitFatal  = 1
	exitStrict = 2
)

type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var inputs multiFlag
	flag.Var(&inputs, "input", "PDF file or directory to process (repeatable)")
	var (
		output     = flag.String("output", "quote_report.xlsx", "audit workbook output path")
		jsonOutput = flag.String("json-output", "", "JSON artifact output path (default: workbook path with .json)")
		configPath = flag.String("config", "", "vendor extraction config YAML (default: $EXTRACTOR_CONFIG_PATH)")
		ocrMode    = flag.String("ocr-mode", "auto", "OCR mode: auto, off or always")
		strict     = flag.Bool("strict", true, "block workbook and template output for documents with failed error-severity checks")
		charLayer  = flag.Bool("char-layer", false, "include the per-character layer in artifacts")
		noTables   = flag.Bool("no-tables", false, "skip table extraction")
		dedupe     = flag.Bool("dedupe", false, "skip documents with duplicate content hashes")
		workers    = flag.Int("workers", 0, "concurrent documents (default: $EXTRACTOR_WORKERS)")
		watch      = flag.Bool("watch", false, "watch input directories and process newly arriving PDFs")

		templatePath     = flag.String("template", "", "spreadsheet template to fill (default: $EXTRACTOR_TEMPLATE_PATH)")
		templateOutput   = flag.String("template-output", "", "filled template output path (default: template path with _filled suffix)")
		templateSheet    = flag.String("template-sheet", template.DefaultSheet, "template sheet name")
		templateHeader   = flag.Int("template-header-row", 0, "template header row (default: auto-detect)")
		templateStartRow = flag.Int("template-data-start-row", 0, "first data row (default: header row + 1)")
		templateOnly     = flag.Bool("template-only", false, "fill the template without producing the audit workbook")
		euroRate         = flag.Float64("euro-rate", 0, "currency conversion rate applied to purchase prices")
		marginPercent    = flag.Float64("margin-percent", 0, "margin percentage applied to sales prices")
	)
	flag.Parse()
	inputs = append(inputs, flag.Args()...)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(inputs) == 0 {
		printError("Error: at least one --input is required\n")
		os.Exit(exitFatal)
	}
	if !constants.ValidOCRMode(*ocrMode) {
		printError("Error: invalid --ocr-mode %q, use auto, off or always\n", *ocrMode)
		os.Exit(exitFatal)
	}

	envCfg := common.LoadConfig()
	if *configPath == "" {
		*configPath = envCfg.Pipeline.ConfigPath
	}
	if *templatePath == "" {
		*templatePath = envCfg.Pipeline.TemplatePath
	}
	if *workers <= 0 {
		*workers = envCfg.Pipeline.Workers
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "path", *configPath, "error", err)
		os.Exit(exitFatal)
	}

	if *templateOnly && *templatePath == "" {
		printError("Error: --template-only requires --template\n")
		os.Exit(exitFatal)
	}

	var templateOpts *template.Options
	if *templatePath != "" {
		marginSet := false
		flag.Visit(func(f *flag.Flag) {
			if f.Name == "margin-percent" {
				marginSet = true
			}
		})
		if *euroRate <= 0 || !marginSet {
			printError("Error: --template requires --euro-rate > 0 and --margin-percent\n")
			os.Exit(exitFatal)
		}
		out := *templateOutput
		if out == "" {
			out = withSuffix(*templatePath, "_filled")
		}
		templateOpts = &template.Options{
			TemplatePath:  *templatePath,
			OutputPath:    out,
			SheetName:     *templateSheet,
			HeaderRow:     *templateHeader,
			DataStartRow:  *templateStartRow,
			EuroRate:      *euroRate,
			MarginPercent: marginPercent,
		}
	}

	if *jsonOutput == "" {
		*jsonOutput = strings.TrimSuffix(*output, filepath.Ext(*output)) + ".json"
	}

	provider := ocr.NewPopplerProvider(envCfg.OCR.Pdfinfo, envCfg.OCR.Pdftotext, logger)
	var ocrProvider capture.OCRProvider
	if constants.OCRMode(*ocrMode) != constants.OCRModeOff {
		ocrProvider = ocr.NewTesseractProvider(
			envCfg.OCR.Pdftoppm, envCfg.OCR.Tesseract, envCfg.OCR.Language, envCfg.OCR.DPI, logger)
	}
	capturer := capture.NewCapturer(provider, ocrProvider, cfg, logger)
	pipe := pipeline.New(capturer, cfg, logger)

	req := pipeline.Request{
		InputArgs:        inputs,
		OCRMode:          constants.OCRMode(*ocrMode),
		Strict:           *strict,
		IncludeCharLayer: *charLayer,
		DisableTables:    *noTables,
		Dedupe:           *dedupe,
		Template:         templateOpts,
		TemplateOnly:     *templateOnly,
		Workers:          *workers,
		MaxInputMB:       int(envCfg.Pipeline.MaxInputMB),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		os.Exit(runWatch(ctx, pipe, req, inputs, *output, *jsonOutput, logger))
	}
	os.Exit(runBatch(ctx, pipe, req, inputs, *output, *jsonOutput, logger))
}

func runBatch(ctx context.Context, pipe *pipeline.Pipeline, req pipeline.Request, paths []string, output, jsonOutput string, logger *slog.Logger) int {
	gathered, err := ingest.Gather(paths)
	if err != nil {
		logger.Error("input discovery failed", "error", err)
		return exitFatal
	}
	req.Inputs = gathered

	res, err := pipe.Run(ctx, req)
	if err != nil {
		logger.Error("batch failed", "error", err)
		return exitFatal
	}
	if err := writeArtifacts(res, output, jsonOutput, logger); err != nil {
		logger.Error("artifact write failed", "error", err)
		return exitFatal
	}
	if res.StrictFailed {
		logger.Warn("strict validation blocked output for at least one document")
		return exitStrict
	}
	return 0
}

// runWatch processes each newly arriving document as its own batch, writing
// artifacts named after the source file so successive results never clobber
// each other.
func runWatch(ctx context.Context, pipe *pipeline.Pipeline, req pipeline.Request, roots []string, output, jsonOutput string, logger *slog.Logger) int {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: true,
		Debounce:    2 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("watch setup failed", "error", err)
		return exitFatal
	}
	logger.Info("watching for documents", "roots", strings.Join(roots, ","))

	for {
		select {
		case <-ctx.Done():
			return 0
		case werr, ok := <-errs:
			if ok {
				logger.Error("watch error", "error", werr)
			}
		case path, ok := <-paths:
			if !ok {
				return 0
			}
			gathered, err := ingest.Gather([]string{path})
			if err != nil {
				logger.Error("input discovery failed", "path", path, "error", err)
				continue
			}
			batch := req
			batch.Inputs = gathered
			batch.InputArgs = []string{path}
			if batch.Template != nil {
				opts := *batch.Template
				opts.OutputPath = withSuffix(output, "_"+stem(path)+"_template")
				batch.Template = &opts
			}
			res, err := pipe.Run(ctx, batch)
			if err != nil {
				logger.Error("batch failed", "path", path, "error", err)
				continue
			}
			out := withSuffix(output, "_"+stem(path))
			jsonOut := withSuffix(jsonOutput, "_"+stem(path))
			if err := writeArtifacts(res, out, jsonOut, logger); err != nil {
				logger.Error("artifact write failed", "path", path, "error", err)
			}
		}
	}
}

func writeArtifacts(res *pipeline.Result, output, jsonOutput string, logger *slog.Logger) error {
	if len(res.Workbook) > 0 {
		if err := os.WriteFile(output, res.Workbook, 0o644); err != nil {
			return fmt.Errorf("write workbook %s: %w", output, err)
		}
		logger.Info("workbook written", "path", output)
	}
	payload, err := res.Payload.Marshal()
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := os.WriteFile(jsonOutput, payload, 0o644); err != nil {
		return fmt.Errorf("write json %s: %w", jsonOutput, err)
	}
	logger.Info("json artifact written", "path", jsonOutput)
	if res.Template != nil {
		logger.Info("template filled",
			"path", res.Template.OutputPath, "rows", res.Template.RowsWritten)
	}
	return nil
}

// withSuffix inserts a suffix before the file extension.
func withSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
