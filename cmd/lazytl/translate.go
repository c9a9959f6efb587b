package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/lazytl"
	"github.com/ZaguanLabs/lazytl/processor"
	"github.com/ZaguanLabs/lazytl/provider"
)

// closeTimeout bounds draining pending cache writes on exit.
const closeTimeout = 30 * time.Second

type translateOptions struct {
	locale string
	fields []string
	html   []string
	dryRun bool
	json   bool
	output string
	quiet  bool
}

func (c *cli) newTranslateCmd() *cobra.Command {
	var opts translateOptions

	cmd := &cobra.Command{
		Use:   "translate [file]",
		Short: "Translate fields of JSON records",
		Long: `Reads a JSON object or array of objects from file (or stdin) and prints
it with the named string fields translated into --locale. Fields listed
with --html hold rich text; only their text nodes are translated.`,
		Example: `  lazytl translate --locale en --fields title,summary news.json
  lazytl translate -l fi -f title --html body --dry-run events.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return c.translate(cmd.Context(), input, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.locale, "locale", "l", "", "Target locale (e.g. en, fi)")
	f.StringSliceVarP(&opts.fields, "fields", "f", nil, "Comma-separated plain text fields to translate")
	f.StringSliceVar(&opts.html, "html", nil, "Comma-separated HTML fields to translate")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Show what would be translated without calling the provider")
	f.BoolVar(&opts.json, "json", false, "Print the dry-run report as JSON")
	f.StringVarP(&opts.output, "output", "o", "", "Output file (default: stdout)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress output")
	_ = cmd.MarkFlagRequired("locale")

	return cmd
}

func (c *cli) translate(ctx context.Context, input string, opts translateOptions) error {
	if len(opts.fields) == 0 && len(opts.html) == 0 {
		return errors.New("at least one of --fields or --html is required")
	}

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}

	target, err := lazytl.ParseLocale(opts.locale)
	if err != nil {
		return err
	}
	locales, err := cfg.LocaleSet()
	if err != nil {
		return err
	}
	if !locales.Contains(target) {
		return fmt.Errorf("locale %q is not configured (supported: %v)", opts.locale, locales.Supported)
	}

	records, single, inputName, err := c.readRecords(input)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer release(ctx, logger, closeStore)

	client, err := provider.New(cfg.ProviderConfig())
	if err != nil && !errors.Is(err, lazytl.ErrProviderUnavailable) {
		return err
	}
	if client == nil && !opts.dryRun {
		logger.Warn("no provider credential configured, records keep their source text",
			"provider", cfg.Provider,
		)
	}

	tr := lazytl.NewTranslator(lazytl.Locale(cfg.SourceLocale), client,
		append(cfg.TranslatorOptions(logger), lazytl.WithStore(st))...)
	defer closeTranslator(tr, logger)

	mapperOpts := []lazytl.FieldMapperOption{lazytl.WithMapperLogger(logger)}
	for _, field := range opts.html {
		mapperOpts = append(mapperOpts, lazytl.WithFieldProcessor(field, processor.NewHTMLProcessor()))
	}
	mapper := lazytl.NewFieldMapper(tr, mapperOpts...)
	fields := append(append([]string(nil), opts.fields...), opts.html...)

	if opts.dryRun {
		plan := tr.Plan(ctx, mapper.Texts(records, fields), target)
		return c.printPlan(plan, inputName, len(records), opts.json)
	}

	start := time.Now()
	translated := mapper.TranslateArray(ctx, records, fields, target)
	elapsed := time.Since(start)

	var out io.Writer = c.stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var v any = translated
	if single {
		v = translated[0]
	}
	if err := writeJSON(out, v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if !opts.quiet {
		fmt.Fprintf(c.stderr, "Translated %d records from %s to %s in %v\n",
			len(records), inputName, target, elapsed.Round(time.Millisecond))
	}
	return nil
}

// readRecords decodes a JSON object or array of objects. single reports
// whether the input was a lone object.
func (c *cli) readRecords(input string) (records []lazytl.Record, single bool, name string, err error) {
	var r io.Reader
	if input == "" || input == "-" {
		r, name = c.stdin, "stdin"
	} else {
		f, err := os.Open(input) // #nosec G304 - CLI tool reads user-specified files
		if err != nil {
			return nil, false, "", fmt.Errorf("reading file: %w", err)
		}
		defer f.Close()
		r, name = f, filepath.Base(input)
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, false, "", fmt.Errorf("decoding %s: %w", name, err)
	}

	switch v := raw.(type) {
	case map[string]any:
		return []lazytl.Record{v}, true, name, nil
	case []any:
		records = make([]lazytl.Record, len(v))
		for i, item := range v {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, false, "", fmt.Errorf("decoding %s: element %d is not an object", name, i)
			}
			records[i] = rec
		}
		return records, false, name, nil
	default:
		return nil, false, "", fmt.Errorf("decoding %s: expected an object or an array of objects", name)
	}
}

// dryRunOutput is the JSON form of a dry-run report.
type dryRunOutput struct {
	InputFile string   `json:"input_file"`
	Locale    string   `json:"locale"`
	Skipped   bool     `json:"skipped"`
	Records   int      `json:"records"`
	Cached    int      `json:"cached"`
	Missing   int      `json:"missing"`
	Blank     int      `json:"blank"`
	Chunks    int      `json:"chunks"`
	Texts     []string `json:"texts"`
}

func (c *cli) printPlan(plan *lazytl.Plan, inputName string, records int, asJSON bool) error {
	stats := plan.Stats()

	if asJSON {
		out := dryRunOutput{
			InputFile: inputName,
			Locale:    string(plan.Target),
			Skipped:   plan.Skipped,
			Records:   records,
			Cached:    stats.Cached,
			Missing:   stats.Missing,
			Blank:     stats.Blank,
			Chunks:    stats.Chunks,
			Texts:     []string{},
		}
		for _, n := range plan.Missing {
			out.Texts = append(out.Texts, n.Text)
		}
		return writeJSON(c.stdout, out)
	}

	fmt.Fprintf(c.stdout, "Dry run: %s -> %s\n", inputName, plan.Target)
	if plan.Skipped {
		fmt.Fprintf(c.stdout, "Target is the source locale; nothing to translate.\n")
		return nil
	}

	fmt.Fprintf(c.stdout, "  Records:  %d\n", records)
	fmt.Fprintf(c.stdout, "  Cached:   %d\n", stats.Cached)
	fmt.Fprintf(c.stdout, "  Missing:  %d\n", stats.Missing)
	fmt.Fprintf(c.stdout, "  Blank:    %d\n", stats.Blank)
	fmt.Fprintf(c.stdout, "  Chunks:   %d\n", stats.Chunks)

	if !plan.HasWork() {
		fmt.Fprintf(c.stdout, "\nAll texts are cached.\n")
		return nil
	}

	fmt.Fprintf(c.stdout, "\nNeeds translation:\n")
	for i, n := range plan.Missing {
		text := []rune(n.Text)
		if len(text) > 60 {
			text = append(text[:57], []rune("...")...)
		}
		fmt.Fprintf(c.stdout, "%3d. %q\n", i+1, string(text))
	}
	return nil
}

// closeTranslator drains queued cache writes before the store is closed.
func closeTranslator(tr *lazytl.Translator, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := tr.Close(ctx); err != nil {
		logger.Error("pending cache writes were not completed", "component", "cache", "error", err)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
