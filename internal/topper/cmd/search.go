package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"topper/internal/analysis"
	"topper/internal/config"
	"topper/internal/detectors"
	"topper/internal/dexfile"
	"topper/internal/pipeline"
	"topper/internal/render"
	"topper/internal/topper/styles"
	"topper/internal/ui/colorize"
)

var searchCmd = &cobra.Command{
	Use:   "search <file>",
	Short: "Find gadgets ending in the pivot instruction",
	Long: `Search runs the gadget pipeline over a buffer: pivot seeking, backward
sweeping, control-flow extraction and semantic filtering. Flags override
the configuration file.`,
	Example: `
# Default search, colored listing on a terminal
topper search classes.dex

# Tolerant decoding of a raw buffer mapped at 0x4000
topper search blob.bin --nop-unknown --entry-offset 0x4000

# Markdown report
topper search app.apk --entry classes2.dex --markdown
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		im, err := openImage(cmd, args[0])
		if err != nil {
			return err
		}
		defer im.Close()
		if v := im.Version(); v > cfg.Decoder.Version {
			slog.Warn("Input is newer than the opcode table", "dexVersion", v, "table", cfg.Decoder.Version)
		}

		buf, base, err := region(cmd, im)
		if err != nil {
			return err
		}

		var tagging []analysis.Detector
		if tags, _ := cmd.Flags().GetBool("tags"); tags {
			tagging = append(tagging,
				analysis.SubstitutionDetector{},
				analysis.ExitDetector{},
				detectors.NewConstantDetector(),
				detectors.NewKeySetterDetector(),
			)
		}

		slog.Debug("Searching", "file", args[0], "kind", im.Kind, "size", len(buf), "pivot", cfg.Search.Pivot)
		res, err := pipeline.Default(tagging...).Run(cmd.Context(), pipeline.Args{
			Config:      cfg,
			Buffer:      buf,
			Symbols:     im.Symbols(),
			EntryOffset: base,
		})
		if err != nil {
			return err
		}

		if dir, _ := cmd.Flags().GetString("dot"); dir != "" {
			if err := writeDOT(dir, res); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		jsonOutput, _ := cmd.Flags().GetBool("json")
		markdown, _ := cmd.Flags().GetBool("markdown")
		switch {
		case jsonOutput:
			return render.JSON(out, res)
		case markdown:
			return writeMarkdown(cmd, out, res, filepath.Base(args[0]))
		}

		var highlight func(string) string
		if isTerminal() && colorize.Enabled() {
			highlight = colorize.Listing
		}
		if err := render.Text(out, res, highlight); err != nil {
			return err
		}
		summary := fmt.Sprintf("%d gadgets at %d anchors", len(res.Gadgets), len(res.Anchors))
		if isTerminal() {
			summary = styles.Summary(summary)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), summary)
		return nil
	},
}

func init() {
	addInputFlags(searchCmd)
	searchCmd.Flags().String("config", "", "JSON configuration file")
	searchCmd.Flags().Int("dex-version", 0, "Opcode table: 35, 37, 38 or 39")
	searchCmd.Flags().Bool("nop-unknown", false, "Decode unassigned opcodes as nop")
	searchCmd.Flags().StringP("pivot", "p", analysis.DefaultPivot, "Pivot mnemonic")
	searchCmd.Flags().IntP("max-instructions", "m", analysis.DefaultMaxInstructions, "Longest gadget including the pivot")
	searchCmd.Flags().Bool("skip-cfg", false, "Do not build control-flow graphs")
	searchCmd.Flags().Bool("skip-dfg", true, "Do not build data-flow graphs")
	searchCmd.Flags().String("self-loops", string(analysis.SelfLoopKeep), "Self-loop policy: keep or discard")
	searchCmd.Flags().Int("workers", 0, "Static analysis workers (0 uses every CPU)")
	searchCmd.Flags().Bool("tags", false, "Tag substituted opcodes, exits, crypto constants and key setters")
	searchCmd.Flags().BoolP("json", "j", false, "Output the report as JSON")
	searchCmd.Flags().Bool("markdown", false, "Output a markdown report")
	searchCmd.Flags().String("theme", string(styles.ThemeDark), "Markdown theme on a terminal: dark or charm")
	searchCmd.Flags().String("dot", "", "Write one Graphviz file per gadget CFG into this directory")
	searchCmd.MarkFlagsMutuallyExclusive("json", "markdown")
}

// addInputFlags registers the flags selecting the searched bytes.
func addInputFlags(c *cobra.Command) {
	c.Flags().String("entry", dexfile.DefaultEntry, "Dex entry to read from an apk")
	c.Flags().Int("offset", 0, "First byte of the region")
	c.Flags().Int("length", 0, "Region length in bytes (0 reads to the end)")
	c.Flags().Int("entry-offset", 0, "Address of the file's first byte, added to printed offsets")
}

// loadConfig reads --config over the defaults and applies the flags that
// were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("dex-version") {
		cfg.Decoder.Version, _ = flags.GetInt("dex-version")
	}
	if flags.Changed("nop-unknown") {
		cfg.Decoder.NopUnknown, _ = flags.GetBool("nop-unknown")
	}
	if flags.Changed("pivot") {
		cfg.Search.Pivot, _ = flags.GetString("pivot")
	}
	if flags.Changed("max-instructions") {
		cfg.Search.MaxInstructions, _ = flags.GetInt("max-instructions")
	}
	if flags.Changed("skip-cfg") {
		cfg.Analysis.SkipCFG, _ = flags.GetBool("skip-cfg")
	}
	if flags.Changed("skip-dfg") {
		cfg.Analysis.SkipDFG, _ = flags.GetBool("skip-dfg")
	}
	if flags.Changed("self-loops") {
		cfg.Analysis.SelfLoops, _ = flags.GetString("self-loops")
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers, _ = flags.GetInt("workers")
	}
	return cfg, nil
}

func openImage(cmd *cobra.Command, path string) (*dexfile.Image, error) {
	entry, _ := cmd.Flags().GetString("entry")
	im, err := dexfile.Open(path, entry)
	if err != nil {
		return nil, err
	}
	slog.Debug("Opened input", "file", path, "kind", im.Kind, "dexVersion", im.Version())
	return im, nil
}

// region returns the bytes selected by --offset and --length and their
// address.
func region(cmd *cobra.Command, im *dexfile.Image) ([]byte, int, error) {
	off, _ := cmd.Flags().GetInt("offset")
	length, _ := cmd.Flags().GetInt("length")
	base, _ := cmd.Flags().GetInt("entry-offset")
	buf, err := im.Slice(off, length)
	if err != nil {
		return nil, 0, fmt.Errorf("select region: %w", err)
	}
	return buf, base + off, nil
}

func writeDOT(dir string, res *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir dot: %w", err)
	}
	count := 0
	for _, g := range res.Gadgets {
		dot, ok := render.GadgetDOT(g, res.EntryOffset)
		if !ok {
			continue
		}
		name := fmt.Sprintf("%s_%08x.dot", render.GadgetName(g, res.EntryOffset), res.EntryOffset+g.Anchor)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(dot), 0o644); err != nil {
			return fmt.Errorf("write cfg dot %s: %w", name, err)
		}
		count++
	}
	refs := filepath.Join(dir, "refs.dot")
	if err := os.WriteFile(refs, []byte(render.DOTCallGraph(res, "refs")), 0o644); err != nil {
		return fmt.Errorf("write refs.dot: %w", err)
	}
	slog.Info("Wrote DOT files", "dir", dir, "cfgs", count)
	return nil
}

func writeMarkdown(cmd *cobra.Command, out io.Writer, res *pipeline.Result, title string) error {
	md := render.Markdown(res, title)
	if !isTerminal() || !colorize.Enabled() {
		_, err := io.WriteString(out, md)
		return err
	}
	name, _ := cmd.Flags().GetString("theme")
	theme, err := styles.ParseTheme(name)
	if err != nil {
		return err
	}
	renderer, err := styles.GetMarkdownRenderer(theme, 100)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(out, rendered)
	return err
}
