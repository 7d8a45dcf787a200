package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/johnmschoonover/tmplview/internal/config"
	"github.com/johnmschoonover/tmplview/internal/diagnostics"
	"github.com/johnmschoonover/tmplview/internal/document"
	"github.com/johnmschoonover/tmplview/internal/logging"
	"github.com/johnmschoonover/tmplview/internal/renderer"
)

var (
	renderContextPath string
	renderOutPath     string
)

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render a template once and print the result",
	Long: `Render a template against a JSON context document through the same
engine the preview server uses. Diagnostics go to stderr with their
mapped source locations; the rendered output goes to stdout or --out.

Examples:
  tmplview render page.html --context data.json
  tmplview render report.tmpl -c data.json -o report.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderContextPath, "context", "c", "", "Path to the JSON context file")
	renderCmd.Flags().StringVarP(&renderOutPath, "out", "o", "", "Write output to file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	templatePath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging)

	contextPath := renderContextPath
	if contextPath == "" {
		contexts, err := config.NewContextResolver(cfg.Contexts)
		if err != nil {
			return err
		}
		contextPath = contexts.Resolve(templatePath)
	}

	client := renderer.NewClient(engineCommand(cfg), document.NewStore(), logger)
	resp, err := client.Render(context.Background(), templatePath, contextPath)
	if err != nil {
		return err
	}

	mapper := diagnostics.NewMapper(nil)
	for _, d := range mapper.Map(templatePath, contextPath, resp.Diagnostics) {
		location := fmt.Sprintf("%d", d.Line+1)
		if d.Character != nil {
			location = fmt.Sprintf("%d:%d", d.Line+1, *d.Character+1)
		}
		fmt.Fprintf(os.Stderr, "%s: %s:%s: %s\n", d.Severity, d.Source, location, d.Message)
	}

	if resp.Error != "" {
		return fmt.Errorf("render failed: %s", resp.Error)
	}

	if renderOutPath != "" {
		return os.WriteFile(renderOutPath, []byte(resp.Rendered), 0o644)
	}
	_, err = fmt.Fprint(os.Stdout, resp.Rendered)
	return err
}
