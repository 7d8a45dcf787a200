package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/johnmschoonover/tmplview/internal/engine"
)

var (
	engineTemplatePath string
	engineContextPath  string
)

// engineCmd is the rendering engine worker process. The preview server
// invokes it once per render; it writes a single JSON RenderResponse to
// stdout and exits. Template-level failures still exit zero, with the
// error reported inside the response; only an infrastructure failure
// (the response itself cannot be written) exits non-zero.
var engineCmd = &cobra.Command{
	Use:    "engine",
	Short:  "Render one template and emit the JSON response (worker process)",
	Hidden: true,
	RunE:   runEngine,
}

func init() {
	rootCmd.AddCommand(engineCmd)

	engineCmd.Flags().StringVar(&engineTemplatePath, "template", "", "Path to the template file")
	engineCmd.Flags().StringVar(&engineContextPath, "context", "", "Path to the JSON context file")
}

func runEngine(cmd *cobra.Command, args []string) error {
	resp := engine.Render(engineTemplatePath, engineContextPath)

	encoder := json.NewEncoder(os.Stdout)
	if err := encoder.Encode(resp); err != nil {
		_, _ = os.Stderr.WriteString(err.Error())
		os.Exit(1)
	}
	return nil
}
