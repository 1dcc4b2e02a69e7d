package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/conneroisu/refract/internal/cache"
	"github.com/conneroisu/refract/internal/config"
	"github.com/conneroisu/refract/internal/logging"
	"github.com/conneroisu/refract/internal/plugin"
	"github.com/conneroisu/refract/internal/transform"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Show the production build contribution",
	Long: `Print the compiler settings the plugin contributes to the host bundler
for a one-shot production build. Production builds bypass the transform
cache and refresh instrumentation entirely; the host's own compiler is
configured for an equivalent output shape instead.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

// recordingHost captures what the plugin contributes to the host.
type recordingHost struct {
	DisabledExtensions []string                `json:"disabled_extensions,omitempty"`
	PreBundled         []string                `json:"pre_bundled,omitempty"`
	Compiler           *plugin.CompilerSettings `json:"compiler,omitempty"`
}

func (h *recordingHost) DisableBuiltinTransform(extensions ...string) {
	h.DisabledExtensions = append(h.DisabledExtensions, extensions...)
}

func (h *recordingHost) PreBundle(specifiers ...string) {
	h.PreBundled = append(h.PreBundled, specifiers...)
}

func (h *recordingHost) ConfigureCompiler(settings plugin.CompilerSettings) {
	h.Compiler = &settings
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})

	store := cache.NewStore(logger)
	transformer := transform.NewExecTransformer(cfg.Transform.Command, cfg.Transform.Args)
	pipeline := transform.NewPipeline(store, transformer, cfg.Transform.Target, logger)
	adapter := plugin.New(cfg, plugin.ModeBuild, store, pipeline, transformer, logger)

	host := &recordingHost{}
	adapter.Configure(host)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(host)
}
