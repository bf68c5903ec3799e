package cli

import (
	"fmt"

	"github.com/gost-dom/rehire"
	"github.com/gost-dom/rehire/internal/config"
	"github.com/gost-dom/rehire/luahost"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <script.lua>...",
		Short: "Run Lua test scripts",
		Long: `Run Lua test scripts, each in a fresh Lua state with the global rehire
function installed. A script fails if it raises an error.

Example:
  rehire run spec/greeter_test.lua
  rehire run --format json --config rehire.yaml spec/*.lua`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScripts(opts, args, cmd)
		},
	}

	return cmd
}

func runScripts(opts *RunOptions, scripts []string, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	logger, err := cfg.Logger()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	defer logger.Sync() //nolint:errcheck
	prev := rehire.Logger()
	rehire.SetLogger(logger)
	defer rehire.SetLogger(prev)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var report RunReport
	for _, script := range scripts {
		res := ScriptResult{Script: script, Status: "ok"}
		if err := runScript(cfg, script); err != nil {
			logger.Debug("script failed", zap.String("script", script), zap.Error(err))
			res.Status = "fail"
			res.Error = err.Error()
			report.Failed++
		} else {
			report.Passed++
		}
		report.Results = append(report.Results, res)
	}

	if err := formatter.Report(report); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if report.Failed > 0 {
		return &ExitError{
			Code:    ExitFailure,
			Message: fmt.Sprintf("%d of %d scripts failed", report.Failed, len(scripts)),
		}
	}
	return nil
}

func runScript(cfg config.Config, script string) error {
	h, err := luahost.New(luahost.Config{Root: cfg.Dir, Path: cfg.LuaPath})
	if err != nil {
		return err
	}
	h.InstallGlobal(rehire.New(h, rehire.WithDir(h.Root())))
	return h.RunFile(script)
}
