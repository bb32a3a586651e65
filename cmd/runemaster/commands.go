package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/runemaster/dag"
	"github.com/kbukum/runemaster/logger"
	"github.com/kbukum/runemaster/manager"
	"github.com/kbukum/runemaster/version"
)

// cli carries state shared by every command.
type cli struct {
	configFile string
	// log overrides the logger built from config.
	log *logger.Logger
}

// NewRootCommand builds the runemaster command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&cli{})
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "runemaster",
		Short:         "Compose, store and run data pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "Path to config.yml")
	RegisterCommands(root, c)
	return root
}

// RegisterCommands adds all available commands to the root command.
func RegisterCommands(root *cobra.Command, c *cli) {
	root.AddCommand(NewPipelinesCommand(c))
	root.AddCommand(NewTasksCommand(c))
	root.AddCommand(NewApplyCommand(c))
	root.AddCommand(NewRunCommand(c))
	root.AddCommand(NewTypesCommand(c))
	root.AddCommand(NewServeCommand(c))
	root.AddCommand(NewVersionCommand())
}

// withManager loads config, starts the components and runs fn.
func (c *cli) withManager(cmd *cobra.Command, fn func(ctx context.Context, m *manager.Manager) error) error {
	cfg, err := loadConfig(c.configFile)
	if err != nil {
		return err
	}
	w, err := newWiring(cfg, c.log)
	if err != nil {
		return err
	}
	return w.RunTask(cmd.Context(), fn)
}

// NewPipelinesCommand creates the pipelines command.
func NewPipelinesCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "List or remove stored pipelines",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
				pipelines, err := m.ListPipelines(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), pipelines)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm NAME",
		Short: "Remove a pipeline with its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
				if err := m.RemovePipeline(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pipeline %s removed\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

// NewTasksCommand creates the tasks command.
func NewTasksCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List or remove the tasks of a pipeline",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the tasks of a pipeline in step order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, err := cmd.Flags().GetString("pipeline")
			if err != nil {
				return err
			}
			return c.withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
				tasks, err := m.ListTasks(ctx, pipeline)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tasks)
			})
		},
	}
	list.Flags().StringP("pipeline", "p", "", "Pipeline name")
	_ = list.MarkFlagRequired("pipeline")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm PIPELINE TASK",
		Short: "Remove a task and reconnect its neighbours",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
				if _, err := m.RemoveTask(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "task %s removed from %s\n", args[1], args[0])
				return nil
			})
		},
	})
	return cmd
}

// NewApplyCommand creates the apply command. A definition is read from -f or
// looked up by pipeline name in the --dir directories.
func NewApplyCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply (-f FILE | NAME)",
		Short: "Create or replace a pipeline from a YAML or JSON definition",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := cmd.Flags().GetString("file")
			if err != nil {
				return err
			}
			dirs, err := cmd.Flags().GetStringSlice("dir")
			if err != nil {
				return err
			}
			def, err := resolveDefinition(file, args, dirs)
			if err != nil {
				return err
			}
			return c.withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
				p, err := m.Apply(ctx, def)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pipeline %s applied (%d tasks)\n", p.Key(), len(p.Tasks()))
				return nil
			})
		},
	}
	cmd.Flags().StringP("file", "f", "", "Definition file")
	cmd.Flags().StringSlice("dir", []string{"pipelines"}, "Directories searched for NAME.yaml or NAME.yml")
	return cmd
}

func resolveDefinition(file string, args, dirs []string) (*dag.Definition, error) {
	switch {
	case file != "" && len(args) > 0:
		return nil, fmt.Errorf("apply: use either -f or NAME, not both")
	case file != "":
		return dag.LoadDefinition(file)
	case len(args) == 1:
		return dag.NewFileDefinitionLoader(dirs...).Load(args[0])
	default:
		return nil, fmt.Errorf("apply: a definition file (-f) or pipeline NAME is required")
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run NAME",
		Short: "Run a pipeline to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
				res, err := m.RunPipeline(ctx, args[0])
				if res != nil {
					if perr := printJSON(cmd.OutOrStdout(), res); perr != nil && err == nil {
						err = perr
					}
				}
				return err
			})
		},
	}
}

// NewTypesCommand creates the types command.
func NewTypesCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered task types and their attributes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withManager(cmd, func(_ context.Context, m *manager.Manager) error {
				return printJSON(cmd.OutOrStdout(), m.ListTypes())
			})
		},
	}
}

// NewServeCommand creates the serve command.
func NewServeCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c.configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				port, _ := cmd.Flags().GetInt("port")
				cfg.Server.Port = port
			}
			w, err := newWiring(cfg, c.log, withServer())
			if err != nil {
				return err
			}
			return w.Serve(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 0, "Listen port (overrides server.port)")
	return cmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}

func printJSON(w io.Writer, v any) error {
	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(formatted))
	return err
}
