package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-mastery/internal/curriculum"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "curriculumctl",
		Short:         "Inspect and validate curriculum documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCmd(), newStagesCmd(), newTopicsCmd(), newPrereqsCmd(), newOrderCmd())
	return root
}

// load reads a curriculum leniently. Loader warnings go to stderr unless
// quiet is set, in which case the caller reports defects itself.
func load(cmd *cobra.Command, path string, quiet bool) (*curriculum.Graph, error) {
	handler := slog.DiscardHandler
	if !quiet {
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})
	}
	return curriculum.Load(path, curriculum.LoadOptions{Logger: slog.New(handler)})
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Check a curriculum file or directory for schema and graph defects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strict, _ := cmd.Flags().GetBool("strict")
			g, err := load(cmd, args[0], true)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			defects := g.Validate()
			if defects == nil {
				fmt.Fprintf(out, "ok: %d topics\n", g.Len())
				return nil
			}
			for _, line := range strings.Split(defects.Error(), "\n") {
				fmt.Fprintf(out, "defect: %s\n", line)
			}
			if strict {
				return errors.New("curriculum has defects")
			}
			fmt.Fprintf(out, "%d topics loaded with defects\n", g.Len())
			return nil
		},
	}
	cmd.Flags().Bool("strict", false, "Exit non-zero on dangling prerequisites or cycles")
	return cmd
}

func newStagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages <path>",
		Short: "List stages and their grades with topic counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := load(cmd, args[0], false)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, stage := range g.Stages() {
				fmt.Fprintln(out, stage)
				for _, grade := range g.Grades(stage) {
					topics, _ := g.ListTopics(stage, grade)
					fmt.Fprintf(out, "  %-12s  %d topics\n", grade, len(topics))
				}
			}
			return nil
		},
	}
}

func newTopicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics <path>",
		Short: "List topics, optionally for one stage and grade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, _ := cmd.Flags().GetString("stage")
			grade, _ := cmd.Flags().GetString("grade")

			g, err := load(cmd, args[0], false)
			if err != nil {
				return err
			}

			var topics []curriculum.Topic
			switch {
			case stage == "" && grade != "":
				return fmt.Errorf("--grade needs --stage")
			case stage != "":
				var ok bool
				if topics, ok = g.ListTopics(stage, grade); !ok {
					return fmt.Errorf("%w: %s/%s", curriculum.ErrGradeNotFound, stage, grade)
				}
			default:
				topics = g.AllTopics()
			}

			printTopics(cmd.OutOrStdout(), topics)
			return nil
		},
	}
	cmd.Flags().String("stage", "", "Stage name (e.g. secondary)")
	cmd.Flags().String("grade", "", "Grade name within the stage (e.g. form-1)")
	return cmd
}

func newPrereqsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prereqs <path> <topic-id>",
		Short: "Show the transitive prerequisites of a topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := load(cmd, args[0], false)
			if err != nil {
				return err
			}
			topic, err := g.Topic(args[1])
			if err != nil {
				return err
			}

			var topics []curriculum.Topic
			for _, id := range g.Resolve(topic.ID) {
				t, _ := g.FindTopic(id)
				topics = append(topics, t)
			}
			printTopics(cmd.OutOrStdout(), topics)
			return nil
		},
	}
}

func newOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order <path>",
		Short: "Print every topic with prerequisites before dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := load(cmd, args[0], false)
			if err != nil {
				return err
			}
			printTopics(cmd.OutOrStdout(), g.TopologicalOrder())
			return nil
		},
	}
}

func printTopics(w io.Writer, topics []curriculum.Topic) {
	fmt.Fprintf(w, "%-12s  %-32s  %-12s  %-10s  %s\n", "ID", "Name", "Stage", "Grade", "Prerequisites")
	fmt.Fprintln(w, strings.Repeat("─", 90))
	for _, t := range topics {
		name := t.Name
		if r := []rune(name); len(r) > 32 {
			name = string(r[:29]) + "..."
		}
		fmt.Fprintf(w, "%-12s  %-32s  %-12s  %-10s  %s\n",
			t.ID, name, t.Stage, t.Grade, strings.Join(t.Prerequisites, ","))
	}
	fmt.Fprintf(w, "\n%d topics\n", len(topics))
}
