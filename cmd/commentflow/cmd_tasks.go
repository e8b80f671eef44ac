package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/commentflow/internal/pipeline"
	"github.com/user/commentflow/internal/state"
	"github.com/user/commentflow/internal/types"
)

func init() {
	rootCmd.AddCommand(taskCmd, commentCmd, mediaCmd)
	taskCmd.AddCommand(taskListCmd, taskRetryCmd, taskCancelCmd)
	commentCmd.AddCommand(commentListCmd, commentCancelCmd)
	mediaCmd.AddCommand(mediaEnableCmd, mediaDisableCmd)

	taskListCmd.Flags().String("status", "", "filter by status (queued, running, dead, ...)")
	commentListCmd.Flags().String("status", "", "filter by status (classifying, actioned, failed, ...)")
}

// adminPipeline builds a pipeline over the stores only, enough for the
// administrative operations (retry, cancel) that never touch agents.
func adminPipeline() (*pipeline.Pipeline, *state.TaskStore, *state.CommentStore, *state.MediaStore) {
	cfg := loadConfig()
	comments := state.NewCommentStore(cfg.DataDir)
	media := state.NewMediaStore(cfg.DataDir)
	tasks := state.NewTaskStore(cfg.DataDir)
	outcomes := state.NewOutcomeStore(cfg.DataDir)
	pipe := pipeline.New(pipeline.Deps{
		Comments: comments,
		Media:    media,
		Tasks:    tasks,
		Outcomes: outcomes,
	}, pipeline.Options{})
	return pipe, tasks, comments, media
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect and manage queue tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		_, tasks, _, _ := adminPipeline()

		list, err := tasks.ListByStatus(context.Background(), types.TaskStatus(status))
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No tasks.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSTATUS\tATTEMPTS\tCOMMENT\tLAST ERROR")
		for _, t := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				t.ID, t.Kind, t.Status, t.Attempts, t.CommentID, t.LastError)
		}
		return w.Flush()
	},
}

var taskRetryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Requeue a dead task with a fresh attempt budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, _, _, _ := adminPipeline()
		if err := pipe.RetryDeadTask(context.Background(), types.TaskID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Task %s requeued.\n", args[0])
		return nil
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a queued task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, tasks, _, _ := adminPipeline()
		if err := tasks.Cancel(context.Background(), types.TaskID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Task %s cancelled.\n", args[0])
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Inspect and manage comments",
}

var commentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List comments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		_, _, comments, _ := adminPipeline()

		list, err := comments.List(context.Background())
		if err != nil {
			return fmt.Errorf("list comments: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMEDIA\tUSER\tSTATUS\tTEXT")
		for _, c := range list {
			if status != "" && c.Status != types.CommentStatus(status) {
				continue
			}
			text := c.Text
			if len(text) > 60 {
				text = text[:60] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t@%s\t%s\t%s\n",
				c.ID, c.MediaID, c.Username, c.Status, text)
		}
		return w.Flush()
	},
}

var commentCancelCmd = &cobra.Command{
	Use:   "cancel <comment-id>",
	Short: "Withdraw a comment from processing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, _, _, _ := adminPipeline()
		if err := pipe.CancelComment(context.Background(), types.CommentID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Comment %s cancelled.\n", args[0])
		return nil
	},
}

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage per-media processing",
}

var mediaEnableCmd = &cobra.Command{
	Use:   "enable <media-id>",
	Short: "Enable comment processing for a media",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setProcessing(args[0], true) },
}

var mediaDisableCmd = &cobra.Command{
	Use:   "disable <media-id>",
	Short: "Disable comment processing for a media",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setProcessing(args[0], false) },
}

func setProcessing(id string, enabled bool) error {
	ctx := context.Background()
	_, _, _, media := adminPipeline()

	m, err := media.Get(ctx, types.MediaID(id))
	if err != nil {
		return err
	}
	if m == nil {
		m = &types.Media{ID: types.MediaID(id)}
	}
	m.ProcessingEnabled = enabled
	if err := media.Put(ctx, m); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(os.Stdout, "Processing %s for media %s.\n", state, id)
	return nil
}
