package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/user/commentflow/internal/types"
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("addr", "http://localhost:8080", "address of the running daemon")
	simulateCmd.Flags().String("media", "", "media ID (required)")
	simulateCmd.Flags().String("comment-id", "", "comment ID (generated when empty)")
	simulateCmd.Flags().String("parent", "", "parent comment ID")
	simulateCmd.Flags().String("user", "sim-user", "author user ID")
	simulateCmd.Flags().String("username", "simulator", "author username")
	_ = simulateCmd.MarkFlagRequired("media")
}

// simulateCmd feeds a synthetic comment into a running daemon through the
// direct ingest endpoint, for exercising the pipeline without Meta.
var simulateCmd = &cobra.Command{
	Use:   "simulate <text>",
	Short: "Inject a synthetic comment into a running daemon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		mediaID, _ := cmd.Flags().GetString("media")
		commentID, _ := cmd.Flags().GetString("comment-id")
		parent, _ := cmd.Flags().GetString("parent")
		user, _ := cmd.Flags().GetString("user")
		username, _ := cmd.Flags().GetString("username")

		if commentID == "" {
			commentID = "sim-" + uuid.NewString()
		}

		event := &types.InboundEvent{
			EventID:   types.EventID("sim:" + commentID),
			MediaID:   types.MediaID(mediaID),
			CommentID: types.CommentID(commentID),
			ParentID:  types.CommentID(parent),
			AuthorID:  user,
			Username:  username,
			Text:      args[0],
			Timestamp: time.Now().Unix(),
		}

		body, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}

		resp, err := http.Post(addr+"/ingest", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post event: %w", err)
		}
		defer resp.Body.Close()

		out, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stdout, "%s: %s", resp.Status, out)
		return nil
	},
}
