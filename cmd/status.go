package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3gx/ccslack/internal/render"
	"github.com/3gx/ccslack/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync cursor state for known conversations",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	st, err := store.Open(storePath())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	convs, err := st.Conversations()
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("  No conversations synced yet.")
		return nil
	}

	for _, ci := range convs {
		fmt.Println()
		fmt.Println(render.StatusLine("conversation", ci.Key))
		fmt.Println(render.StatusLine("log", ci.LogPath))
		fmt.Println(render.StatusLine("offset", fmt.Sprintf("%d bytes", ci.Offset)))
		fmt.Println(render.StatusLine("delivered", fmt.Sprintf("%d items", ci.Delivered)))
		fmt.Println(render.StatusLine("updated", ci.UpdatedAt))
	}
	fmt.Println()
	return nil
}
