package commands

import (
	"github.com/spf13/cobra"

	"github.com/dgower/olbridge/internal/bridge"
)

var foldersAccount string

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List the folder tree",
	Long:  `List every folder in the store as a tree, with item counts.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.ListFolders(foldersAccount)
		})
	},
}

func init() {
	foldersCmd.Flags().StringVar(&foldersAccount, "filter-account", "",
		"Only list folders under this account")
}
