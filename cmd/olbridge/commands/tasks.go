package commands

import (
	"github.com/spf13/cobra"

	"github.com/dgower/olbridge/internal/bridge"
)

var (
	tasksAll   bool
	tasksLimit int
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks",
	Long:  `List open tasks ordered by due date. Use --all to include completed ones.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.ListTasks(tasksAll, tasksLimit)
		})
	},
}

func init() {
	tasksCmd.Flags().BoolVarP(&tasksAll, "all", "a", false,
		"Include completed tasks")
	tasksCmd.Flags().IntVarP(&tasksLimit, "limit", "n", 50,
		"Maximum number of tasks to list")
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage individual tasks",
}

func init() {
	taskCmd.AddCommand(taskGetCmd)
	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskEditCmd)
	taskCmd.AddCommand(taskCompleteCmd)
	taskCmd.AddCommand(taskDeleteCmd)
}

var taskGetCmd = &cobra.Command{
	Use:   "get <entry-id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.GetTask(args[0])
		})
	},
}

var (
	taskSubject  string
	taskBody     string
	taskDue      string
	taskPriority string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.CreateTask(bridge.CreateTaskRequest{
				Subject:  taskSubject,
				Body:     taskBody,
				DueDate:  taskDue,
				Priority: taskPriority,
			})
		})
	},
}

func init() {
	f := taskCreateCmd.Flags()
	f.StringVar(&taskSubject, "subject", "", "Task subject")
	f.StringVar(&taskBody, "body", "", "Task body")
	f.StringVar(&taskDue, "due", "", "Due date (2006-01-02)")
	f.StringVar(&taskPriority, "priority", "",
		"Priority: low, normal, high")
}

var (
	taskEditSubject  string
	taskEditBody     string
	taskEditDue      string
	taskEditPriority string
	taskEditStatus   string
	taskEditPercent  int
)

var taskEditCmd = &cobra.Command{
	Use:   "edit <entry-id>",
	Short: "Edit a task",
	Long: `Edit a task. Only the fields whose flags are set change. Setting
status to complete or percent to 100 marks the task done; lowering the
percent on a completed task reopens it.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskEdit,
}

func init() {
	f := taskEditCmd.Flags()
	f.StringVar(&taskEditSubject, "subject", "", "New subject")
	f.StringVar(&taskEditBody, "body", "", "New body")
	f.StringVar(&taskEditDue, "due", "", "New due date (2006-01-02)")
	f.StringVar(&taskEditPriority, "priority", "",
		"New priority: low, normal, high")
	f.StringVar(&taskEditStatus, "status", "",
		"New status: not_started, in_progress, complete, waiting, deferred")
	f.IntVar(&taskEditPercent, "percent", 0, "New percent complete")
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	var req bridge.UpdateTaskRequest

	if cmd.Flags().Changed("subject") {
		req.Subject = &taskEditSubject
	}
	if cmd.Flags().Changed("body") {
		req.Body = &taskEditBody
	}
	if cmd.Flags().Changed("due") {
		req.DueDate = &taskEditDue
	}
	if cmd.Flags().Changed("priority") {
		req.Priority = &taskEditPriority
	}
	if cmd.Flags().Changed("status") {
		req.Status = &taskEditStatus
	}
	if cmd.Flags().Changed("percent") {
		req.PercentComplete = &taskEditPercent
	}

	return runOp(func(b *bridge.Bridge) (any, error) {
		return b.UpdateTask(args[0], req)
	})
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <entry-id>",
	Short: "Mark a task complete",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.CompleteTask(args[0])
		})
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <entry-id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.DeleteTask(args[0])
		})
	},
}
