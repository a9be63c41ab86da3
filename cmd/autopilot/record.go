package main

import (
	"fmt"
	"strings"

	"github.com/fentz26/autopilot/internal/history"
	"github.com/fentz26/autopilot/internal/models"
	"github.com/spf13/cobra"
)

var taskRecordCmd = &cobra.Command{
	Use:   "record [task-id] [message]",
	Short: "Append an execution record to a task's log",
	Long: `Appends one message to the task's execution channel. Useful for feeding
the local daemon, which never runs tasks itself.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTaskRecord,
}

var (
	recordAuthor  string
	recordTokens  int
	recordCredits float64
)

func init() {
	taskCmd.AddCommand(taskRecordCmd)
	taskRecordCmd.Flags().StringVar(&recordAuthor, "author", "agent", "Author type (trigger, agent, skill, system)")
	taskRecordCmd.Flags().IntVar(&recordTokens, "tokens", 0, "Output tokens spent")
	taskRecordCmd.Flags().Float64Var(&recordCredits, "credits", 0, "Credits spent")
}

func runTaskRecord(cmd *cobra.Command, args []string) error {
	typ, err := history.ParseTypeFilter(recordAuthor)
	if err != nil || typ == history.TypeAll {
		return fmt.Errorf("invalid author %q", recordAuthor)
	}

	o, err := loadTasks(cmd.Context())
	if err != nil {
		return err
	}
	if _, ok := o.Task(args[0]); !ok {
		return fmt.Errorf("task %s not found", args[0])
	}

	msg := models.ExecutionMessage{
		AuthorType:   models.AuthorType(typ),
		Message:      strings.Join(args[1:], " "),
		OutputTokens: recordTokens,
		CreditCost:   recordCredits,
	}
	stored, err := newClient().PostChatMessage(cmd.Context(), cfg.AgentID, models.ChannelID(args[0]), msg)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded message %s\n", stored.ID)
	return nil
}
