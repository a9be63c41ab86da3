package main

import (
	"fmt"
	"strings"

	"github.com/fentz26/autopilot/internal/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse the execution history of all tasks",
	RunE:  runHistory,
}

var (
	historySearch  string
	historyType    string
	historyTask    string
	historyGrouped bool
)

func init() {
	historyCmd.Flags().StringVarP(&historySearch, "search", "s", "", "Match message text or task name")
	historyCmd.Flags().StringVarP(&historyType, "type", "t", "all", "Author type (all, trigger, agent, skill, system)")
	historyCmd.Flags().StringVar(&historyTask, "task", "", "Only show one task")
	historyCmd.Flags().BoolVarP(&historyGrouped, "grouped", "g", false, "Group messages by task")
}

func runHistory(cmd *cobra.Command, args []string) error {
	typ, err := history.ParseTypeFilter(historyType)
	if err != nil {
		return err
	}

	o, err := loadTasks(cmd.Context())
	if err != nil {
		return err
	}
	if historyTask != "" {
		if _, ok := o.Task(historyTask); !ok {
			return fmt.Errorf("task %s not found", historyTask)
		}
	}

	entries, err := o.LoadAllHistory(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No execution history yet.")
		return nil
	}

	res := history.Apply(entries, history.Criteria{Search: historySearch, Type: typ, TaskID: historyTask})

	var counts []string
	for _, gc := range res.Counts() {
		counts = append(counts, fmt.Sprintf("%s (%d)", label(gc.TaskName, gc.TaskID), gc.Count))
	}
	fmt.Println(strings.Join(counts, " · "))
	fmt.Println()

	if len(res.Messages) == 0 {
		fmt.Println("No messages match the current filters.")
		return nil
	}

	if !historyGrouped {
		for _, e := range res.Messages {
			printEntry(e, true)
		}
		return nil
	}

	for pair := res.Groups.Oldest(); pair != nil; pair = pair.Next() {
		if historyTask != "" && pair.Key != historyTask {
			continue
		}
		name := pair.Key
		if len(pair.Value) > 0 {
			name = label(pair.Value[0].TaskName, pair.Key)
		}
		fmt.Printf("=== %s ===\n", name)
		for _, e := range pair.Value {
			printEntry(e, false)
		}
		fmt.Println()
	}
	return nil
}

func printEntry(e history.Entry, withTask bool) {
	m := e.Message
	line := fmt.Sprintf("%s  %-7s  ", m.CreatedAt.Local().Format("Jan 02 15:04"), m.AuthorType)
	if withTask {
		line += fmt.Sprintf("[%s]  ", label(e.TaskName, history.UnknownTask))
	}
	fmt.Println(line + truncate(m.Message, 100))
}

func label(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
