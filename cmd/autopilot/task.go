package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fentz26/autopilot/internal/confirm"
	"github.com/fentz26/autopilot/internal/models"
	"github.com/fentz26/autopilot/internal/taskform"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage autonomous tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [task-id]",
	Short: "Edit a task; only the flags given are changed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete [task-id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var taskToggleCmd = &cobra.Command{
	Use:   "toggle [task-id]",
	Short: "Enable or pause a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskToggle,
}

var taskLogsCmd = &cobra.Command{
	Use:   "logs [task-id]",
	Short: "Show a task's execution log",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskLogs,
}

var taskExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all tasks as YAML",
	RunE:  runTaskExport,
}

var taskImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace all tasks with the ones in a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskImport,
}

var (
	taskName       string
	taskDesc       string
	taskPrompt     string
	taskPromptFile string
	taskMinutes    int
	taskCron       string
	taskEnabled    bool
	assumeYes      bool
	exportPath     string
)

// taskFile is the export/import document.
type taskFile struct {
	Agent string        `yaml:"agent,omitempty"`
	Tasks []models.Task `yaml:"tasks"`
}

func init() {
	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskAddCmd, taskEditCmd, taskDeleteCmd,
		taskToggleCmd, taskLogsCmd, taskExportCmd, taskImportCmd)

	for _, c := range []*cobra.Command{taskAddCmd, taskEditCmd} {
		c.Flags().StringVar(&taskName, "name", "", "Task name")
		c.Flags().StringVar(&taskDesc, "desc", "", "Task description")
		c.Flags().StringVar(&taskPrompt, "prompt", "", "Prompt the agent runs")
		c.Flags().StringVar(&taskPromptFile, "prompt-file", "", "Read the prompt from a file")
		c.Flags().IntVar(&taskMinutes, "minutes", 0, "Run every N minutes (at least 5)")
		c.Flags().StringVar(&taskCron, "cron", "", "Run on a cron schedule")
		c.Flags().BoolVar(&taskEnabled, "enabled", true, "Whether the task runs")
		c.MarkFlagsMutuallyExclusive("minutes", "cron")
		c.MarkFlagsMutuallyExclusive("prompt", "prompt-file")
	}

	taskDeleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	taskToggleCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	taskImportCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	taskExportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Write to file instead of stdout")
}

func runTaskList(cmd *cobra.Command, args []string) error {
	o, err := loadTasks(cmd.Context())
	if err != nil {
		return err
	}

	tasks := o.Tasks()
	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tSTATUS")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, truncate(t.Name, 40), t.Schedule, status(t))
	}
	return w.Flush()
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	o, err := loadTasks(cmd.Context())
	if err != nil {
		return err
	}
	t, ok := o.Task(args[0])
	if !ok {
		return fmt.Errorf("task %s not found", args[0])
	}

	fmt.Printf("ID:          %s\n", t.ID)
	fmt.Printf("Name:        %s\n", t.Name)
	if t.Description != "" {
		fmt.Printf("Description: %s\n", t.Description)
	}
	fmt.Printf("Schedule:    %s\n", t.Schedule)
	fmt.Printf("Status:      %s\n", status(t))
	if next, err := t.Schedule.Next(time.Now()); err == nil && t.Enabled {
		fmt.Printf("Next run:    %s\n", next.Local().Format("Mon Jan 2 15:04"))
	}
	fmt.Println("\n--- PROMPT ---")
	fmt.Println(t.Prompt)
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	form := taskform.New()
	form.OpenAdd()
	if err := applyFlags(cmd, form); err != nil {
		return err
	}
	task, err := submit(form)
	if err != nil {
		return err
	}

	o, err := loadTasks(cmd.Context())
	if err != nil {
		return err
	}
	stored, err := o.Add(cmd.Context(), task)
	if err != nil {
		return err
	}
	fmt.Printf("Created task: %s\n", stored.ID)
	return nil
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	o, err := loadTasks(cmd.Context())
	if err != nil {
		return err
	}
	existing, ok := o.Task(args[0])
	if !ok {
		return fmt.Errorf("task %s not found", args[0])
	}

	form := taskform.New()
	form.OpenEdit(existing)
	if err := applyFlags(cmd, form); err != nil {
		return err
	}
	task, err := submit(form)
	if err != nil {
		return err
	}

	if err := o.Edit(cmd.Context(), task); err != nil {
		return err
	}
	fmt.Printf("Updated task: %s\n", task.ID)
	return nil
}

// applyFlags copies the flags the user set into form.
func applyFlags(cmd *cobra.Command, form *taskform.Form) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		form.SetName(taskName)
	}
	if flags.Changed("desc") {
		form.SetDescription(taskDesc)
	}
	if flags.Changed("prompt") {
		form.SetPrompt(taskPrompt)
	}
	if flags.Changed("prompt-file") {
		data, err := os.ReadFile(taskPromptFile)
		if err != nil {
			return fmt.Errorf("read prompt: %w", err)
		}
		form.SetPrompt(strings.TrimSpace(string(data)))
	}
	if flags.Changed("minutes") {
		form.SetScheduleType(taskform.ScheduleMinutes)
		form.SetMinutes(taskMinutes)
	}
	if flags.Changed("cron") {
		form.SetScheduleType(taskform.ScheduleCron)
		form.SetCron(taskCron)
	}
	if flags.Changed("enabled") {
		form.SetEnabled(taskEnabled)
	}
	return nil
}

func submit(form *taskform.Form) (models.Task, error) {
	task, ok := form.Submit()
	if !ok {
		return models.Task{}, fmt.Errorf("invalid task: %s", strings.Join(form.Problems(), "; "))
	}
	return task, nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	o, err := loadTasks(cmd.Context())
	if err != nil {
		return err
	}
	t, ok := o.Task(args[0])
	if !ok {
		return fmt.Errorf("task %s not found", args[0])
	}

	return confirmed(confirm.Prompt{
		Title:        "Delete task",
		Message:      fmt.Sprintf("Delete %q? Its schedule stops immediately.", t.Name),
		ConfirmLabel: "Delete",
		Severity:     confirm.SeverityDanger,
	}, assumeYes, func() error {
		if err := o.Delete(cmd.Context(), t.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted task: %s\n", t.ID)
		return nil
	})
}

func runTaskToggle(cmd *cobra.Command, args []string) error {
	o, err := loadTasks(cmd.Context())
	if err != nil {
		return err
	}
	t, ok := o.Task(args[0])
	if !ok {
		return fmt.Errorf("task %s not found", args[0])
	}

	toggle := func() error {
		toggled, err := o.Toggle(cmd.Context(), t.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Task %s is now %s\n", toggled.ID, status(toggled))
		return nil
	}
	if !t.Enabled {
		return toggle()
	}
	return confirmed(confirm.Prompt{
		Title:        "Pause task",
		Message:      fmt.Sprintf("Pause %q? It will not run until enabled again.", t.Name),
		ConfirmLabel: "Pause",
		Severity:     confirm.SeverityWarning,
	}, assumeYes, toggle)
}

func runTaskLogs(cmd *cobra.Command, args []string) error {
	o, err := loadTasks(cmd.Context())
	if err != nil {
		return err
	}
	if _, ok := o.Task(args[0]); !ok {
		return fmt.Errorf("task %s not found", args[0])
	}

	st, _ := o.FetchLogs(cmd.Context(), args[0])
	if st.Err != nil {
		return fmt.Errorf("fetch logs: %w", st.Err)
	}
	if len(st.Messages) == 0 {
		fmt.Println("No logs yet. This task has not run.")
		return nil
	}

	for _, m := range st.Messages {
		fmt.Printf("%s  %-7s  %s\n", m.CreatedAt.Local().Format("Jan 02 15:04"), m.AuthorType, truncate(m.Message, 120))
		for _, sc := range m.SkillCalls {
			result := "ok"
			if !sc.Success {
				result = "failed"
			}
			fmt.Printf("    skill %s (%s)\n", sc.Name, result)
		}
	}
	return nil
}

func runTaskExport(cmd *cobra.Command, args []string) error {
	o, err := loadTasks(cmd.Context())
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(taskFile{Agent: o.AgentID(), Tasks: o.Tasks()})
	if err != nil {
		return err
	}
	if exportPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(exportPath, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Exported %d tasks to %s\n", len(o.Tasks()), exportPath)
	return nil
}

func runTaskImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var doc taskFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	if err := validateImport(doc.Tasks); err != nil {
		return err
	}

	o, err := loadTasks(cmd.Context())
	if err != nil {
		return err
	}
	return confirmed(confirm.Prompt{
		Title:        "Import tasks",
		Message:      fmt.Sprintf("Replace %d existing tasks with %d from %s?", len(o.Tasks()), len(doc.Tasks), args[0]),
		ConfirmLabel: "Replace",
		Severity:     confirm.SeverityDanger,
	}, assumeYes, func() error {
		if err := o.ReplaceAll(cmd.Context(), doc.Tasks); err != nil {
			return err
		}
		fmt.Printf("Imported %d tasks\n", len(doc.Tasks))
		return nil
	})
}

// validateImport runs each task through the form rules so a bad file is
// rejected before anything is sent.
func validateImport(tasks []models.Task) error {
	var errs []error
	for i, t := range tasks {
		form := taskform.New()
		form.OpenEdit(t)
		if !form.Valid() {
			errs = append(errs, fmt.Errorf("task %d (%s): %s", i+1, t.Name, strings.Join(form.Problems(), "; ")))
		}
	}
	return errors.Join(errs...)
}

func status(t models.Task) string {
	if t.Enabled {
		return "enabled"
	}
	return "paused"
}
