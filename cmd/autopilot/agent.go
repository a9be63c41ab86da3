package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agents on the API",
}

var agentCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentCreate,
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	RunE:  runAgentList,
}

var agentAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent changes made to the agent",
	RunE:  runAgentAudit,
}

var auditLimit int

func init() {
	agentCmd.AddCommand(agentCreateCmd, agentListCmd, agentAuditCmd)
	agentAuditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Number of records to show")
}

func runAgentCreate(cmd *cobra.Command, args []string) error {
	a, err := newClient().CreateAgent(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Created agent: %s\n", a.ID)
	fmt.Printf("Use it with --agent %s or set agent_id in %s/config.yaml\n", a.ID, cfg.Dir)
	return nil
}

func runAgentList(cmd *cobra.Command, args []string) error {
	agents, err := newClient().ListAgents(cmd.Context())
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("No agents found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTASKS")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%d\n", a.ID, truncate(a.Name, 40), len(a.Autonomous))
	}
	return w.Flush()
}

func runAgentAudit(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireAgent(); err != nil {
		return err
	}
	recs, err := newClient().GetAuditLog(cmd.Context(), cfg.AgentID, auditLimit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No audit records")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tDETAILS")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Timestamp.Local().Format("Jan 02 15:04:05"), r.Action, r.Outcome, truncate(r.Details, 60))
	}
	return w.Flush()
}
