package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Yibooo/mission-control/internal/config"
	"github.com/Yibooo/mission-control/internal/pipeline"
	"github.com/Yibooo/mission-control/internal/store"
)

// salesctl is the operator's terminal companion to the dashboard: kick off
// runs, review pending drafts and approve or reject them without leaving the
// shell.

var (
	baseURL    string
	jsonOutput bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "salesctl",
		Short:         "Operate the mission-control sales pipeline from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "api", "", "mission-control API base URL (default from MISSION_CONTROL_URL)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON responses")

	root.AddCommand(runCmd())
	root.AddCommand(leadsCmd())
	root.AddCommand(draftsCmd())
	root.AddCommand(approvalsCmd())
	root.AddCommand(approveCmd())
	root.AddCommand(rejectCmd())
	root.AddCommand(sentCmd())
	root.AddCommand(submitCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(logsCmd())
	return root
}

func runCmd() *cobra.Command {
	var targetArea string
	var maxLeads int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a lead-generation run and wait for the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result pipeline.RunResult
			body := map[string]any{"targetArea": targetArea, "maxLeads": maxLeads}
			if err := apiClient().post("/pipeline/run", body, &result); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(result)
			}
			fmt.Printf("leads created:    %d\n", result.LeadsCreated)
			fmt.Printf("drafts created:   %d\n", result.DraftsCreated)
			fmt.Printf("forms found:      %d\n", result.FormURLsFound)
			fmt.Printf("captcha detected: %d\n", result.CaptchaDetected)
			for _, message := range result.Errors {
				fmt.Printf("error: %s\n", message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&targetArea, "area", "", "target area for the search queries")
	cmd.Flags().IntVar(&maxLeads, "max-leads", 0, "stop after this many new leads (0 = server default)")
	return cmd
}

func leadsCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			var response struct {
				Leads []store.Lead `json:"leads"`
			}
			path := "/leads"
			if status != "" {
				path += "?status=" + status
			}
			if err := apiClient().get(path, &response); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(response)
			}
			for _, lead := range response.Leads {
				fmt.Printf("%s  %-16s  %s  %s\n", lead.ID, lead.Status, lead.CompanyName, lead.WebsiteURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by lead status")
	return cmd
}

func draftsCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "List email drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var response struct {
				Drafts []store.EmailDraft `json:"drafts"`
			}
			path := "/drafts"
			if status != "" {
				path += "?status=" + status
			}
			if err := apiClient().get(path, &response); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(response)
			}
			for _, draft := range response.Drafts {
				fmt.Printf("%s  %-9s  %s\n", draft.ID, draft.ApprovalStatus, draft.Subject)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by approval status")
	return cmd
}

func approvalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approvals",
		Short: "Show drafts waiting for review, with their lead context",
		RunE: func(cmd *cobra.Command, args []string) error {
			var response struct {
				Approvals []struct {
					Draft store.EmailDraft `json:"draft"`
					Lead  *store.Lead      `json:"lead"`
				} `json:"approvals"`
			}
			if err := apiClient().get("/approvals", &response); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(response)
			}
			for _, item := range response.Approvals {
				company := "(lead missing)"
				if item.Lead != nil {
					company = item.Lead.CompanyName
				}
				fmt.Printf("%s  %s\n", item.Draft.ID, company)
				fmt.Printf("    件名: %s\n", item.Draft.Subject)
				fmt.Printf("    %s\n", firstLine(item.Draft.Body))
			}
			return nil
		},
	}
}

func approveCmd() *cobra.Command {
	var editedBodyFile string
	cmd := &cobra.Command{
		Use:   "approve <draft-id>",
		Short: "Approve a pending draft, optionally replacing its body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{}
			if editedBodyFile != "" {
				edited, err := os.ReadFile(editedBodyFile)
				if err != nil {
					return err
				}
				body["editedBody"] = string(edited)
			}
			var draft store.EmailDraft
			if err := apiClient().post("/drafts/"+args[0]+"/approve", body, &draft); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(draft)
			}
			fmt.Printf("approved %s (%s)\n", draft.ID, draft.Subject)
			return nil
		},
	}
	cmd.Flags().StringVar(&editedBodyFile, "body-file", "", "file with the edited message body")
	return cmd
}

func rejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <draft-id>",
		Short: "Reject a pending draft and close its lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var draft store.EmailDraft
			if err := apiClient().post("/drafts/"+args[0]+"/reject", nil, &draft); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(draft)
			}
			fmt.Printf("rejected %s\n", draft.ID)
			return nil
		},
	}
}

func sentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sent <draft-id>",
		Short: "Mark an approved draft as sent manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var draft store.EmailDraft
			if err := apiClient().post("/drafts/"+args[0]+"/sent", nil, &draft); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(draft)
			}
			fmt.Printf("marked %s as sent\n", draft.ID)
			return nil
		},
	}
}

func submitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <draft-id>",
		Short: "Submit an approved draft through the lead's contact form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result pipeline.SubmitResult
			if err := apiClient().post("/drafts/"+args[0]+"/submit", nil, &result); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(result)
			}
			fmt.Println(result.Message)
			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show funnel statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats store.SalesStats
			if err := apiClient().get("/stats", &stats); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(stats)
			}
			fmt.Printf("leads:             %d\n", stats.TotalLeads)
			fmt.Printf("pending approvals: %d\n", stats.PendingApprovals)
			fmt.Printf("sent:              %d\n", stats.Sent)
			fmt.Printf("replied:           %d\n", stats.Replied)
			fmt.Printf("negotiating:       %d\n", stats.Negotiating)
			fmt.Printf("closed won:        %d\n", stats.ClosedWon)
			return nil
		},
	}
}

func logsCmd() *cobra.Command {
	var leadID string
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the activity log",
		RunE: func(cmd *cobra.Command, args []string) error {
			var response struct {
				Logs []store.SalesLog `json:"logs"`
			}
			path := fmt.Sprintf("/logs?limit=%d", limit)
			if leadID != "" {
				path += "&leadId=" + leadID
			}
			if err := apiClient().get(path, &response); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(response)
			}
			for _, entry := range response.Logs {
				fmt.Printf("%s  %-16s  %-10s  %s\n", entry.CreatedAt, entry.Event, entry.PerformedBy, entry.Detail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&leadID, "lead", "", "only logs for this lead")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries")
	return cmd
}

type client struct {
	baseURL string
	http    *http.Client
}

func apiClient() *client {
	url := baseURL
	if url == "" {
		_ = godotenv.Load()
		url = config.Load().APIBaseURL
	}
	return &client{
		baseURL: strings.TrimRight(url, "/"),
		http:    &http.Client{Timeout: 15 * time.Minute},
	}
}

func (c *client) get(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *client) post(path string, body any, out any) error {
	payload := []byte("{}")
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = encoded
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		message := strings.TrimSpace(string(data))
		if message == "" {
			message = resp.Status
		}
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, message)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func firstLine(s string) string {
	line := strings.SplitN(strings.TrimSpace(s), "\n", 2)[0]
	if len([]rune(line)) > 60 {
		runes := []rune(line)
		return string(runes[:60]) + "…"
	}
	return line
}
