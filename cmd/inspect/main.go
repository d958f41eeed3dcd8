package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/roastr-ai/roast-engine/internal/logging"
	"github.com/roastr-ai/roast-engine/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to roast_engine.db")
	commentID := flag.String("comment", "", "comment id to inspect")
	history := flag.Bool("history", true, "include attempt history")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" || *commentID == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/roast_engine.db --comment id [--history=false] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := run(context.Background(), st, *commentID, *history, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region collect

type responseRow struct {
	ID            string `json:"id"`
	AttemptNumber int    `json:"attempt_number"`
	Status        string `json:"status"`
	Parent        string `json:"parent_response_id,omitempty"`
	Mode          string `json:"mode,omitempty"`
	Method        string `json:"generation_method,omitempty"`
	TokensUsed    int    `json:"tokens_used"`
	Actor         string `json:"actor,omitempty"`
	Reason        string `json:"rejected_reason,omitempty"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
}

type historyRow struct {
	ResponseID    string `json:"response_id"`
	AttemptNumber int    `json:"attempt_number"`
	Status        string `json:"status"`
	Actor         string `json:"actor,omitempty"`
	Reason        string `json:"reason,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type report struct {
	CommentID     string        `json:"comment_id"`
	Organization  string        `json:"organization_id"`
	Text          string        `json:"original_text"`
	ToxicityScore float64       `json:"toxicity_score"`
	Regenerations int           `json:"regenerations"`
	Responses     []responseRow `json:"responses"`
	History       []historyRow  `json:"history,omitempty"`
}

func run(ctx context.Context, st *store.Store, commentID string, withHistory, jsonOut bool) error {
	c, err := st.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	responses, err := st.ListResponses(ctx, commentID)
	if err != nil {
		return err
	}
	regens, err := st.CountRegenerations(ctx, commentID)
	if err != nil {
		return err
	}

	rep := report{
		CommentID:     c.ID,
		Organization:  c.OrganizationID,
		Text:          c.Text,
		ToxicityScore: c.ToxicityScore,
		Regenerations: regens,
		Responses:     make([]responseRow, 0, len(responses)),
	}
	for _, r := range responses {
		rep.Responses = append(rep.Responses, responseRow{
			ID:            r.ID,
			AttemptNumber: r.AttemptNumber,
			Status:        string(r.Status),
			Parent:        r.ParentResponseID,
			Mode:          r.Mode,
			Method:        r.Method,
			TokensUsed:    r.TokensUsed,
			Actor:         r.Actor,
			Reason:        r.RejectReason,
			Text:          r.Text,
			CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		})
	}

	if withHistory {
		audit, err := logging.NewAuditLog(st.DB())
		if err != nil {
			return err
		}
		entries, err := audit.History(ctx, commentID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			rep.History = append(rep.History, historyRow{
				ResponseID:    e.ResponseID,
				AttemptNumber: e.AttemptNumber,
				Status:        string(e.Status),
				Actor:         e.Actor,
				Reason:        e.Reason,
				CreatedAt:     e.CreatedAt.Format(time.RFC3339),
			})
		}
	}

	if jsonOut {
		return printJSON(rep)
	}
	printReport(rep)
	return nil
}

// #endregion collect

// #region output

func printReport(rep report) {
	fmt.Printf("Comment:       %s\n", rep.CommentID)
	fmt.Printf("Organization:  %s\n", rep.Organization)
	fmt.Printf("Toxicity:      %.2f\n", rep.ToxicityScore)
	fmt.Printf("Regenerations: %d\n", rep.Regenerations)
	fmt.Printf("Text:          %s\n\n", truncate(rep.Text, 72))

	fmt.Printf("%-3s  %-10s  %-10s  %-10s  %-22s  %6s  %s\n",
		"#", "Response", "Status", "Parent", "Method", "Tokens", "Text")
	fmt.Printf("%-3s+-%-10s+-%-10s+-%-10s+-%-22s+-%6s+-%s\n",
		"---", "----------", "----------", "----------", "----------------------", "------", "--------------------")
	for _, r := range rep.Responses {
		parent := "-"
		if r.Parent != "" {
			parent = shortID(r.Parent)
		}
		fmt.Printf("%-3d  %-10s  %-10s  %-10s  %-22s  %6d  %s\n",
			r.AttemptNumber, shortID(r.ID), r.Status, parent, r.Method, r.TokensUsed, truncate(r.Text, 48))
	}

	if len(rep.History) == 0 {
		return
	}
	fmt.Printf("\nHistory:\n")
	for _, h := range rep.History {
		line := fmt.Sprintf("  %s  #%d %-10s %-10s", h.CreatedAt, h.AttemptNumber, shortID(h.ResponseID), h.Status)
		if h.Actor != "" {
			line += " by " + h.Actor
		}
		if h.Reason != "" {
			line += " (" + h.Reason + ")"
		}
		fmt.Println(line)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// #endregion output
