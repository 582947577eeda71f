package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	auditLimit int
	auditJSON  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent answered questions from the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}
		if !cfg.Audit.Enabled {
			return eris.New("audit log is disabled in config")
		}

		store, err := initAudit(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Recent(ctx, auditLimit)
		if err != nil {
			return err
		}

		if auditJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			fmt.Println("No entries.")
			return nil
		}
		for _, e := range entries {
			tiers := make([]string, 0, len(e.TiersUsed))
			for _, t := range e.TiersUsed {
				tiers = append(tiers, fmt.Sprintf("%d", int(t)))
			}
			marker := " "
			if e.FailClosed {
				marker = "!"
			}
			fmt.Printf("%s %-19s %-6s tiers=%-8s hits=%-3d %s\n",
				marker,
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.Confidence,
				strings.Join(tiers, ","),
				e.HitCount,
				truncateQuestion(e.Question, 70),
			)
		}
		return nil
	},
}

func truncateQuestion(q string, max int) string {
	r := []rune(q)
	if len(r) <= max {
		return q
	}
	return string(r[:max]) + "..."
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "number of entries to show")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "print entries as JSON")
	rootCmd.AddCommand(auditCmd)
}
