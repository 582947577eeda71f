package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jurisearch/statuteqa/internal/model"
)

var answerJSON bool

var answerCmd = &cobra.Command{
	Use:   "answer \"question\"",
	Short: "Answer one question about Canadian statutes and regulations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initService(ctx, "answer")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Service.Answer(ctx, args[0])
		if err != nil {
			return err
		}

		zap.L().Info("question answered",
			zap.String("request_id", resp.RequestID),
			zap.String("confidence", string(resp.Confidence)),
			zap.Bool("fail_closed", resp.FailClosed),
			zap.Int64("duration_ms", resp.Duration),
		)

		if answerJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		printResponse(resp)
		return nil
	},
}

func printResponse(resp *model.FinalResponse) {
	fmt.Printf("Answer:     %s\n", resp.Answer.Direct)
	if resp.Answer.Explanation != "" {
		fmt.Printf("\n%s\n", resp.Answer.Explanation)
	}

	if len(resp.Answer.Claims) > 0 {
		fmt.Println("\nKey points:")
		for _, c := range resp.Answer.Claims {
			fmt.Printf("  - %s [%s]\n", c.Text, strings.Join(c.Refs, ", "))
		}
	}
	if len(resp.Answer.Requirements) > 0 {
		fmt.Println("\nRequirements:")
		for _, r := range resp.Answer.Requirements {
			fmt.Printf("  - %s [%s]\n", r.Text, strings.Join(r.Refs, ", "))
		}
	}
	if len(resp.Findings) > 0 {
		fmt.Println("\nConflicting provisions:")
		for _, f := range resp.Findings {
			fmt.Printf("  - %s (%s vs %s, %s)\n", f.Description, f.RefA, f.RefB, f.Kind)
		}
	}
	if len(resp.Answer.Limitations) > 0 {
		fmt.Println("\nLimitations:")
		for _, l := range resp.Answer.Limitations {
			fmt.Printf("  - %s\n", l)
		}
	}

	if len(resp.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, h := range resp.Sources {
			fmt.Printf("  %-4s %s (%s)\n", h.Ref, h.Citation.String(), h.Tier)
		}
	}

	tiers := make([]string, 0, len(resp.TiersUsed))
	for _, t := range resp.TiersUsed {
		tiers = append(tiers, t.String())
	}
	fmt.Printf("\nConfidence: %s\n", resp.Confidence)
	fmt.Printf("Tiers:      %s\n", strings.Join(tiers, ", "))
	fmt.Printf("Elapsed:    %dms\n", resp.Duration)
}

func init() {
	answerCmd.Flags().BoolVar(&answerJSON, "json", false, "print the full response as JSON")
	rootCmd.AddCommand(answerCmd)
}
