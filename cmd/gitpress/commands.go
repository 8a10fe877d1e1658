package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderinc/gitpress/internal/errs"
	"github.com/renderinc/gitpress/internal/mcp"
	"github.com/renderinc/gitpress/internal/storage"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the repository and build one generation",
	Args:  cobra.NoArgs,
	Run:   runSync,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve documents to MCP clients over stdio",
	Args:  cobra.NoArgs,
	Run:   runMCP,
}

var (
	runsLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent update runs from the journal",
	Args:  cobra.NoArgs,
	Run:   runRuns,
}

var getDocCmd = &cobra.Command{
	Use:   "get-doc <url>",
	Short: "Print the markdown of the document served at url",
	Args:  cobra.ExactArgs(1),
	Run:   runGetDoc,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "num", "n", 10, "Number of runs")
}

func runSync(cmd *cobra.Command, args []string) {
	a := newApp()
	defer a.Close()

	gen, stats, err := a.worker.Sync(context.Background(), nil)
	if err != nil {
		log.Fatalf("Error syncing (%s): %v", errs.Kind(err), err)
	}

	// Print summary
	fmt.Println()
	fmt.Println("=== Sync Complete ===")
	fmt.Printf("Head:          %s\n", stats.Head)
	fmt.Printf("Generation:    %s\n", gen.ID)
	fmt.Printf("Commits:       %d\n", stats.Commits)
	fmt.Printf("Documents:     %d\n", stats.Documents)
	fmt.Printf("Posts:         %d\n", len(gen.Posts(0, false)))
	fmt.Printf("Authors:       %d\n", len(gen.Authors()))
	fmt.Printf("Duration:      %v\n", stats.Duration)
}

func runMCP(cmd *cobra.Command, args []string) {
	a := newApp()
	defer a.Close()

	ctx := context.Background()
	if _, err := a.store.TriggerUpdate(ctx); err != nil {
		log.Fatalf("Error loading documents (%s): %v", errs.Kind(err), err)
	}

	if err := mcp.NewServer(a.store).Serve(ctx); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}

func runRuns(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	journal := openJournal(cfg)
	defer journal.Close()

	total, err := journal.Count()
	if err != nil {
		log.Fatalf("Error counting runs: %v", err)
	}
	runs, err := journal.ListRuns(runsLimit)
	if err != nil {
		log.Fatalf("Error listing runs: %v", err)
	}

	fmt.Println("=== Update Runs ===")
	fmt.Printf("Total runs: %d\n\n", total)
	for _, r := range runs {
		fmt.Printf("%s  %-6s  %8v", r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Duration().Round(time.Millisecond))
		if r.Status == storage.StatusOK {
			fmt.Printf("  %d documents (+%d ~%d -%d)", r.Documents, r.Added, r.Changed, r.Removed)
			if len(r.Head) >= 8 {
				fmt.Printf("  at %s", r.Head[:8])
			}
		} else {
			fmt.Printf("  %s: %s", r.ErrorKind, r.Error)
		}
		fmt.Println()
	}

	if last, err := journal.LastSuccess(); err == nil && last != nil {
		fmt.Printf("\nLast success: %s (generation %s)\n", last.FinishedAt.Format("2006-01-02 15:04:05"), last.Generation)
	}
}

func runGetDoc(cmd *cobra.Command, args []string) {
	a := newApp()
	defer a.Close()

	gen, err := a.store.TriggerUpdate(context.Background())
	if err != nil {
		log.Fatalf("Error loading documents (%s): %v", errs.Kind(err), err)
	}

	doc, ok := gen.Lookup(args[0])
	if !ok {
		fmt.Printf("Document not found: %s\n", args[0])
		os.Exit(1)
	}

	// Output markdown content
	fmt.Println(doc.Content)
}
