package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joelkehle/bioeq/internal/store"
	"github.com/joelkehle/bioeq/internal/synopsis"
)

// Renders a synopsis to PDF, either from a markdown file or from a run
// saved in the pipeline's sqlite store.
func main() {
	inputPath := flag.String("input", "", "Markdown synopsis file to render")
	dbPath := flag.String("db", "", "SQLite run store (used when -input is empty)")
	runID := flag.Int64("run", 0, "Run id inside the store")
	outputPath := flag.String("output", "synopsis.pdf", "PDF output path")
	title := flag.String("title", "Protocol Synopsis", "Document title")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	markdown, docTitle := loadMarkdown(ctx, *inputPath, *dbPath, *runID, *title)

	pdf, err := synopsis.NewChromiumPDFRenderer().Render(ctx, docTitle, "", markdown)
	if err != nil {
		log.Fatalf("render pdf: %v", err)
	}
	if err := os.WriteFile(*outputPath, pdf, 0o644); err != nil {
		log.Fatalf("write pdf: %v", err)
	}
	log.Printf("wrote %s (%d bytes)", *outputPath, len(pdf))
}

func loadMarkdown(ctx context.Context, inputPath, dbPath string, runID int64, title string) (markdown, docTitle string) {
	if inputPath != "" {
		b, err := os.ReadFile(inputPath)
		if err != nil {
			log.Fatalf("read input: %v", err)
		}
		return string(b), title
	}
	if dbPath == "" || runID == 0 {
		log.Fatal("need either -input, or -db with -run")
	}
	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		log.Fatal(err)
	}
	if run.Markdown == "" {
		log.Fatalf("run %d carries no markdown", runID)
	}
	return run.Markdown, run.ProtocolID
}
