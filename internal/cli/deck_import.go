package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/skelutten/studymaster-pwa-sub001/internal/entities"
	"github.com/skelutten/studymaster-pwa-sub001/internal/importer"
)

// DeckImportCommand handles importing a flashcard deck archive from disk.
type DeckImportCommand struct {
	ArchivePath string
	ChunkSize   int
	Verbose     bool
}

func NewDeckImportCommand() *DeckImportCommand {
	return &DeckImportCommand{}
}

func (cmd *DeckImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("deck-import", flag.ExitOnError)

	fs.StringVar(&cmd.ArchivePath, "file", "", "Path to the deck archive (.apkg) to import (required)")
	fs.IntVar(&cmd.ChunkSize, "chunk-size", importer.DefaultChunkSize, "Items processed per cooperative chunk")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print progress updates while importing")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s deck-import -file <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import a flashcard deck archive and print the resulting summary.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s deck-import -file decks/geography.apkg\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s deck-import -file decks/geography.apkg -chunk-size 250 -verbose\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.ArchivePath == "" {
		return fmt.Errorf("required flag -file not provided")
	}

	return nil
}

func (cmd *DeckImportCommand) Run() error {
	fmt.Println("Deck Import")
	fmt.Println("===========")

	if _, err := os.Stat(cmd.ArchivePath); os.IsNotExist(err) {
		return fmt.Errorf("archive not found: %s", cmd.ArchivePath)
	}

	fmt.Printf("File: %s\n", cmd.ArchivePath)

	buf, err := os.ReadFile(cmd.ArchivePath)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	handle, err := importer.Start(context.Background(), buf, importer.Options{
		ChunkSize: cmd.ChunkSize,
	})
	if err != nil {
		return fmt.Errorf("failed to start import: %w", err)
	}

	var summary *entities.ImportSummary
	for message := range handle.Messages() {
		switch msg := message.(type) {
		case importer.Progress:
			if cmd.Verbose {
				fmt.Printf("  [%3d%%] %s (%d/%d)\n",
					msg.Percent, msg.Status, msg.ItemsProcessed, msg.TotalItems)
			}
		case importer.Complete:
			summary = msg.Summary
		case importer.Failed:
			return fmt.Errorf("import failed: %s", msg.Error)
		case importer.Cancelled:
			return fmt.Errorf("import cancelled: %s", msg.Message)
		}
	}

	if summary == nil {
		return fmt.Errorf("import ended without a summary")
	}

	fmt.Println("\n=== Import Summary ===")
	fmt.Printf("Models: %d\n", summary.ModelsProcessed)
	fmt.Printf("Cards: %d\n", summary.CardsProcessed)
	fmt.Printf("Media files: %d\n", summary.MediaProcessed)
	fmt.Printf("Elapsed: %s\n", summary.Elapsed)

	if summary.SecurityIssuesFound > 0 {
		fmt.Printf("Sanitized content items: %d\n", summary.SecurityIssuesFound)
	}

	if len(summary.Warnings) > 0 {
		fmt.Printf("\n%d warnings:\n", len(summary.Warnings))
		for _, warning := range summary.Warnings {
			fmt.Printf("  [WARN] %s\n", warning)
		}
	}

	if summary.ErrorsEncountered > 0 {
		fmt.Printf("\n%d errors occurred:\n", summary.ErrorsEncountered)
		for _, importError := range summary.Errors {
			fmt.Printf("  [ERROR] %s: %s\n", importError.Type, importError.Message)
		}
	}

	fmt.Println("\nImport complete!")
	return nil
}
