package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pagemark/reader/internal/config"
	"github.com/pagemark/reader/internal/database"
	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/engine/textengine"
	"github.com/pagemark/reader/internal/importers"
	"github.com/pagemark/reader/internal/storage"
)

// ImportBookCommand imports book files into the catalog without going
// through the HTTP server.
type ImportBookCommand struct {
	Paths            []string
	DatabasePath     string
	LibraryDir       string
	LocationInterval int
	BuildLocations   bool
	Verbose          bool
	DryRun           bool
}

func NewImportBookCommand() *ImportBookCommand {
	return &ImportBookCommand{}
}

func (cmd *ImportBookCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the catalog database file")
	fs.StringVar(&cmd.LibraryDir, "library", config.DefaultLibraryDir, "Directory where imported book files are stored")
	fs.IntVar(&cmd.LocationInterval, "interval", 1024, "Character interval between index locations")
	fs.BoolVar(&cmd.BuildLocations, "build-locations", true, "Build and cache the location index for each imported book")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Show what would be imported without making changes")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import [options] <file> [<file>...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import book files into the reading catalog.\n\n")
		fmt.Fprintf(os.Stderr, "Files already present in the library (matched by content hash) are\n")
		fmt.Fprintf(os.Stderr, "skipped. The title comes from the first markdown heading, or from an\n")
		fmt.Fprintf(os.Stderr, "'Author - Title' filename, or from the bare filename.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s import book.txt\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s import -library ~/books -verbose *.md\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.Paths = fs.Args()
	if len(cmd.Paths) == 0 {
		return fmt.Errorf("no files given")
	}
	return nil
}

func (cmd *ImportBookCommand) Run() error {
	fmt.Println("Book Import")
	fmt.Println("===========")

	if cmd.DryRun {
		fmt.Println("DRY RUN MODE - No changes will be made")
		fmt.Println()
	}

	for _, path := range cmd.Paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
	}

	if cmd.DryRun {
		for _, path := range cmd.Paths {
			fmt.Printf("  would import %s\n", path)
		}
		fmt.Println("\nDry run complete. Use without -dry-run to import.")
		return nil
	}

	absDBPath, err := filepath.Abs(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for database: %w", err)
	}

	db, err := database.NewDatabase(absDBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	library, err := storage.NewLibrary(cmd.LibraryDir)
	if err != nil {
		return fmt.Errorf("failed to initialize library: %w", err)
	}

	booksRepo := books.NewRepository(db.DB)
	pipeline := importers.NewPipeline(booksRepo, library)

	var imported, skipped int
	for _, path := range cmd.Paths {
		result, err := pipeline.ImportFile(path)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", path, err)
		}

		if !result.Created {
			skipped++
			if cmd.Verbose {
				fmt.Printf("  [SKIP] %s (already in library as \"%s\")\n", path, result.Book.Title)
			}
			continue
		}
		imported++
		if cmd.Verbose {
			fmt.Printf("  [OK] %s -> \"%s\"\n", path, result.Book.Title)
		}

		if cmd.BuildLocations {
			if err := cmd.buildLocations(booksRepo, library, result.Book.ID); err != nil {
				fmt.Printf("  [WARN] location index for \"%s\": %v\n", result.Book.Title, err)
			}
		}
	}

	fmt.Println("\n=== Import Summary ===")
	fmt.Printf("Imported: %d\n", imported)
	fmt.Printf("Skipped: %d\n", skipped)
	return nil
}

func (cmd *ImportBookCommand) buildLocations(booksRepo *books.Repository, library *storage.Library, bookID uint) error {
	book, err := booksRepo.GetByID(bookID)
	if err != nil {
		return err
	}
	content, err := library.ReadAll(book.Filename)
	if err != nil {
		return err
	}

	eng := textengine.New(book.Title, string(content), 0)
	defer eng.Close()

	data, err := eng.BuildIndex(context.Background(), cmd.LocationInterval)
	if err != nil {
		return err
	}
	return booksRepo.UpdateLocations(bookID, string(data))
}
