package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/replay"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to pai_cube.db")
	outPath := flag.String("out", "", "output fixture JSON path")
	description := flag.String("description", "", "fixture description (default: exported from <db>)")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--description text]")
		os.Exit(2)
	}

	if err := run(*dbPath, *outPath, *description); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, outPath, description string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	if description == "" {
		description = "exported from " + dbPath
	}

	f, err := replay.Export(context.Background(), store, description)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if len(f.Units) == 0 {
		return fmt.Errorf("no units found in %s", dbPath)
	}

	if err := replay.WriteFixture(outPath, f); err != nil {
		return err
	}

	fmt.Printf("Exported %d units (%d with stored cubes) to %s\n", len(f.Units), len(f.ExpectedResults), outPath)
	return nil
}

// #endregion export
