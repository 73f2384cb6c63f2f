package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	_ "github.com/lib/pq"

	"github.com/liamcoop/churn/artifacts"
	"github.com/liamcoop/churn/internal/logger"
)

func main() {
	var databaseURL string
	var dir string
	var model string
	var command string

	flag.StringVar(&databaseURL, "database", "", "Database URL (defaults to DATABASE_URL)")
	flag.StringVar(&dir, "dir", "models", "Directory holding <model>/<role>.json artifacts")
	flag.StringVar(&model, "model", "churn-forest", "Model name")
	flag.StringVar(&command, "command", "list", "Command: publish, list")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		logger.Fatal("database URL is required, use -database or DATABASE_URL")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		logger.Fatal("failed to open database", "error", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal("failed to ping database", "error", err)
	}

	store := artifacts.NewPostgresStore(db)

	switch command {
	case "publish":
		published, err := publish(artifacts.NewFileStore(dir), store, model)
		if err != nil {
			logger.Fatal("publish failed", "model", model, "error", err)
		}
		for _, a := range published {
			logger.Info("artifact published", "model", a.Model, "role", string(a.Role), "kind", a.Kind, "version", a.Version, "id", a.ID)
		}

	case "list":
		list, err := store.List(model)
		if err != nil {
			logger.Fatal("list failed", "model", model, "error", err)
		}
		printList(os.Stdout, list)

	default:
		logger.Fatal("unknown command (use: publish, list)", "command", command)
	}
}

// publish copies the artifacts of model from src into dst. Both artifacts
// are built first so a broken pair never becomes active.
func publish(src artifacts.Store, dst artifacts.Store, model string) ([]*artifacts.Artifact, error) {
	bundleSrc, err := artifacts.Load(src, model)
	if err != nil {
		return nil, fmt.Errorf("artifacts of %s do not load: %w", model, err)
	}

	var published []*artifacts.Artifact
	for _, role := range artifacts.Roles() {
		a, err := src.Get(bundleSrc.Model, role)
		if err != nil {
			return published, err
		}

		// The destination assigns a fresh identity
		a.ID = ""
		a.CreatedAt = time.Time{}
		if err := dst.Add(a); err != nil {
			return published, fmt.Errorf("failed to add %s: %w", role, err)
		}
		published = append(published, a)
	}
	return published, nil
}

func printList(w io.Writer, list []*artifacts.Artifact) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROLE\tKIND\tVERSION\tACTIVE\tCREATED")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\t%s\n", a.ID, a.Role, a.Kind, a.Version, a.Active, a.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}
