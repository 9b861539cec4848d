package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/unklstewy/santa-scope/internal/db"
	"github.com/unklstewy/santa-scope/pkg/config"
	"github.com/unklstewy/santa-scope/pkg/route"
)

// Route Importer
// Copies route files into the database so trackers configured with
// route.source = "database" can load them, and manages stored routes.
//
// Route files are YAML:
//
//	name: christmas-eve
//	waypoints:
//	  - name: North Pole
//	    lat: 90
//	    lng: 0
//	    arrival: "00:00"

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	file := flag.String("file", "", "Route file to import")
	name := flag.String("name", "", "Route name (default: name declared in the file, then route.name)")
	builtin := flag.Bool("builtin", false, "Import the built-in route instead of a file")
	list := flag.Bool("list", false, "List stored routes")
	export := flag.String("export", "", "Write the named route to this file")
	remove := flag.String("delete", "", "Delete the named route")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	log.Println("Connecting to database...")
	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	repo := db.NewRouteRepository(database)

	switch {
	case *list:
		if err := listRoutes(ctx, repo); err != nil {
			log.Fatalf("Failed to list routes: %v", err)
		}

	case *remove != "":
		if err := repo.DeleteRoute(ctx, *remove); err != nil {
			log.Fatalf("Failed to delete route: %v", err)
		}
		log.Printf("✓ Deleted route %q", *remove)

	case *export != "":
		routeName := firstNonEmpty(*name, cfg.Route.Name)
		r, err := repo.GetRoute(ctx, routeName)
		if err != nil {
			log.Fatalf("Failed to load route: %v", err)
		}
		if err := route.SaveFile(*export, routeName, r); err != nil {
			log.Fatalf("Failed to export route: %v", err)
		}
		log.Printf("✓ Exported %d waypoints of %q to %s", len(r), routeName, *export)

	case *builtin || *file != "":
		routeName, r, err := readRoute(*file, *builtin)
		if err != nil {
			log.Fatalf("Failed to read route: %v", err)
		}
		routeName = firstNonEmpty(*name, routeName, cfg.Route.Name)
		if err := repo.ReplaceRoute(ctx, routeName, r); err != nil {
			log.Fatalf("Failed to import route: %v", err)
		}
		log.Printf("✓ Imported %d waypoints as %q", len(r), routeName)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func readRoute(path string, builtin bool) (string, route.Route, error) {
	if builtin {
		return "", route.DefaultRoute(), nil
	}
	return route.LoadFile(path)
}

func listRoutes(ctx context.Context, repo *db.RouteRepository) error {
	routes, err := repo.ListRoutes(ctx)
	if err != nil {
		return err
	}
	if len(routes) == 0 {
		fmt.Println("No routes stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tWAYPOINTS")
	for _, r := range routes {
		fmt.Fprintf(w, "%s\t%d\n", r.Name, r.Waypoints)
	}
	return w.Flush()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
