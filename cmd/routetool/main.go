// Command routetool manages the route catalog.
//
//	routetool import <file.yaml|file.json>
//	routetool list
//	routetool show <route-id>
//	routetool delete <route-id>
//	routetool seed
//
// The catalog location comes from METROLINE_DATABASE_URL (or -db).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/metroline/internal/config"
	"github.com/cxd309/metroline/internal/platform/logging"
	"github.com/cxd309/metroline/internal/route"
	"github.com/cxd309/metroline/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	dsn := flag.String("db", cfg.DatabaseURL, "sqlite path or postgres:// URL")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-db dsn] import <file> | list | show <id> | delete <id> | seed\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(context.Background(), *dsn, flag.Args(), os.Stdout, log); err != nil {
		log.WithError(err).Fatal("routetool failed")
	}
}

func run(ctx context.Context, dsn string, args []string, out io.Writer, log *logrus.Logger) error {
	db, err := store.Open(ctx, dsn, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "import":
		if len(args) != 2 {
			return errors.New("import: expected one file argument")
		}
		r, err := route.LoadFile(args[1])
		if err != nil {
			return err
		}
		return db.SaveRoute(ctx, r)

	case "seed":
		return db.SaveRoute(ctx, route.Default())

	case "list":
		routes, err := db.ListRoutes(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tWAYPOINTS")
		for _, r := range routes {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", r.ID, r.Name, r.WaypointCount)
		}
		return tw.Flush()

	case "show":
		if len(args) != 2 {
			return errors.New("show: expected one route id")
		}
		r, err := db.LoadRoute(ctx, args[1])
		if err != nil {
			return err
		}
		return printRoute(out, r)

	case "delete":
		if len(args) != 2 {
			return errors.New("delete: expected one route id")
		}
		if err := db.DeleteRoute(ctx, args[1]); err != nil {
			return err
		}
		log.WithField("route_id", args[1]).Info("route deleted")
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// printRoute lists the waypoints of r with the distance travelled from the
// first waypoint.
func printRoute(out io.Writer, r *route.Route) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (%s)\n", r.Name(), r.ID())
	fmt.Fprintln(tw, "SEQ\tID\tLABEL\tFROM\tDISTANCE")
	for i, w := range r.Waypoints() {
		from := "-"
		if p, ok := r.Prev(i); ok {
			prev, err := r.WaypointAt(p)
			if err != nil {
				return err
			}
			from = prev.ID
		}
		dist, err := r.Length(0, i)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\n", i, w.ID, w.Label, from, dist)
	}
	return tw.Flush()
}
