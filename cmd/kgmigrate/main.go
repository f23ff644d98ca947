package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/thinkzone/keygate/storage"
	"github.com/thinkzone/keygate/storage/model"
)

func usage() {
	_, _ = fmt.Fprintf(os.Stderr, "kgmigrate: migrate legacy license data to the gorm database\n")
	_, _ = fmt.Fprintf(os.Stderr, "\n")
	_, _ = fmt.Fprintf(os.Stderr, "Subcommands:\n")
	_, _ = fmt.Fprintf(os.Stderr, "  db       Migrate legacy storage data to the GORM-based database\n")
	_, _ = fmt.Fprintf(os.Stderr, "\n")
	_, _ = fmt.Fprintf(os.Stderr, "Use 'kgmigrate <subcommand> -h' for help on a subcommand.\n")
}

func dbCmd(args []string) int {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	var (
		srcType = fs.String("source-type", "", "Source storage type (badger or mongoexport)")
		srcPath = fs.String("source", "", "Source data directory (badger) or export file (mongoexport)")
		dstType = fs.String("dest-type", "sqlite", "Destination database type (sqlite, mysql or postgres)")
		dstDir  = fs.String("dest-dir", "", "Destination data directory (for sqlite)")
		dstDSN  = fs.String("dest-dsn", "", "Destination DSN (for mysql/postgres)")
		dryRun  = fs.Bool("dry-run", false, "Parse and convert without writing to the destination")
		v       = fs.Bool("v", false, "Verbose logging")
	)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(
			os.Stderr,
			"Usage: kgmigrate db --source-type=<badger|mongoexport> --source=<path> --dest-type=<sqlite|mysql|postgres> [--dest-dir=<dir>|--dest-dsn=<dsn>] [--dry-run] [--v]\n",
		)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *v {
		log.SetLevel(log.DebugLevel)
	}
	if *srcType == "" || *srcPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "--source-type and --source are required")
		fs.Usage()
		return 2
	}

	var load loadLegacyLicenseRecords
	switch *srcType {
	case "badger":
		badgerStore, err := NewBadgerStorage(*srcPath)
		if err != nil {
			log.WithError(err).Error("could not open badger source")
			return 1
		}
		defer badgerStore.Close()
		load = badgerStore.LicenseStorage()
	case "mongoexport":
		load = NewFileStorage(*srcPath).LicenseStorage()
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown source type: %s\n", *srcType)
		return 2
	}

	records, err := load()
	if err != nil {
		log.WithError(err).Error("could not load legacy records")
		return 1
	}
	log.WithField("records", len(records)).Info("loaded legacy records")

	var licenses model.LicenseStore
	if !*dryRun {
		backs, err := storage.LoadBackends(
			storage.Config{
				Driver:  storage.DriverType(*dstType),
				DataDir: *dstDir,
				DSN:     *dstDSN,
			},
		)
		if err != nil {
			log.WithError(err).Error("could not open destination database")
			return 1
		}
		licenses = backs.Licenses
	}

	migrated, skipped := 0, 0
	for _, rec := range records {
		lic, err := rec.toLicense()
		if err != nil {
			log.WithError(err).Warn("skipping record")
			skipped++
			continue
		}
		if *dryRun {
			log.WithField("key_digest", lic.KeyDigest).Debug("would migrate")
			migrated++
			continue
		}
		if err = licenses.Create(context.Background(), lic); err != nil {
			var exists model.AlreadyExistsError
			if errors.As(err, &exists) {
				log.WithField("key_digest", lic.KeyDigest).Warn("already in destination, skipping")
				skipped++
				continue
			}
			log.WithError(err).Error("migration failed")
			return 1
		}
		migrated++
	}
	log.WithFields(
		log.Fields{
			"migrated": migrated,
			"skipped":  skipped,
		},
	).Info("migration completed")
	return 0
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	var code int
	switch sub {
	case "db":
		code = dbCmd(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		code = 0
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n\n", sub)
		usage()
		code = 2
	}
	os.Exit(code)
}
