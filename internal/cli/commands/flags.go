package commands

import (
	"github.com/spf13/pflag"
)

// addBaseFlags registers the flags overriding base options of the
// configuration file.
func addBaseFlags(f *pflag.FlagSet) {
	f.String("template", "", "SQLite template store")
	f.String("input-codec", "", "default encoding of imported files")
	f.String("output-codec", "", "default encoding of exported files")
	f.Bool("no-output", false, "skip the export stage")
	f.Bool("keep-db", true, "keep the working store in the destination")
	f.Bool("copy-csv", false, "copy CSV sources into the working directory before import")
	f.String("delimiter", "", "CSV field separator")
	f.String("history", "", "run history database")
}
