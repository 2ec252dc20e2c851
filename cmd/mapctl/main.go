package main

import (
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/samirrijal/metamap/internal/core/validation"
)

// Options are shared by every command.
type Options struct {
	Schema        string `long:"schema" env:"METAMAP_SCHEMA_PATH" description:"JSON schema file replacing the built-in one"`
	MaxPoints     int    `long:"max-points" default:"1000" description:"Backend rule: maximum points per map"`
	MaxNameLength int    `long:"max-name-length" default:"200" description:"Backend rule: maximum map name length"`
}

// Validator builds the validator selected by the global options.
func (o *Options) Validator() (*validation.Validator, error) {
	schema, err := validation.LoadSchema(o.Schema)
	if err != nil {
		return nil, err
	}
	return validation.NewValidator(schema, validation.Rules{
		MaxPoints:     o.MaxPoints,
		MaxNameLength: o.MaxNameLength,
	}), nil
}

func newParser(opts *Options, out io.Writer) *flags.Parser {
	parser := flags.NewParser(opts, flags.Default)
	parser.Name = "mapctl"

	mustAdd(parser, "validate", "Validate a map document",
		"Checks a map document against the schema and, with --backend, the backend rules.",
		&validateCommand{opts: opts, out: out})
	mustAdd(parser, "stats", "Print map statistics",
		"Prints the point count, tag counts and coordinate extents of a map document.",
		&statsCommand{opts: opts, out: out})
	mustAdd(parser, "nearby", "List points near a coordinate",
		"Lists the points within --radius kilometres of --lat/--lng, nearest first.",
		&nearbyCommand{opts: opts, out: out})
	mustAdd(parser, "export", "Convert a map document",
		"Writes a map document as JSON, YAML or a GeoJSON FeatureCollection.",
		&exportCommand{opts: opts, out: out})
	mustAdd(parser, "import", "Run the import workflow",
		"Starts ImportWorkflow on the worker task queue and waits for the result.",
		&importCommand{out: out})
	return parser
}

func mustAdd(p *flags.Parser, name, short, long string, cmd any) {
	if _, err := p.AddCommand(name, short, long, cmd); err != nil {
		panic(err)
	}
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := newParser(&opts, os.Stdout)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
