package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"gopkg.in/yaml.v3"

	"github.com/samirrijal/metamap/internal/core/domain"
	"github.com/samirrijal/metamap/internal/core/mapstore"
	"github.com/samirrijal/metamap/internal/pkg/config"
	"github.com/samirrijal/metamap/internal/pkg/geospatial"
	"github.com/samirrijal/metamap/internal/workflows"
)

// errInvalid makes the process exit non-zero after the report was printed.
var errInvalid = errors.New("document is invalid")

type validateCommand struct {
	Backend bool `long:"backend" description:"Also apply the backend rules"`
	Args    struct {
		File string `positional-arg-name:"FILE" description:"Map document (JSON), - for stdin"`
	} `positional-args:"yes" required:"yes"`

	opts *Options
	out  io.Writer
}

func (c *validateCommand) Execute([]string) error {
	v, err := c.opts.Validator()
	if err != nil {
		return err
	}
	doc, err := readJSON(c.Args.File)
	if err != nil {
		return err
	}

	res := v.ValidateShape(doc)
	if c.Backend {
		res = v.ValidateForBackend(doc)
	}
	if res.Valid {
		fmt.Fprintf(c.out, "%s: valid\n", c.Args.File)
		return nil
	}
	fmt.Fprintf(c.out, "%s: %d error(s)\n", c.Args.File, len(res.Errors))
	for _, e := range res.Errors {
		fmt.Fprintf(c.out, "  - %s\n", e)
	}
	return errInvalid
}

type statsCommand struct {
	Format string `short:"f" long:"format" description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Args   struct {
		File string `positional-arg-name:"FILE" description:"Map document (JSON), - for stdin"`
	} `positional-args:"yes" required:"yes"`

	opts *Options
	out  io.Writer
}

func (c *statsCommand) Execute([]string) error {
	st, err := open(c.opts, c.Args.File)
	if err != nil {
		return err
	}
	return write(c.out, c.Format, st.Statistics())
}

type nearbyCommand struct {
	Lat    float64 `long:"lat" required:"true" description:"Latitude of the center"`
	Lng    float64 `long:"lng" required:"true" description:"Longitude of the center"`
	Radius float64 `short:"r" long:"radius" default:"1" description:"Radius in kilometres"`
	Args   struct {
		File string `positional-arg-name:"FILE" description:"Map document (JSON), - for stdin"`
	} `positional-args:"yes" required:"yes"`

	opts *Options
	out  io.Writer
}

func (c *nearbyCommand) Execute([]string) error {
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("coordinate out of range: %g,%g", c.Lat, c.Lng)
	}
	st, err := open(c.opts, c.Args.File)
	if err != nil {
		return err
	}

	center := domain.Coordinate{Lat: c.Lat, Lng: c.Lng}
	points := st.FindNearby(center, c.Radius)
	sort.SliceStable(points, func(i, j int) bool {
		return domain.DistanceKm(center, points[i].Center) < domain.DistanceKm(center, points[j].Center)
	})
	for _, p := range points {
		m := geospatial.DistanceMeters(c.Lat, c.Lng, p.Center.Lat, p.Center.Lng)
		fmt.Fprintf(c.out, "%8.0f m  %s\n", m, p.Name)
	}
	if len(points) == 0 {
		fmt.Fprintf(c.out, "no points within %g km\n", c.Radius)
	}
	return nil
}

type exportCommand struct {
	Format string `short:"f" long:"format" description:"Output format" choice:"json" choice:"yaml" choice:"geojson" default:"json"`
	Args   struct {
		File string `positional-arg-name:"FILE" description:"Map document (JSON), - for stdin"`
	} `positional-args:"yes" required:"yes"`

	opts *Options
	out  io.Writer
}

func (c *exportCommand) Execute([]string) error {
	st, err := open(c.opts, c.Args.File)
	if err != nil {
		return err
	}

	switch c.Format {
	case "geojson":
		data, err := st.GeoJSON().MarshalJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.out, string(data))
		return err
	case "yaml":
		// Round-trip through JSON so YAML keys match the document's field names.
		data, err := st.Serialize()
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		return write(c.out, "yaml", generic)
	default:
		data, err := st.SerializeIndent("  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.out, string(data))
		return err
	}
}

type importCommand struct {
	Format  string        `short:"f" long:"format" description:"Source format" choice:"json" choice:"geojson" default:"json"`
	ID      string        `long:"id" description:"Map id (overrides the document id)"`
	Name    string        `long:"name" description:"Map name for GeoJSON sources"`
	Timeout time.Duration `long:"timeout" default:"2m" description:"How long to wait for the workflow"`
	Args    struct {
		Source string `positional-arg-name:"SOURCE" description:"http(s) URL or file path readable by the worker"`
	} `positional-args:"yes" required:"yes"`

	out io.Writer
}

func (c *importCommand) Execute([]string) error {
	cfg, err := config.Load("metamap-mapctl")
	if err != nil {
		return err
	}
	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer tc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	run, err := tc.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "import-" + uuid.NewString(),
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.ImportWorkflow, workflows.ImportInput{
		Source: c.Args.Source,
		Format: c.Format,
		MapID:  c.ID,
		Name:   c.Name,
	})
	if err != nil {
		return fmt.Errorf("start import: %w", err)
	}
	fmt.Fprintf(c.out, "started workflow %s\n", run.GetID())

	var res workflows.ImportResult
	if err := run.Get(ctx, &res); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	verb := "created"
	if res.Replaced {
		verb = "replaced"
	}
	fmt.Fprintf(c.out, "%s map %s (%s) with %d points\n", verb, res.Map.ID, res.Map.Name, res.Points)
	return nil
}

func readJSON(path string) (any, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, domain.ErrFormat, err)
	}
	return v, nil
}

func open(opts *Options, path string) (*mapstore.Store, error) {
	v, err := opts.Validator()
	if err != nil {
		return nil, err
	}
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return mapstore.FromJSON(v, data)
}

func write(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	data, err := domain.EncodeJSON(v, "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
