package catalog

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ExportVersion is written into every export envelope.
const ExportVersion = 1

// Envelope is the export and backup format of the catalogue.
type Envelope struct {
	Version    int                   `json:"version"`
	ExportedAt time.Time             `json:"exported_at"`
	Rosters    []*models.SavedRoster `json:"rosters"`
}

//go:embed catalog.schema.json
var envelopeSchemaJSON string

var (
	envelopeSchema = mustCompileSchema(envelopeSchemaJSON, "catalog.schema.json")
	schemaPrinter  = message.NewPrinter(language.English)
)

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// Export builds the envelope for the whole catalogue, archived rosters included.
func (c *Catalog) Export(ctx context.Context) (*Envelope, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []*models.SavedRoster{}
	}
	return &Envelope{Version: ExportVersion, ExportedAt: c.now().UTC(), Rosters: all}, nil
}

// ExportAll writes the envelope as JSON, gzip-compressed when compress is
// set, and returns the number of rosters written.
func (c *Catalog) ExportAll(ctx context.Context, w io.Writer, compress bool) (int, error) {
	env, err := c.Export(ctx)
	if err != nil {
		return 0, err
	}
	out := w
	var zw *gzip.Writer
	if compress {
		zw = gzip.NewWriter(w)
		out = zw
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return 0, fmt.Errorf("encoding export: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return 0, fmt.Errorf("compressing export: %w", err)
		}
	}
	return len(env.Rosters), nil
}

// ImportAll replaces the catalogue with the contents of r, which may be
// gzip-compressed. The payload is checked in full before anything is
// written; one bad entry rejects the whole import. Entries beyond capacity
// are dropped from the end.
func (c *Catalog) ImportAll(ctx context.Context, r io.Reader) (int, error) {
	const op = "import"
	data, err := readMaybeGzip(r)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindValidation, op, err)
	}
	env, err := DecodeEnvelope(data)
	if err != nil {
		return 0, err
	}
	rosters := env.Rosters
	if len(rosters) > c.capacity {
		c.logger.Warn("import exceeds capacity; dropping oldest", "count", len(rosters), "capacity", c.capacity)
		rosters = rosters[:c.capacity]
	}
	if err := c.store.ReplaceAll(ctx, rosters); err != nil {
		return 0, err
	}
	c.logger.Info("catalogue imported", "count", len(rosters))
	return len(rosters), nil
}

// DecodeEnvelope parses and validates an export payload. A bare JSON array
// of rosters is accepted as a version 1 envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	const op = "import"
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, fmt.Errorf("parsing payload: %w", err))
	}
	if list, ok := instance.([]any); ok {
		instance = map[string]any{"version": json.Number("1"), "rosters": list}
		data, err = json.Marshal(map[string]json.RawMessage{"version": json.RawMessage("1"), "rosters": data})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, op, err)
		}
	}
	if problems := validateEnvelope(instance); len(problems) > 0 {
		return nil, apperr.Newf(apperr.KindValidation, op, "invalid catalogue export: %s", strings.Join(problems, "; "))
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, fmt.Errorf("decoding payload: %w", err))
	}
	seen := make(map[string]bool, len(env.Rosters))
	for i, r := range env.Rosters {
		if seen[r.ID] {
			return nil, apperr.Newf(apperr.KindValidation, op, "invalid catalogue export: /rosters/%d: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = true
		if r.Job.ID == "" {
			r.Job.ID = r.JobID
		}
	}
	return &env, nil
}

func validateEnvelope(instance any) []string {
	err := envelopeSchema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(schemaPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// readMaybeGzip reads r fully, inflating it first if it starts with the
// gzip magic bytes.
func readMaybeGzip(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip payload: %w", err)
		}
		defer zr.Close() //nolint:errcheck
		return io.ReadAll(zr)
	}
	return io.ReadAll(br)
}
