package evinser

import (
	"os"
	"strconv"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/StinkyLord/sbom-evinser/internal/logging"
	"github.com/StinkyLord/sbom-evinser/internal/metrics"
	"github.com/StinkyLord/sbom-evinser/internal/model"
	"github.com/StinkyLord/sbom-evinser/internal/output"
	"github.com/StinkyLord/sbom-evinser/internal/slicer"
)

// Evidence is everything the slice phases produced for one run.
type Evidence struct {
	Locations model.PurlLocationMap
	Services  model.ServicesMap
	Frames    model.DataFlowFrames

	// Slice files whose raw contents are attached as annotations.
	UsagesSlicesFile   string
	DataFlowSlicesFile string

	// TempDirs are removed once the document is written, if they live under
	// the system temp directory.
	TempDirs []string
}

// Summary reports what an assembly run changed.
type Summary struct {
	Occurrences int
	Callstacks  int
	Services    int
	Annotations int
	// HasEvidence is true when any component of the written document carries
	// occurrence or callstack evidence, whether added now or before.
	HasEvidence bool
}

// Assembler merges Evidence into a CycloneDX document.
type Assembler struct {
	Log *logging.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Assemble loads input, fills in the evidence, and writes the result to
// output. The document is written even when no evidence was found.
func (a *Assembler) Assemble(ev *Evidence, input, outputPath string, annotate bool) (*cdx.BOM, *Summary, error) {
	defer a.cleanup(ev)

	bom, err := output.LoadBOM(input)
	if err != nil {
		return nil, nil, err
	}
	sum := a.Apply(bom, ev, annotate)
	if err := output.WriteBOM(bom, outputPath); err != nil {
		return bom, sum, err
	}
	return bom, sum, nil
}

// Apply mutates bom in place. Occurrences and callstacks already present on a
// component are left untouched.
func (a *Assembler) Apply(bom *cdx.BOM, ev *Evidence, annotate bool) *Summary {
	if ev == nil {
		ev = &Evidence{}
	}
	log := a.logger()
	now := a.now().UTC().Format(time.RFC3339)
	sum := &Summary{}

	output.WalkComponents(bom, func(c *cdx.Component) {
		if c.PackageURL == "" {
			return
		}
		if locs := ev.Locations[c.PackageURL]; len(locs) > 0 && !hasOccurrences(c) {
			occ := make([]cdx.EvidenceOccurrence, 0, len(locs))
			for _, l := range locs.Sorted() {
				if l != "" {
					occ = append(occ, cdx.EvidenceOccurrence{Location: l})
				}
			}
			if len(occ) > 0 {
				evidenceOf(c).Occurrences = &occ
				sum.Occurrences++
			}
		}
		if frame := PickFrame(ev.Frames[c.PackageURL]); len(frame) > 0 && !hasCallstack(c) {
			evidenceOf(c).Callstack = toCallstack(frame)
			sum.Callstacks++
		}
	})

	if len(ev.Services) > 0 {
		services := make([]cdx.Service, 0, len(ev.Services))
		for _, name := range ev.Services.Names() {
			services = append(services, toService(ev.Services[name]))
		}
		bom.Services = &services
		sum.Services = len(services)
	}

	if annotate {
		sum.Annotations = a.annotate(bom, now, ev.UsagesSlicesFile, ev.DataFlowSlicesFile)
	}

	version := bom.Version
	if version < 1 {
		version = 1
	}
	bom.Version = version + 1
	if bom.Metadata == nil {
		bom.Metadata = &cdx.Metadata{}
	}
	bom.Metadata.Timestamp = now

	output.WalkComponents(bom, func(c *cdx.Component) {
		if hasOccurrences(c) || hasCallstack(c) {
			sum.HasEvidence = true
		}
	})

	metrics.Evidence.WithLabelValues("occurrences").Add(float64(sum.Occurrences))
	metrics.Evidence.WithLabelValues("callstack").Add(float64(sum.Callstacks))
	metrics.Evidence.WithLabelValues("services").Add(float64(sum.Services))
	metrics.Evidence.WithLabelValues("annotations").Add(float64(sum.Annotations))
	log.Infow("assembled evidence",
		"occurrences", sum.Occurrences,
		"callstacks", sum.Callstacks,
		"services", sum.Services,
		"annotations", sum.Annotations,
		"version", bom.Version)
	return sum
}

func (a *Assembler) annotate(bom *cdx.BOM, now string, files ...string) int {
	serial := output.EnsureSerialNumber(bom)
	annotator := output.FirstTool(bom)
	if annotator == nil {
		annotator = &cdx.Component{Type: cdx.ComponentTypeApplication, Name: "evinse"}
	}

	added := 0
	for _, f := range files {
		if f == "" {
			continue
		}
		raw, err := os.ReadFile(f)
		if err != nil {
			a.logger().Warnw("skipping slice annotation", "file", f, "error", err)
			continue
		}
		tool := *annotator
		ann := cdx.Annotation{
			Subjects:  &[]cdx.BOMReference{cdx.BOMReference(serial)},
			Annotator: &cdx.Annotator{Component: &tool},
			Timestamp: now,
			Text:      string(raw),
		}
		if bom.Annotations == nil {
			bom.Annotations = &[]cdx.Annotation{}
		}
		*bom.Annotations = append(*bom.Annotations, ann)
		added++
	}
	return added
}

func (a *Assembler) cleanup(ev *Evidence) {
	if ev == nil {
		return
	}
	for _, dir := range ev.TempDirs {
		if dir == "" || !slicer.IsUnderTempDir(dir) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			a.logger().Warnw("failed to remove temp dir", "dir", dir, "error", err)
		}
	}
}

func (a *Assembler) logger() *logging.Logger {
	if a.Log == nil {
		return logging.Nop()
	}
	return a.Log
}

func (a *Assembler) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func evidenceOf(c *cdx.Component) *cdx.Evidence {
	if c.Evidence == nil {
		c.Evidence = &cdx.Evidence{}
	}
	return c.Evidence
}

func hasOccurrences(c *cdx.Component) bool {
	return c.Evidence != nil && c.Evidence.Occurrences != nil && len(*c.Evidence.Occurrences) > 0
}

func hasCallstack(c *cdx.Component) bool {
	return c.Evidence != nil && c.Evidence.Callstack != nil &&
		c.Evidence.Callstack.Frames != nil && len(*c.Evidence.Callstack.Frames) > 0
}

func toCallstack(f model.Frame) *cdx.Callstack {
	frames := make([]cdx.CallstackFrame, 0, len(f))
	for _, e := range f {
		frames = append(frames, cdx.CallstackFrame{
			Package:      e.Package,
			Module:       e.Module,
			Function:     e.Function,
			Line:         parseOptionalInt(e.Line),
			Column:       parseOptionalInt(e.Column),
			FullFilename: e.FullFilename,
		})
	}
	return &cdx.Callstack{Frames: &frames}
}

func parseOptionalInt(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func toService(s *model.Service) cdx.Service {
	svc := cdx.Service{
		Name:                 s.Name,
		Authenticated:        s.Authenticated,
		CrossesTrustBoundary: s.XTrustBoundary,
	}
	if len(s.Endpoints) > 0 {
		endpoints := s.Endpoints.Sorted()
		svc.Endpoints = &endpoints
	}
	return svc
}
