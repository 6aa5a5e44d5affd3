// Package output reads and writes CycloneDX JSON documents.
package output

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"
)

// Stdout is the output path that selects standard output.
const Stdout = "-"

// LoadBOM decodes the CycloneDX JSON document at path.
func LoadBOM(path string) (*cdx.BOM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bom: %w", err)
	}
	defer f.Close()

	bom := new(cdx.BOM)
	if err := cdx.NewBOMDecoder(f, cdx.BOMFileFormatJSON).Decode(bom); err != nil {
		return nil, fmt.Errorf("failed to decode bom %s: %w", path, err)
	}
	return bom, nil
}

// WriteBOM serialises bom as pretty-printed JSON to outputPath. If outputPath
// is "-", it writes to stdout.
func WriteBOM(bom *cdx.BOM, outputPath string) error {
	var buf bytes.Buffer
	enc := cdx.NewBOMEncoder(&buf, cdx.BOMFileFormatJSON)
	enc.SetPretty(true)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(bom); err != nil {
		return fmt.Errorf("failed to marshal CycloneDX JSON: %w", err)
	}

	if outputPath == Stdout {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	return os.WriteFile(outputPath, buf.Bytes(), 0644)
}

// EnsureSerialNumber fills a missing serialNumber with a random urn:uuid and
// returns the serial number.
func EnsureSerialNumber(bom *cdx.BOM) string {
	if strings.TrimSpace(bom.SerialNumber) == "" {
		bom.SerialNumber = uuid.New().URN()
	}
	return bom.SerialNumber
}

// WalkComponents calls fn for every component of bom, nested components
// included, in document order.
func WalkComponents(bom *cdx.BOM, fn func(c *cdx.Component)) {
	if bom == nil || bom.Components == nil {
		return
	}
	walk(*bom.Components, fn)
}

func walk(comps []cdx.Component, fn func(c *cdx.Component)) {
	for i := range comps {
		fn(&comps[i])
		if comps[i].Components != nil {
			walk(*comps[i].Components, fn)
		}
	}
}

// FirstTool returns the first entry of metadata.tools.components, or nil.
func FirstTool(bom *cdx.BOM) *cdx.Component {
	if bom.Metadata == nil || bom.Metadata.Tools == nil || bom.Metadata.Tools.Components == nil {
		return nil
	}
	tools := *bom.Metadata.Tools.Components
	if len(tools) == 0 {
		return nil
	}
	return &tools[0]
}
