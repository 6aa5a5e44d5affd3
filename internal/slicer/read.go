package slicer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/StinkyLord/sbom-evinser/internal/model"
)

// ReadUsageSlice parses a usages slice file.
func ReadUsageSlice(path string) (*model.UsageSlice, error) {
	var s model.UsageSlice
	if err := readJSON(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ReadDataFlowSlice parses a data-flow slice file.
func ReadDataFlowSlice(path string) (*model.DataFlowSlice, error) {
	var s model.DataFlowSlice
	if err := readJSON(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: cannot read %s: %v", ErrNoSlice, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: cannot parse %s: %v", ErrNoSlice, path, err)
	}
	return nil
}
