// Package model defines the data structures exchanged between the slicer, the
// resolver and the evidence assembler.
//
// Slice files are produced by an external tool and are semi-structured: any
// field may be absent. Every optional field is therefore modelled as a zero
// value (or pointer) and absence is threaded through as an empty string or an
// empty list rather than an error.
package model

import "strings"

// EmptyFileName is the sentinel the slicer writes when a code unit has no file.
const EmptyFileName = "<empty>"

// UsageSlice is the document written by `atom usages`.
type UsageSlice struct {
	ObjectSlices     []ObjectSlice `json:"objectSlices"`
	UserDefinedTypes []ObjectSlice `json:"userDefinedTypes"`
}

// ObjectSlice is a per-file (or per-method) usage record.
//
// Entries taken from userDefinedTypes may carry Fields and Procedures at the
// top level instead of inside Usages.
type ObjectSlice struct {
	FileName   string  `json:"fileName"`
	LineNumber *int    `json:"lineNumber,omitempty"`
	FullName   string  `json:"fullName,omitempty"`
	Signature  string  `json:"signature,omitempty"`
	Name       string  `json:"name,omitempty"`
	Usages     []Usage `json:"usages,omitempty"`
	Fields     []Field `json:"fields,omitempty"`
	Procedures []Call  `json:"procedures,omitempty"`
}

// Usage is one usage entry inside an ObjectSlice.
type Usage struct {
	TargetObj    *UsageTarget `json:"targetObj,omitempty"`
	DefinedBy    *UsageTarget `json:"definedBy,omitempty"`
	Fields       []Field      `json:"fields,omitempty"`
	InvokedCalls []Call       `json:"invokedCalls,omitempty"`
	ArgToCalls   []Call       `json:"argToCalls,omitempty"`
	Procedures   []Call       `json:"procedures,omitempty"`
}

// UsageTarget describes the object a usage refers to or the expression that
// defined it.
type UsageTarget struct {
	Name           string `json:"name,omitempty"`
	TypeFullName   string `json:"typeFullName,omitempty"`
	ResolvedMethod string `json:"resolvedMethod,omitempty"`
	Label          string `json:"label,omitempty"`
}

// Field is a field access recorded by the slicer.
type Field struct {
	Name         string `json:"name,omitempty"`
	TypeFullName string `json:"typeFullName,omitempty"`
}

// Call is an invoked call, an argument-to-call edge or a declared procedure.
type Call struct {
	CallName       string   `json:"callName,omitempty"`
	ResolvedMethod string   `json:"resolvedMethod,omitempty"`
	ParamTypes     []string `json:"paramTypes,omitempty"`
	ReturnType     string   `json:"returnType,omitempty"`
}

// LabelAnnotation marks usages that originate from a code annotation.
const LabelAnnotation = "ANNOTATION"

// HasFileName reports whether the slice points at a real source file.
func (s *ObjectSlice) HasFileName() bool {
	name := strings.TrimSpace(s.FileName)
	return name != "" && name != EmptyFileName
}

// AllUsages returns the usages of the slice plus an implicit usage built from
// top-level fields and procedures, if any.
func (s *ObjectSlice) AllUsages() []Usage {
	if len(s.Fields) == 0 && len(s.Procedures) == 0 {
		return s.Usages
	}
	all := make([]Usage, 0, len(s.Usages)+1)
	all = append(all, s.Usages...)
	all = append(all, Usage{Fields: s.Fields, Procedures: s.Procedures})
	return all
}

// DataFlowSlice is the document written by `atom data-flow`.
type DataFlowSlice struct {
	Graph DataFlowGraph `json:"graph"`
	Paths [][]int64     `json:"paths"`
}

// DataFlowGraph holds the nodes referenced by DataFlowSlice paths.
type DataFlowGraph struct {
	Nodes []DataFlowNode `json:"nodes"`
}

// DataFlowNode is a code location on a traced path.
type DataFlowNode struct {
	ID                int64  `json:"id"`
	Name              string `json:"name,omitempty"`
	TypeFullName      string `json:"typeFullName,omitempty"`
	ParentPackageName string `json:"parentPackageName,omitempty"`
	ParentClassName   string `json:"parentClassName,omitempty"`
	ParentMethodName  string `json:"parentMethodName,omitempty"`
	ParentFileName    string `json:"parentFileName,omitempty"`
	LineNumber        *int   `json:"lineNumber,omitempty"`
	ColumnNumber      *int   `json:"columnNumber,omitempty"`
}
