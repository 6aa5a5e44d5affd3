package evinser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/StinkyLord/sbom-evinser/internal/logging"
	"github.com/StinkyLord/sbom-evinser/internal/model"
	"github.com/StinkyLord/sbom-evinser/internal/resolver"
)

// FrameBuilder turns data-flow paths into candidate call-stack frames.
type FrameBuilder struct {
	Language string
	Resolver TypeResolver
	Log      *logging.Logger
}

// Build returns, for every purl implicated by a path, the frames of all the
// paths that implicate it. Paths are processed in slice order and frame
// entries keep the node order of their path.
func (b *FrameBuilder) Build(ctx context.Context, df *model.DataFlowSlice) (model.DataFlowFrames, error) {
	frames := model.DataFlowFrames{}
	if df == nil {
		return frames, nil
	}

	nodes := make(map[int64]*model.DataFlowNode, len(df.Graph.Nodes))
	for i := range df.Graph.Nodes {
		n := &df.Graph.Nodes[i]
		if strings.HasPrefix(n.Name, "<operator") {
			continue
		}
		nodes[n.ID] = n
	}

	for _, path := range df.Paths {
		purls := model.StringSet{}
		var frame model.Frame
		for _, id := range path {
			n, ok := nodes[id]
			if !ok {
				continue
			}
			if !resolver.IsFilterableType(b.Language, n.TypeFullName) {
				found, err := b.Resolver.Resolve(ctx, n.TypeFullName)
				if err != nil {
					return frames, fmt.Errorf("resolve data-flow node %d: %w", id, err)
				}
				if len(found) == 0 && b.Log != nil {
					b.Log.Debugw("no purl for data-flow node", "id", id, "type", n.TypeFullName)
				}
				purls.Merge(found)
			}
			frame = append(frame, frameEntry(n))
		}
		for _, p := range purls.Sorted() {
			frames[p] = append(frames[p], frame)
		}
	}
	return frames, nil
}

func frameEntry(n *model.DataFlowNode) model.FrameEntry {
	return model.FrameEntry{
		Package:      n.ParentPackageName,
		Module:       n.ParentClassName,
		Function:     n.ParentMethodName,
		Line:         optionalInt(n.LineNumber),
		Column:       optionalInt(n.ColumnNumber),
		FullFilename: n.ParentFileName,
	}
}

// optionalInt formats v, treating nil and zero as unknown.
func optionalInt(v *int) string {
	if v == nil || *v == 0 {
		return ""
	}
	return strconv.Itoa(*v)
}
