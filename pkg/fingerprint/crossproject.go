package fingerprint

import (
	"sort"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/digest"
	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
)

// ProducerOutputs is the producing task's declared output set, keyed
// by its own output rel_path, available once that task has run
// (specification §4.4 "Cross-project input references").
type ProducerOutputs map[string]digest.Digest

// ApplyCrossProjectMappings appends every mapped producer output into
// resolved under its consumer-specified destination path. Each
// mapping's From must be one of the producer's declared outputs;
// duplicate To destinations within the call are rejected.
func ApplyCrossProjectMappings(resolved *ResolvedInputs, mappings []taskgraph.CrossProjectInputMapping, producerOutputs ProducerOutputs) error {
	seenTo := map[string]bool{}
	for _, m := range mappings {
		if seenTo[m.To] {
			return cuenverr.New(cuenverr.OutputMappingCollision, "apply cross-project input mapping", m.To)
		}
		seenTo[m.To] = true

		content, ok := producerOutputs[m.From]
		if !ok {
			return cuenverr.New(cuenverr.OutputMappingUndeclared, "apply cross-project input mapping", m.From)
		}
		resolved.Files = append(resolved.Files, ResolvedInput{RelPath: m.To, Content: content})
	}
	sort.Slice(resolved.Files, func(i, j int) bool { return resolved.Files[i].RelPath < resolved.Files[j].RelPath })
	return nil
}
