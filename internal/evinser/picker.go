package evinser

import "github.com/StinkyLord/sbom-evinser/internal/model"

// PickFrame selects the single frame reported for a component. The first
// candidate is the default; any candidate strictly between the first and the
// last with more than two entries replaces it, the latest such one winning.
// It returns nil when there are no candidates.
func PickFrame(candidates []model.Frame) model.Frame {
	if len(candidates) == 0 {
		return nil
	}
	picked := candidates[0]
	for i := 1; i < len(candidates)-1; i++ {
		if len(candidates[i]) > 2 {
			picked = candidates[i]
		}
	}
	return picked
}
