// Package rapids assembles the RAPIDS mortgage experiment and submits it
// to an Azure ML workspace as a command job.
package rapids

import "fmt"

// partsByGPU maps the cluster's GPU count to how many partitions the
// processing script splits the mortgage table into.
var partsByGPU = map[int]int{
	1: 2,
	2: 4,
	3: 5,
	4: 7,
}

// ScalePlan is the data scale derived from the GPU count: how many
// partitions to process and the last acquisition year to include.
type ScalePlan struct {
	GPUCount  int
	PartCount int
	EndYear   int
}

// PlanFor validates gpuCount and derives the scale plan. Clusters with
// more than two GPUs take on one extra year of data.
func PlanFor(gpuCount int) (ScalePlan, error) {
	parts, ok := partsByGPU[gpuCount]
	if !ok {
		return ScalePlan{}, fmt.Errorf("gpu count must be 1, 2, 3 or 4 (got %d)", gpuCount)
	}
	endYear := 2000
	if gpuCount > 2 {
		endYear = 2001
	}
	return ScalePlan{GPUCount: gpuCount, PartCount: parts, EndYear: endYear}, nil
}
