package workload

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"
)

// Instruction is a single GetUserInfo call in a workload.
type Instruction struct {
	Name  string        // name to look up
	Delay time.Duration // optional pause after the call
}

// WorkloadGenerator generates workloads based on specified parameters.
type WorkloadGenerator struct {
	ZipfianS         float64       // skew of the name distribution, must be > 1
	ZipfianV         uint64        // number of distinct names
	OperationCount   int           // total number of calls
	InstructionDelay time.Duration // optional delay between instructions
	Seed             uint64        // zero picks a time-based seed
}

// NewWorkloadGenerator creates a new WorkloadGenerator with default parameters.
func NewWorkloadGenerator() *WorkloadGenerator {
	return &WorkloadGenerator{
		ZipfianS:       1.01,
		ZipfianV:       1000,
		OperationCount: 1000,
	}
}

// Generate creates a workload whose names are drawn from a zipfian
// distribution over user-0 ... user-(ZipfianV-1).
func (wg *WorkloadGenerator) Generate() []Instruction {
	seed := wg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s := wg.ZipfianS
	if s <= 1 {
		s = 1.01
	}
	imax := uint64(0)
	if wg.ZipfianV > 1 {
		imax = wg.ZipfianV - 1
	}
	zipf := rand.NewZipf(rand.New(rand.NewSource(seed)), s, 1, imax)

	instructions := make([]Instruction, 0, wg.OperationCount)
	for i := 0; i < wg.OperationCount; i++ {
		instructions = append(instructions, Instruction{
			Name:  fmt.Sprintf("user-%d", zipf.Uint64()),
			Delay: wg.InstructionDelay,
		})
	}
	return instructions
}
