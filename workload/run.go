package workload

import (
	"context"
	"fmt"
	"time"

	"github.com/alanwang67/userinfo/protocol"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

type UserInfoGetter interface {
	GetUserInfo(ctx context.Context, name string) (*protocol.UserResponse, error)
}

// Metric represents a single performance metric
type Metric struct {
	OperationIndex int           `json:"operation_index"`
	Name           string        `json:"name"`
	Latency        time.Duration `json:"latency"`
	Timestamp      time.Duration `json:"timestamp"` // since the start of the run
	Err            string        `json:"error,omitempty"`
}

type Summary struct {
	Total       int
	Failed      int
	MeanLatency time.Duration
	MaxLatency  time.Duration
	Elapsed     time.Duration
}

func (s Summary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Total) / s.Elapsed.Seconds()
}

// Run issues every instruction against users with at most concurrency calls
// in flight. A reply whose name differs from the request counts as a failure.
// Metrics come back in instruction order.
func Run(ctx context.Context, users UserInfoGetter, instructions []Instruction, concurrency int) ([]Metric, Summary, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	metrics := make([]Metric, len(instructions))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, instr := range instructions {
		g.Go(func() error {
			opStart := time.Now()
			reply, err := users.GetUserInfo(ctx, instr.Name)
			m := Metric{
				OperationIndex: i + 1,
				Name:           instr.Name,
				Latency:        time.Since(opStart),
				Timestamp:      time.Since(start),
			}
			switch {
			case err != nil:
				m.Err = err.Error()
			case reply.Name != instr.Name:
				m.Err = fmt.Sprintf("reply name %q does not match request %q", reply.Name, instr.Name)
			}
			if m.Err != "" {
				log.Errorf("operation %d failed: %s", m.OperationIndex, m.Err)
			}

			metrics[i] = m

			if instr.Delay > 0 {
				select {
				case <-time.After(instr.Delay):
				case <-ctx.Done():
				}
			}
			return nil
		})
	}

	// Calls never return errors; failures are recorded in the metrics.
	g.Wait()

	summary := summarize(metrics, time.Since(start))
	return metrics, summary, ctx.Err()
}

func summarize(metrics []Metric, elapsed time.Duration) Summary {
	s := Summary{Total: len(metrics), Elapsed: elapsed}

	var total time.Duration
	for _, m := range metrics {
		if m.Err != "" {
			s.Failed++
		}
		total += m.Latency
		if m.Latency > s.MaxLatency {
			s.MaxLatency = m.Latency
		}
	}
	if s.Total > 0 {
		s.MeanLatency = total / time.Duration(s.Total)
	}
	return s
}
