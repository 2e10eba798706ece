package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestProcessBatch(t *testing.T) {
	h := newHarness(t, nil, nil)

	ids := []string{"1706.03762", "2401.00001", "1706.03762", "nonsense"}
	br, err := h.proc.ProcessBatch(context.Background(), ids, BatchOptions{})
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if br.Processed != 1 || br.Skipped != 1 || br.Failed != 2 {
		t.Errorf("ProcessBatch() = processed %d, skipped %d, failed %d; want 1, 1, 2",
			br.Processed, br.Skipped, br.Failed)
	}
	if len(br.Results) != 4 {
		t.Errorf("Results len = %d, want 4", len(br.Results))
	}
	if len(br.Errors) != 2 || br.Errors[0].Identifier != "2401.00001" || br.Errors[0].Stage != StageFetch {
		t.Errorf("Errors = %+v", br.Errors)
	}
	if br.CostUSD != 0.0125 {
		t.Errorf("CostUSD = %v, want 0.0125", br.CostUSD)
	}
	if br.Stopped {
		t.Error("Stopped = true, want false")
	}
}

func TestProcessBatchStopOnError(t *testing.T) {
	h := newHarness(t, nil, nil)

	ids := []string{"2401.00001", "1706.03762"}
	br, err := h.proc.ProcessBatch(context.Background(), ids, BatchOptions{StopOnError: true})
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if br.Failed != 1 || br.Processed != 0 || !br.Stopped {
		t.Errorf("ProcessBatch() = %+v, want one failure then stop", br)
	}
	if h.arxiv.calls != 1 {
		t.Errorf("arXiv fetched %d times, want 1", h.arxiv.calls)
	}
}

func TestProcessBatchForce(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	h.proc.ProcessBatch(ctx, []string{"1706.03762"}, BatchOptions{})
	br, err := h.proc.ProcessBatch(ctx, []string{"1706.03762"}, BatchOptions{Force: true})
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if br.Processed != 1 || br.Skipped != 0 {
		t.Errorf("forced ProcessBatch() = %+v", br)
	}
}

func TestProcessBatchCancelled(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	br, err := h.proc.ProcessBatch(ctx, []string{"1706.03762"}, BatchOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ProcessBatch() error = %v, want context.Canceled", err)
	}
	if !br.Stopped || len(br.Results) != 0 {
		t.Errorf("ProcessBatch() = %+v, want nothing processed", br)
	}
}

func TestReadIdentifiers(t *testing.T) {
	input := `# reading list
1706.03762

  https://arxiv.org/abs/2312.12345  
# web
https://example.org/post
`
	ids, err := ReadIdentifiers(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadIdentifiers() error = %v", err)
	}
	want := []string{"1706.03762", "https://arxiv.org/abs/2312.12345", "https://example.org/post"}
	if len(ids) != len(want) {
		t.Fatalf("ReadIdentifiers() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
