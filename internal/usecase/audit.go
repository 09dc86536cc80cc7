package usecase

import (
	"context"
	"fmt"
	"sort"

	"IssueTriage/internal/ports"
	"IssueTriage/internal/repair"
)

// AuditResult is the validation outcome of one stored record.
type AuditResult struct {
	Num int
	Err error
}

// KnownNums lists stored post numbers in ascending order.
func KnownNums(ctx context.Context, store ports.RecordStore) ([]int, error) {
	known, err := store.Known(ctx)
	if err != nil {
		return nil, fmt.Errorf("load processed: %w", err)
	}
	nums := make([]int, 0, len(known))
	for num := range known {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	return nums, nil
}

// Audit re-validates every stored record against s, for example after the
// schema changed. Only failing records are returned.
func Audit(ctx context.Context, store ports.RecordStore, s repair.Schema) ([]AuditResult, error) {
	nums, err := KnownNums(ctx, store)
	if err != nil {
		return nil, err
	}

	var failed []AuditResult
	for _, num := range nums {
		record, err := store.Get(ctx, num)
		if err != nil {
			failed = append(failed, AuditResult{Num: num, Err: err})
			continue
		}
		if err := s.Validate(record); err != nil {
			failed = append(failed, AuditResult{Num: num, Err: err})
		}
	}
	return failed, nil
}
