package resolver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"xdao.co/permtrace/discovered"
	"xdao.co/permtrace/overrides"
)

var (
	ErrDelayContractMissing = errors.New("resolver: delay contract missing from snapshot")
	ErrDelayFieldMissing    = errors.New("resolver: delay field missing")
	ErrDelayNotNumeric      = errors.New("resolver: delay field is not numeric")
	ErrDelayNegative        = errors.New("resolver: delay is negative")
)

// ResolveDelay reads a DelayRef from the snapshot and returns a
// non-negative delay in seconds.
func ResolveDelay(snap *discovered.Snapshot, ref overrides.DelayRef) (int64, error) {
	entry, ok := snap.Lookup(ref.ContractAddress)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrDelayContractMissing, ref.ContractAddress)
	}
	v, ok := entry.FieldNamed(ref.FieldName)
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrDelayFieldMissing, ref.ContractAddress, ref.FieldName)
	}
	if v.Kind != discovered.KindNumber {
		return 0, fmt.Errorf("%w: %s.%s is %s", ErrDelayNotNumeric, ref.ContractAddress, ref.FieldName, v.Kind)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v.Num), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s.%s = %q", ErrDelayNotNumeric, ref.ContractAddress, ref.FieldName, v.Num)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s.%s = %d", ErrDelayNegative, ref.ContractAddress, ref.FieldName, n)
	}
	return n, nil
}

// stepDelay resolves all delay references on a node and returns the
// maximum of the resolved values: the worst-case human-observable
// delay for one transition. Failures downgrade to zero and surface
// as function-level warnings.
func stepDelay(snap *discovered.Snapshot, refs []overrides.DelayRef) (int64, []string) {
	var max int64
	var warnings []string
	for _, ref := range refs {
		d, err := ResolveDelay(snap, ref)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("delay %s.%s treated as zero: %v", ref.ContractAddress, ref.FieldName, err))
			continue
		}
		if d > max {
			max = d
		}
	}
	return max, warnings
}
