package resolver

import (
	"errors"
	"testing"

	"xdao.co/permtrace/address"
	"xdao.co/permtrace/discovered"
	"xdao.co/permtrace/overrides"
)

func delaySnapshot(t *testing.T) *discovered.Snapshot {
	t.Helper()
	snap, err := discovered.NewSnapshot(
		&discovered.Entry{
			Address: timelockT,
			Type:    address.TypeTimelock,
			Fields: []discovered.Field{
				{Name: "minDelay", Value: discovered.Number("86400")},
				{Name: "maxDelay", Value: discovered.Number("604800")},
				{Name: "name", Value: discovered.String("timelock")},
				{Name: "negative", Value: discovered.Number("-5")},
				{Name: "big", Value: discovered.Number("123456789012345678901234567890")},
			},
		},
	)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

func ref(field string) overrides.DelayRef {
	return overrides.DelayRef{ContractAddress: timelockT, FieldName: field}
}

func TestResolveDelay(t *testing.T) {
	snap := delaySnapshot(t)

	d, err := ResolveDelay(snap, ref("minDelay"))
	if err != nil {
		t.Fatalf("ResolveDelay: %v", err)
	}
	if d != 86400 {
		t.Fatalf("got %d", d)
	}
}

func TestResolveDelay_Failures(t *testing.T) {
	snap := delaySnapshot(t)

	cases := []struct {
		name string
		ref  overrides.DelayRef
		want error
	}{
		{"contract missing", overrides.DelayRef{ContractAddress: address.MustParse("eth:0x9999"), FieldName: "minDelay"}, ErrDelayContractMissing},
		{"field missing", ref("noSuchField"), ErrDelayFieldMissing},
		{"not numeric", ref("name"), ErrDelayNotNumeric},
		{"negative", ref("negative"), ErrDelayNegative},
		{"overflow", ref("big"), ErrDelayNotNumeric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveDelay(snap, tc.ref)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
}

func TestStepDelay_MaxOfResolved(t *testing.T) {
	snap := delaySnapshot(t)
	d, warnings := stepDelay(snap, []overrides.DelayRef{ref("minDelay"), ref("maxDelay")})
	if d != 604800 {
		t.Fatalf("stepDelay should be the max, got %d", d)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
}

func TestStepDelay_FailuresDowngradeToZeroWithWarning(t *testing.T) {
	snap := delaySnapshot(t)
	d, warnings := stepDelay(snap, []overrides.DelayRef{ref("noSuchField"), ref("minDelay")})
	if d != 86400 {
		t.Fatalf("resolved refs still count, got %d", d)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
}

func TestFormatDelay(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0s"},
		{45, "45s"},
		{60, "1m"},
		{3600, "1h"},
		{86400, "1d"},
		{90061, "1d 1h 1m 1s"},
		{604800, "7d"},
		{3661, "1h 1m 1s"},
		{86460, "1d 1m"},
	}
	for _, tc := range cases {
		if got := FormatDelay(tc.in); got != tc.want {
			t.Fatalf("FormatDelay(%d): got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestGraph_UnionsAcrossPermissionedFunctions(t *testing.T) {
	f1 := permFunc("pause", "$self.admin")
	f1.Delay = &overrides.DelayRef{ContractAddress: timelockT, FieldName: "minDelay"}
	f2 := permFunc("unpause", "$self.timelock")
	f2.Delay = &overrides.DelayRef{ContractAddress: timelockT, FieldName: "minDelay"}
	f3 := overrides.FunctionOverride{FunctionName: "transfer", UserClassification: overrides.NonPermissioned,
		OwnerDefinitions: []overrides.OwnerDefinition{{Path: "$self.ignored"}}}

	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: contractC, Functions: []overrides.FunctionOverride{f1, f2, f3}},
			{Address: cycleA, Functions: []overrides.FunctionOverride{
				{FunctionName: "transfer", UserClassification: overrides.NonPermissioned},
			}},
		},
	}
	g := NewGraph(doc)

	node, ok := g.Node(contractC)
	if !ok {
		t.Fatalf("node missing")
	}
	if len(node.Owners) != 2 {
		t.Fatalf("owners should union permissioned definitions: %+v", node.Owners)
	}
	if len(node.Delays) != 1 {
		t.Fatalf("delay refs should be distinct: %+v", node.Delays)
	}

	// A contract with zero permissioned functions is present but empty.
	empty, ok := g.Node(cycleA)
	if !ok {
		t.Fatalf("contract with no permissioned functions should still be present")
	}
	if len(empty.Owners) != 0 || len(empty.Delays) != 0 {
		t.Fatalf("expected empty node: %+v", empty)
	}

	if _, ok := g.Node(address.MustParse("eth:0x4444")); ok {
		t.Fatalf("absent contract should not be present")
	}
}
