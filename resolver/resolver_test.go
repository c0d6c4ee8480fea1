package resolver

import (
	"strings"
	"testing"

	"xdao.co/permtrace/address"
	"xdao.co/permtrace/compliance"
	"xdao.co/permtrace/discovered"
	"xdao.co/permtrace/overrides"
)

var (
	contractC = address.MustParse("eth:0xc0")
	timelockT = address.MustParse("eth:0x71")
	multisigM = address.MustParse("eth:0xf1")
	eoa1      = address.MustParse("eth:0xe1")
	eoa2      = address.MustParse("eth:0xe2")
	eoa3      = address.MustParse("eth:0xe3")
	cycleA    = address.MustParse("eth:0xa1")
	cycleB    = address.MustParse("eth:0xb1")
)

func scenarioSnapshot(t *testing.T) *discovered.Snapshot {
	t.Helper()
	snap, err := discovered.NewSnapshot(
		&discovered.Entry{
			Address: contractC,
			Type:    address.TypeContract,
			Fields: []discovered.Field{
				{Name: "admin", Value: discovered.Addr(eoa1, address.TypeEOA)},
				{Name: "timelock", Value: discovered.Addr(timelockT, address.TypeTimelock)},
				{Name: "accessControl", Value: discovered.Object(
					discovered.ObjectEntry{Key: "DEFAULT_ADMIN_ROLE", Value: discovered.Object(
						discovered.ObjectEntry{Key: "adminRole", Value: discovered.String("DEFAULT_ADMIN_ROLE")},
						discovered.ObjectEntry{Key: "members", Value: discovered.Array(
							discovered.Addr(eoa2, address.TypeEOA),
						)},
					)},
					discovered.ObjectEntry{Key: "PAUSER_ROLE", Value: discovered.Object(
						discovered.ObjectEntry{Key: "adminRole", Value: discovered.String("DEFAULT_ADMIN_ROLE")},
						discovered.ObjectEntry{Key: "members", Value: discovered.Array(
							discovered.Addr(eoa2, address.TypeEOA),
							discovered.Addr(eoa3, address.TypeEOA),
						)},
					)},
				)},
			},
		},
		&discovered.Entry{
			Address: timelockT,
			Type:    address.TypeTimelock,
			Fields: []discovered.Field{
				{Name: "minDelay", Value: discovered.Number("86400")},
				{Name: "admin", Value: discovered.Addr(multisigM, address.TypeMultisig)},
			},
		},
		&discovered.Entry{Address: multisigM, Type: address.TypeMultisig},
		&discovered.Entry{Address: eoa1, Type: address.TypeEOA},
		&discovered.Entry{Address: eoa2, Type: address.TypeEOA},
		&discovered.Entry{Address: eoa3, Type: address.TypeEOA},
		&discovered.Entry{
			Address: cycleA,
			Type:    address.TypeContract,
			Fields: []discovered.Field{
				{Name: "owner", Value: discovered.Addr(cycleB, address.TypeContract)},
			},
		},
		&discovered.Entry{
			Address: cycleB,
			Type:    address.TypeContract,
			Fields: []discovered.Field{
				{Name: "owner", Value: discovered.Addr(cycleA, address.TypeContract)},
			},
		},
	)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

func permFunc(name string, paths ...string) overrides.FunctionOverride {
	f := overrides.FunctionOverride{
		FunctionName:       name,
		UserClassification: overrides.Permissioned,
	}
	for _, p := range paths {
		f.OwnerDefinitions = append(f.OwnerDefinitions, overrides.OwnerDefinition{Path: p})
	}
	return f
}

func timelockOverrides() overrides.ContractOverrides {
	execute := permFunc("execute", "$self.admin")
	execute.Delay = &overrides.DelayRef{ContractAddress: timelockT, FieldName: "minDelay"}
	return overrides.ContractOverrides{Address: timelockT, Functions: []overrides.FunctionOverride{execute}}
}

func singleFunction(t *testing.T, res *Resolution, contract address.Address, name string) ResolvedFunction {
	t.Helper()
	for _, c := range res.Contracts {
		if c.Address != contract {
			continue
		}
		for _, f := range c.Functions {
			if f.FunctionName == name {
				return f
			}
		}
	}
	t.Fatalf("function %s.%s not found in resolution", contract, name)
	return ResolvedFunction{}
}

func TestResolve_TrivialAdmin(t *testing.T) {
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: contractC, Functions: []overrides.FunctionOverride{permFunc("changeAdmin", "$self.admin")}},
		},
	}
	res, err := Resolve(doc, scenarioSnapshot(t), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f := singleFunction(t, res, contractC, "changeAdmin")
	if len(f.DirectOwners) != 1 || f.DirectOwners[0].Address != eoa1 {
		t.Fatalf("direct owners: %+v", f.DirectOwners)
	}
	if len(f.UltimateOwners) != 1 {
		t.Fatalf("ultimate owners: %+v", f.UltimateOwners)
	}
	u := f.UltimateOwners[0]
	if u.Address != eoa1 || u.Type != address.TypeEOA {
		t.Fatalf("ultimate owner: %+v", u)
	}
	if len(u.Via) != 0 || len(u.Delays) != 0 || u.CumulativeDelay != 0 {
		t.Fatalf("expected empty via and zero delay: %+v", u)
	}
	if FormatDelay(u.CumulativeDelay) != "0s" {
		t.Fatalf("formatted delay: %s", FormatDelay(u.CumulativeDelay))
	}
	if len(f.Warnings) != 0 {
		t.Fatalf("warnings: %v", f.Warnings)
	}
}

func TestResolve_OneHopThroughTimelockWithDelay(t *testing.T) {
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: contractC, Functions: []overrides.FunctionOverride{permFunc("pause", "$self.timelock")}},
			timelockOverrides(),
		},
	}
	res, err := Resolve(doc, scenarioSnapshot(t), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f := singleFunction(t, res, contractC, "pause")
	if len(f.DirectOwners) != 1 || f.DirectOwners[0].Address != timelockT {
		t.Fatalf("direct owners: %+v", f.DirectOwners)
	}
	if len(f.UltimateOwners) != 1 {
		t.Fatalf("ultimate owners: %+v", f.UltimateOwners)
	}
	u := f.UltimateOwners[0]
	if u.Address != multisigM || u.Type != address.TypeMultisig {
		t.Fatalf("ultimate owner: %+v", u)
	}
	if len(u.Via) != 1 || u.Via[0].Address != timelockT || u.Via[0].Type != address.TypeTimelock || u.Via[0].Delay != 86400 {
		t.Fatalf("via: %+v", u.Via)
	}
	if len(u.Delays) != 1 || u.Delays[0] != 86400 || u.CumulativeDelay != 86400 {
		t.Fatalf("delays: %+v cumulative=%d", u.Delays, u.CumulativeDelay)
	}
	if FormatDelay(u.CumulativeDelay) != "1d" {
		t.Fatalf("formatted: %s", FormatDelay(u.CumulativeDelay))
	}
}

func TestResolve_TwoNodeCycle(t *testing.T) {
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: cycleA, Functions: []overrides.FunctionOverride{permFunc("setOwner", "$self.owner")}},
			{Address: cycleB, Functions: []overrides.FunctionOverride{permFunc("setOwner", "$self.owner")}},
		},
	}
	res, err := Resolve(doc, scenarioSnapshot(t), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f := singleFunction(t, res, cycleA, "setOwner")
	if len(f.UltimateOwners) != 0 {
		t.Fatalf("cycle branch should emit no records: %+v", f.UltimateOwners)
	}
	if len(f.Warnings) != 1 {
		t.Fatalf("warnings: %v", f.Warnings)
	}
	want := "Cycle detected: eth:0xa1 → eth:0xb1 → eth:0xa1"
	if f.Warnings[0] != want {
		t.Fatalf("cycle warning:\n got %q\nwant %q", f.Warnings[0], want)
	}
}

func TestResolve_SelfLoop(t *testing.T) {
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: cycleA, Functions: []overrides.FunctionOverride{permFunc("renounce", "$self")}},
		},
	}
	res, err := Resolve(doc, scenarioSnapshot(t), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f := singleFunction(t, res, cycleA, "renounce")
	if len(f.UltimateOwners) != 0 {
		t.Fatalf("self-loop should emit no records: %+v", f.UltimateOwners)
	}
	if len(f.Warnings) != 1 || !strings.HasPrefix(f.Warnings[0], "Cycle detected: ") {
		t.Fatalf("warnings: %v", f.Warnings)
	}
}

func TestResolve_AccessControlRoleMembers(t *testing.T) {
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: contractC, Functions: []overrides.FunctionOverride{
				permFunc("pause", "$self.accessControl.PAUSER_ROLE.members"),
			}},
		},
	}
	res, err := Resolve(doc, scenarioSnapshot(t), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f := singleFunction(t, res, contractC, "pause")
	if len(f.UltimateOwners) != 2 {
		t.Fatalf("ultimate owners: %+v", f.UltimateOwners)
	}
	if f.UltimateOwners[0].Address != eoa2 || f.UltimateOwners[1].Address != eoa3 {
		t.Fatalf("order: %v, %v", f.UltimateOwners[0].Address, f.UltimateOwners[1].Address)
	}
	for _, u := range f.UltimateOwners {
		if len(u.Via) != 0 || u.CumulativeDelay != 0 {
			t.Fatalf("role members should be terminal with no via: %+v", u)
		}
	}
	for _, o := range f.DirectOwners {
		if o.Role != "PAUSER_ROLE" {
			t.Fatalf("role hint: %+v", o)
		}
	}
}

func TestResolve_StructuredValuePreserved(t *testing.T) {
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: contractC, Functions: []overrides.FunctionOverride{
				permFunc("grantRole", "$self.accessControl.DEFAULT_ADMIN_ROLE"),
			}},
		},
	}
	res, err := Resolve(doc, scenarioSnapshot(t), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f := singleFunction(t, res, contractC, "grantRole")
	if len(f.UltimateOwners) != 1 || f.UltimateOwners[0].Address != eoa2 {
		t.Fatalf("ultimate owners: %+v", f.UltimateOwners)
	}
	if len(f.DirectOwners) != 1 {
		t.Fatalf("direct owners: %+v", f.DirectOwners)
	}
	st := f.DirectOwners[0].Structured
	if st == nil || st.Kind != discovered.KindObject {
		t.Fatalf("structured value should be preserved: %+v", st)
	}
	if _, ok := st.Lookup("adminRole"); !ok {
		t.Fatalf("structured value should carry the role admin: %+v", st)
	}
}

func TestResolve_UnresolvedPathBecomesWarning(t *testing.T) {
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: contractC, Functions: []overrides.FunctionOverride{
				permFunc("pause", "$self.nonexistent", "$self.admin"),
			}},
		},
	}
	res, err := Resolve(doc, scenarioSnapshot(t), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f := singleFunction(t, res, contractC, "pause")
	if len(f.DirectOwners) != 2 {
		t.Fatalf("direct owners: %+v", f.DirectOwners)
	}
	if f.DirectOwners[0].IsResolved {
		t.Fatalf("first owner should be unresolved")
	}
	if f.DirectOwners[0].Label() != PlaceholderUnresolved {
		t.Fatalf("placeholder: %s", f.DirectOwners[0].Label())
	}
	if !f.DirectOwners[1].IsResolved || f.DirectOwners[1].Address != eoa1 {
		t.Fatalf("second owner should resolve normally: %+v", f.DirectOwners[1])
	}
	if len(f.UltimateOwners) != 1 || f.UltimateOwners[0].Address != eoa1 {
		t.Fatalf("ultimate owners: %+v", f.UltimateOwners)
	}
	if len(f.Warnings) != 1 || !strings.Contains(f.Warnings[0], "$self.nonexistent") {
		t.Fatalf("warnings: %v", f.Warnings)
	}
}

func TestResolve_UnknownDirectOwnerIsTerminal(t *testing.T) {
	snap, err := discovered.NewSnapshot(
		&discovered.Entry{
			Address: contractC,
			Type:    address.TypeContract,
			Fields: []discovered.Field{
				{Name: "owner", Value: discovered.Addr(address.MustParse("eth:0x9999"), address.TypeUnknown)},
			},
		},
	)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: contractC, Functions: []overrides.FunctionOverride{permFunc("setOwner", "$self.owner")}},
		},
	}
	res, err := Resolve(doc, snap, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f := singleFunction(t, res, contractC, "setOwner")
	if len(f.UltimateOwners) != 1 {
		t.Fatalf("ultimate owners: %+v", f.UltimateOwners)
	}
	u := f.UltimateOwners[0]
	if u.Type != address.TypeUnknown || len(u.Via) != 0 || u.CumulativeDelay != 0 {
		t.Fatalf("unknown owner should be terminal: %+v", u)
	}
	if len(f.Warnings) != 0 {
		t.Fatalf("warnings: %v", f.Warnings)
	}
}

func TestResolve_EmptyOwnerDefinitions(t *testing.T) {
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: contractC, Functions: []overrides.FunctionOverride{permFunc("pause")}},
		},
	}
	res, err := Resolve(doc, scenarioSnapshot(t), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f := singleFunction(t, res, contractC, "pause")
	if len(f.DirectOwners) != 0 || len(f.UltimateOwners) != 0 || len(f.Warnings) != 0 {
		t.Fatalf("expected empty result: %+v", f)
	}
}

func TestResolve_OnlyPermissionedContractsIncluded(t *testing.T) {
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: contractC, Functions: []overrides.FunctionOverride{
				{FunctionName: "transfer", UserClassification: overrides.NonPermissioned},
			}},
			{Address: cycleA, Functions: []overrides.FunctionOverride{permFunc("setOwner", "$self.owner")}},
		},
	}
	res, err := Resolve(doc, scenarioSnapshot(t), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.Contracts) != 1 || res.Contracts[0].Address != cycleA {
		t.Fatalf("contracts: %+v", res.Contracts)
	}
}

func TestResolve_StrictModeRejectsWarnings(t *testing.T) {
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: contractC, Functions: []overrides.FunctionOverride{permFunc("pause", "$self.nonexistent")}},
		},
	}
	snap := scenarioSnapshot(t)
	if _, err := Resolve(doc, snap, Options{Mode: compliance.Strict}); err == nil {
		t.Fatalf("strict mode should fail on warnings")
	}
	if _, err := Resolve(doc, snap, Options{}); err != nil {
		t.Fatalf("permissive mode should succeed: %v", err)
	}
}

func TestResolve_ProvenanceStamped(t *testing.T) {
	snap := scenarioSnapshot(t)
	doc := &overrides.Document{
		Version: "1.0",
		Contracts: []overrides.ContractOverrides{
			{Address: contractC, Functions: []overrides.FunctionOverride{permFunc("changeAdmin", "$self.admin")}},
		},
	}
	res, err := Resolve(doc, snap, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.OverridesVersion != "1.0" || res.DiscoveredHash != snap.Hash {
		t.Fatalf("provenance: %+v", res)
	}
}
