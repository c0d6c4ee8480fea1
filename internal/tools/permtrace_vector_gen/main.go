// permtrace_vector_gen writes a sample project directory exercising
// the engine's reference scenarios: a trivial admin, a one-hop
// timelock chain with delay, a two-node ownership cycle, an
// access-control role table and an unresolvable owner path.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

const discoveredJSON = `{
  "entries": [
    {"address": "eth:0xc0", "type": "Contract", "name": "Vault", "fields": [
      {"name": "admin", "value": {"type": "address", "address": "eth:0xe1", "addressType": "EOA"}},
      {"name": "timelock", "value": {"type": "address", "address": "eth:0x71", "addressType": "Timelock"}},
      {"name": "accessControl", "value": {"type": "object", "entries": [
        {"key": "PAUSER_ROLE", "value": {"type": "object", "entries": [
          {"key": "adminRole", "value": {"type": "string", "value": "DEFAULT_ADMIN_ROLE"}},
          {"key": "members", "value": {"type": "array", "items": [
            {"type": "address", "address": "eth:0xe2", "addressType": "EOA"},
            {"type": "address", "address": "eth:0xe3", "addressType": "EOA"}
          ]}}
        ]}}
      ]}}
    ]},
    {"address": "eth:0x71", "type": "Timelock", "name": "Timelock", "fields": [
      {"name": "minDelay", "value": {"type": "number", "value": "86400"}},
      {"name": "admin", "value": {"type": "address", "address": "eth:0xf1", "addressType": "Multisig"}}
    ]},
    {"address": "eth:0xf1", "type": "Multisig", "name": "Council"},
    {"address": "eth:0xa1", "type": "Contract", "name": "CycleA", "fields": [
      {"name": "owner", "value": {"type": "address", "address": "eth:0xb1", "addressType": "Contract"}}
    ]},
    {"address": "eth:0xb1", "type": "Contract", "name": "CycleB", "fields": [
      {"name": "owner", "value": {"type": "address", "address": "eth:0xa1", "addressType": "Contract"}}
    ]},
    {"address": "eth:0xe1", "type": "EOA"},
    {"address": "eth:0xe2", "type": "EOA"},
    {"address": "eth:0xe3", "type": "EOA"}
  ]
}
`

const overridesJSON = `{
  "version": "1.0",
  "lastModified": "2026-01-05T00:00:00Z",
  "contracts": {
    "eth:0xc0": {
      "functions": [
        {"functionName": "changeAdmin", "userClassification": "permissioned",
         "ownerDefinitions": [{"path": "$self.admin"}]},
        {"functionName": "pause", "userClassification": "permissioned", "score": "high-risk",
         "ownerDefinitions": [
           {"path": "$self.timelock"},
           {"path": "$self.accessControl.PAUSER_ROLE.members", "permissionType": "member"},
           {"path": "$self.nonexistent"}
         ]}
      ]
    },
    "eth:0x71": {
      "functions": [
        {"functionName": "execute", "userClassification": "permissioned",
         "ownerDefinitions": [{"path": "$self.admin"}],
         "delay": {"contractAddress": "eth:0x71", "fieldName": "minDelay"}}
      ]
    },
    "eth:0xa1": {
      "functions": [
        {"functionName": "setOwner", "userClassification": "permissioned",
         "ownerDefinitions": [{"path": "$self.owner"}]}
      ]
    },
    "eth:0xb1": {
      "functions": [
        {"functionName": "setOwner", "userClassification": "permissioned",
         "ownerDefinitions": [{"path": "$self.owner"}]}
      ]
    }
  }
}
`

func main() {
	outDir := flag.String("out", "", "output project directory")
	flag.Parse()

	if *outDir == "" {
		fmt.Fprintln(os.Stderr, "usage: permtrace_vector_gen -out <dir>")
		os.Exit(2)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatalf("create output directory: %v", err)
	}
	write(filepath.Join(*outDir, "discovered.json"), discoveredJSON)
	write(filepath.Join(*outDir, "overrides.json"), overridesJSON)
	fmt.Println(*outDir)
}

func write(path, content string) {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		fatalf("write %s: %v", path, err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
