package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"xdao.co/permtrace/compliance"
	"xdao.co/permtrace/keys"
	"xdao.co/permtrace/report"
	"xdao.co/permtrace/resolved"
	"xdao.co/permtrace/resolver"
	"xdao.co/permtrace/solver"
	"xdao.co/permtrace/solver/grpcsolver"
	"xdao.co/permtrace/storage/localfs"
	"xdao.co/permtrace/tagging"
)

var log = logrus.New()

func main() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "resolve":
		return cmdResolve(args[1:], out, errOut)
	case "report":
		return cmdReport(args[1:], out, errOut)
	case "facts":
		return cmdFacts(args[1:], out, errOut)
	case "doc-cid":
		return cmdDocCID(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "permtrace: permission resolution for discovered smart-contract projects")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  permtrace resolve [--project <dir>] [--config <yaml>] [--mode permissive|strict] [--backend traversal|exec|grpc] [--solver-command <cmd>] [--solver-target <addr>] [--signer <name>] [--verbose]")
	fmt.Fprintln(w, "  permtrace report [--project <dir>] [--tags <file>] [--title <text>] [--out <file>]")
	fmt.Fprintln(w, "  permtrace facts [--project <dir>]")
	fmt.Fprintln(w, "  permtrace doc-cid <file>")
	fmt.Fprintln(w, "  permtrace sign --signer <name> <resolved.json>")
	fmt.Fprintln(w, "  permtrace verify --signer-key <ed25519:...> --signature <b64> <resolved.json>")
	fmt.Fprintln(w, "  permtrace key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  permtrace key list")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - a project directory holds discovered.json and overrides.json")
	fmt.Fprintln(w, "  - resolve archives results under <project>/resolved/<cid>.json and prints the CID")
	fmt.Fprintln(w, "  - keys live under ~/.permtrace/keys/<name> (0600 private key files)")
	fmt.Fprintln(w, "  - sign emits a detached base64 signature over the document bytes")
}

// config is the optional YAML project configuration. Flags override
// file values.
type config struct {
	Project       string `yaml:"project"`
	Mode          string `yaml:"mode"`
	Backend       string `yaml:"backend"`
	SolverCommand string `yaml:"solverCommand"`
	SolverTarget  string `yaml:"solverTarget"`
	Signer        string `yaml:"signer"`
}

func cmdResolve(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "YAML config file")
	project := fs.String("project", "", "project directory (default \".\")")
	mode := fs.String("mode", "", "permissive|strict (default permissive)")
	backend := fs.String("backend", "", "traversal|exec|grpc (default traversal)")
	solverCommand := fs.String("solver-command", "", "external solver command for the exec backend")
	solverTarget := fs.String("solver-target", "", "gRPC solver address for the grpc backend")
	signer := fs.String("signer", "", "sign the archived document with this key")
	verbose := fs.Bool("verbose", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Errorf("config: %v", err)
		return 1
	}
	applyDefault(project, cfg.Project, ".")
	applyDefault(mode, cfg.Mode, "permissive")
	applyDefault(backend, cfg.Backend, "traversal")
	applyDefault(solverCommand, cfg.SolverCommand, "")
	applyDefault(solverTarget, cfg.SolverTarget, "")
	applyDefault(signer, cfg.Signer, "")

	opts := resolver.Options{}
	switch *mode {
	case "permissive":
	case "strict":
		opts.Mode = compliance.Strict
	default:
		log.Errorf("invalid mode %q", *mode)
		return 2
	}

	store, err := localfs.Open(*project)
	if err != nil {
		log.Errorf("open project: %v", err)
		return 1
	}
	snap, err := store.Snapshot()
	if err != nil {
		log.Errorf("read discovered snapshot: %v", err)
		return 1
	}
	doc, err := store.Load()
	if err != nil {
		log.Errorf("read overrides: %v", err)
		return 1
	}
	log.WithFields(logrus.Fields{
		"contracts": len(doc.Contracts),
		"snapshot":  snap.Len(),
		"hash":      snap.Hash,
	}).Debug("inputs loaded")

	var res *resolver.Resolution
	switch *backend {
	case "traversal":
		res, err = resolver.Resolve(doc, snap, opts)
	case "exec":
		if *solverCommand == "" {
			log.Error("exec backend requires --solver-command")
			return 2
		}
		b := &solver.ExecBackend{Command: strings.Fields(*solverCommand)}
		res, err = solver.Resolve(context.Background(), doc, snap, b, solver.Options{Mode: opts.Mode})
	case "grpc":
		if *solverTarget == "" {
			log.Error("grpc backend requires --solver-target")
			return 2
		}
		client, dialErr := grpcsolver.Dial(*solverTarget, grpcsolver.DialOptions{Timeout: 10 * time.Second})
		if dialErr != nil {
			log.Errorf("dial solver: %v", dialErr)
			return 1
		}
		defer client.Close()
		res, err = solver.Resolve(context.Background(), doc, snap, client, solver.Options{Mode: opts.Mode})
	default:
		log.Errorf("invalid backend %q", *backend)
		return 2
	}
	if err != nil {
		log.Errorf("resolve: %v", err)
		return 1
	}

	archive, err := resolved.RenderArchive(res, resolved.RenderOptions{GeneratedAt: time.Now()})
	if err != nil {
		log.Errorf("render: %v", err)
		return 1
	}
	if err := store.Append(archive); err != nil {
		log.Errorf("write resolved: %v", err)
		return 1
	}
	log.WithField("contracts", len(res.Contracts)).Info("resolution written")

	if *signer != "" {
		sig, code := signBytes(*signer, archive.Bytes)
		if code != 0 {
			return code
		}
		sigPath := filepath.Join(store.Root(), "resolved", archive.CID+".sig")
		if err := os.WriteFile(sigPath, []byte(sig+"\n"), 0o644); err != nil {
			log.Errorf("write signature: %v", err)
			return 1
		}
		log.WithField("path", sigPath).Info("signature written")
	}

	_, _ = fmt.Fprintln(out, archive.CID)
	return 0
}

func applyDefault(flagVal *string, cfgVal, fallback string) {
	if *flagVal != "" {
		return
	}
	if cfgVal != "" {
		*flagVal = cfgVal
		return
	}
	*flagVal = fallback
}

func cmdReport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(errOut)
	project := fs.String("project", ".", "project directory")
	tagsPath := fs.String("tags", "", "tag store file")
	title := fs.String("title", "", "report title")
	outPath := fs.String("out", "", "write the report here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	store, err := localfs.Open(*project)
	if err != nil {
		log.Errorf("open project: %v", err)
		return 1
	}
	snap, err := store.Snapshot()
	if err != nil {
		log.Errorf("read discovered snapshot: %v", err)
		return 1
	}
	doc, err := store.Load()
	if err != nil {
		log.Errorf("read overrides: %v", err)
		return 1
	}
	res, err := resolver.Resolve(doc, snap, resolver.Options{})
	if err != nil {
		log.Errorf("resolve: %v", err)
		return 1
	}

	var tags *tagging.Set
	if *tagsPath != "" {
		tags, err = tagging.Load(*tagsPath)
		if err != nil {
			log.Errorf("load tags: %v", err)
			return 1
		}
	}

	md := report.Render(res, report.Options{Title: *title, Tags: tags})
	if *outPath == "" {
		_, _ = out.Write(md)
		return 0
	}
	if err := os.WriteFile(*outPath, md, 0o644); err != nil {
		log.Errorf("write report: %v", err)
		return 1
	}
	return 0
}

func cmdFacts(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("facts", flag.ContinueOnError)
	fs.SetOutput(errOut)
	project := fs.String("project", ".", "project directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	store, err := localfs.Open(*project)
	if err != nil {
		log.Errorf("open project: %v", err)
		return 1
	}
	snap, err := store.Snapshot()
	if err != nil {
		log.Errorf("read discovered snapshot: %v", err)
		return 1
	}
	doc, err := store.Load()
	if err != nil {
		log.Errorf("read overrides: %v", err)
		return 1
	}
	for _, fact := range solver.Facts(doc, snap) {
		_, _ = fmt.Fprintln(out, fact)
	}
	return 0
}

func cmdDocCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("doc-cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: permtrace doc-cid <file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read document: %v\n", err)
		return 1
	}
	a, err := resolved.NewArchiveFromBytes(b)
	if err != nil {
		fmt.Fprintf(errOut, "invalid resolved document: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, a.CID)
	return 0
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	signer := fs.String("signer", "", "key name")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *signer == "" || fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: permtrace sign --signer <name> <resolved.json>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read document: %v\n", err)
		return 1
	}
	sig, code := signBytes(*signer, b)
	if code != 0 {
		return code
	}
	_, _ = fmt.Fprintln(out, sig)
	return 0
}

func signBytes(signer string, b []byte) (string, int) {
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		log.Errorf("key store: %v", err)
		return "", 1
	}
	priv, err := ks.LoadPrivateKey(signer)
	if err != nil {
		log.Errorf("load key %q: %v", signer, err)
		return "", 1
	}
	return keys.SignEd25519SHA256(b, priv), 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	signerKey := fs.String("signer-key", "", "signer key (ed25519:<base64>)")
	signature := fs.String("signature", "", "detached base64 signature")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *signerKey == "" || *signature == "" || fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: permtrace verify --signer-key <ed25519:...> --signature <b64> <resolved.json>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read document: %v\n", err)
		return 1
	}
	raw, ok := strings.CutPrefix(*signerKey, "ed25519:")
	if !ok {
		fmt.Fprintln(errOut, "signer key must start with ed25519:")
		return 2
	}
	pub, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		fmt.Fprintln(errOut, "invalid signer key")
		return 2
	}
	if err := keys.VerifyEd25519SHA256(b, *signature, ed25519.PublicKey(pub)); err != nil {
		fmt.Fprintf(errOut, "verification failed: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: permtrace key <init|list> ...")
		return 2
	}
	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("key init", flag.ContinueOnError)
		fs.SetOutput(errOut)
		name := fs.String("name", "", "key name")
		seedHex := fs.String("seed-hex", "", "32-byte ed25519 seed (64 hex chars); random when omitted")
		force := fs.Bool("force", false, "overwrite an existing key")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *name == "" {
			fmt.Fprintln(errOut, "usage: permtrace key init --name <name> [--seed-hex <64hex>] [--force]")
			return 2
		}
		var seed []byte
		if *seedHex != "" {
			var err error
			seed, err = keys.ParseSeedHex(*seedHex)
			if err != nil {
				fmt.Fprintf(errOut, "seed: %v\n", err)
				return 2
			}
		} else {
			seed = make([]byte, ed25519.SeedSize)
			if _, err := rand.Read(seed); err != nil {
				fmt.Fprintf(errOut, "generate seed: %v\n", err)
				return 1
			}
		}
		ks, err := keys.CreateKeyStore("")
		if err != nil {
			fmt.Fprintf(errOut, "key store: %v\n", err)
			return 1
		}
		signerKey, path, err := ks.InitializeKey(*name, seed, *force)
		if err != nil {
			fmt.Fprintf(errOut, "init key: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "%s\t%s\n", signerKey, path)
		return 0
	case "list":
		ks, err := keys.CreateKeyStore("")
		if err != nil {
			fmt.Fprintf(errOut, "key store: %v\n", err)
			return 1
		}
		names, err := ks.List()
		if err != nil {
			fmt.Fprintf(errOut, "list keys: %v\n", err)
			return 1
		}
		for _, n := range names {
			_, _ = fmt.Fprintln(out, n)
		}
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}
