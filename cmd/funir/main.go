package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/txtar"

	"github.com/funvibe/funir/internal/bundle"
	"github.com/funvibe/funir/internal/config"
	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/lowering"
	"github.com/funvibe/funir/internal/pipeline"
	"github.com/funvibe/funir/internal/prettyprinter"
	"github.com/funvibe/funir/internal/validate"
)

// version is stamped at build time using:
// -ldflags "-X main.version=v1.2.3"
var version = "dev"

// stdout is shared by parallel build jobs; every job prints its own
// lines in one piece.
var printMu sync.Mutex

func main() {
	// Catch panics and show user-friendly error
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r) // Re-panic to get stack trace
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		handleBuild(os.Args[2:])
	case "dump":
		handleDump(os.Args[2:])
	case "sample":
		handleSample(os.Args[2:])
	case "version":
		fmt.Printf("funir %s\n", version)
	case "help", "-help", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("funir - default-parameter lowering for module bundles")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  funir build [-config file] [-o out] [-no-cache] <bundle>...")
	fmt.Println("        lower bundles; writes <input>" + config.LoweredBundleExt + " next to each input")
	fmt.Println("  funir dump [-config file] [-o out] <bundle>")
	fmt.Println("        write the build artifacts of one bundle as a txtar archive")
	fmt.Println("  funir sample [-static] [-handler]")
	fmt.Println("        print the built-in demo module before and after lowering")
	fmt.Println("  funir version")
	fmt.Println("        print the tool version")
}

// useColor reports whether stderr diagnostics should carry ANSI color.
func useColor() bool {
	// NO_COLOR convention: https://no-color.org/
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// printFindings writes diagnostics the way the pipeline reports them:
// a header, then one `- <diagnostic>` line per finding.
func printFindings(header string, errs []*diagnostics.DiagnosticError) {
	red, reset := "", ""
	if useColor() {
		red, reset = "\033[31m", "\033[0m"
	}
	fmt.Fprintln(os.Stderr, header)
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "%s- %s%s\n", red, err.Error(), reset)
	}
}

// loadOptions resolves the effective options: an explicit -config path
// wins, otherwise the nearest funir.yaml up from the working directory,
// otherwise the defaults.
func loadOptions(configPath string) *config.Options {
	if configPath != "" {
		opts, err := config.LoadOptions(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		return opts
	}

	found, err := config.FindOptions(".")
	if err == nil && found != "" {
		opts, lerr := config.LoadOptions(found)
		if lerr != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", lerr)
			os.Exit(1)
		}
		return opts
	}
	opts := config.DefaultOptions()
	return &opts
}

func handleBuild(args []string) {
	var configPath, outPath string
	noCache := false
	var inputs []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config", "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: -config requires a path")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		case "-o", "--output":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: -o requires a path")
				os.Exit(1)
			}
			i++
			outPath = args[i]
		case "-no-cache", "--no-cache":
			noCache = true
		default:
			if strings.HasPrefix(args[i], "-") {
				fmt.Fprintf(os.Stderr, "Unknown flag: %s\n", args[i])
				os.Exit(1)
			}
			inputs = append(inputs, args[i])
		}
	}

	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "Error: build requires at least one bundle")
		os.Exit(1)
	}
	if outPath != "" && len(inputs) > 1 {
		fmt.Fprintf(os.Stderr, "Error: -o cannot be used with %d inputs\n", len(inputs))
		os.Exit(1)
	}

	opts := loadOptions(configPath)
	cache := bundle.NewCache(opts.CacheDir)
	if noCache {
		cache = bundle.NewCache("")
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	if jobs > len(inputs) {
		jobs = len(inputs)
	}

	// Each bundle is an independent arena, so files lower in parallel.
	g := new(errgroup.Group)
	g.SetLimit(jobs)
	for _, input := range inputs {
		g.Go(func() error {
			return buildOne(input, outPath, opts, cache)
		})
	}
	if err := g.Wait(); err != nil {
		os.Exit(1)
	}
}

// buildOne lowers a single bundle file. Diagnostics go to stderr; the
// returned error only signals the exit code.
func buildOne(path, outPath string, opts *config.Options, cache *bundle.Cache) error {
	data, err := os.ReadFile(path)
	if err != nil {
		printMu.Lock()
		fmt.Fprintf(os.Stderr, "Error reading bundle: %s\n", err)
		printMu.Unlock()
		return err
	}

	if outPath == "" {
		outPath = strings.TrimSuffix(path, filepath.Ext(path)) + config.LoweredBundleExt
	}
	descPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + config.DescriptorExt

	key := bundle.CacheKey(data, opts.Fingerprint())
	if cached := cache.Lookup(key); cached != nil {
		if err := os.WriteFile(outPath, cached, 0644); err != nil {
			printMu.Lock()
			fmt.Fprintf(os.Stderr, "Error writing bundle: %s\n", err)
			printMu.Unlock()
			return err
		}
		printMu.Lock()
		fmt.Printf("Lowered %s -> %s (cached)\n", path, outPath)
		printMu.Unlock()
		return nil
	}

	in, derr := bundle.Deserialize(data)
	if derr != nil {
		printMu.Lock()
		printFindings(path+" failed to load:", []*diagnostics.DiagnosticError{derr})
		printMu.Unlock()
		return derr
	}

	if !in.Lowered {
		ctx := pipeline.NewPipelineContext(in.Module, opts)
		pipeline.New(
			&lowering.DefaultParameterProcessor{},
			&validate.ValidationProcessor{},
		).Run(ctx)
		if len(ctx.Errors) > 0 {
			printMu.Lock()
			printFindings(path+" failed with errors:", ctx.Errors)
			printMu.Unlock()
			return ctx.Errors[0]
		}
	}

	out := &bundle.Bundle{Lowered: true, Module: in.Module}
	raw, err := out.Serialize()
	if err != nil {
		printMu.Lock()
		fmt.Fprintf(os.Stderr, "Serialization error: %s\n", err)
		printMu.Unlock()
		return err
	}

	if err := os.WriteFile(outPath, raw, 0644); err != nil {
		printMu.Lock()
		fmt.Fprintf(os.Stderr, "Error writing bundle: %s\n", err)
		printMu.Unlock()
		return err
	}

	var descNote string
	if opts.EmitDescriptor {
		desc, err := bundle.EncodeDescriptor(in.Module)
		if err != nil {
			printMu.Lock()
			fmt.Fprintf(os.Stderr, "Descriptor error: %s\n", err)
			printMu.Unlock()
			return err
		}
		if err := os.WriteFile(descPath, desc, 0644); err != nil {
			printMu.Lock()
			fmt.Fprintf(os.Stderr, "Error writing descriptor: %s\n", err)
			printMu.Unlock()
			return err
		}
		descNote = fmt.Sprintf(", descriptor %s", descPath)
	}

	if err := cache.Store(key, raw); err != nil {
		// A dead cache never fails the build.
		printMu.Lock()
		fmt.Fprintf(os.Stderr, "Warning: %s\n", err)
		printMu.Unlock()
	}

	printMu.Lock()
	fmt.Printf("Lowered %s -> %s%s\n", path, outPath, descNote)
	fmt.Printf("Build %s, %d bytes\n", out.BuildID, len(raw))
	printMu.Unlock()
	return nil
}

func handleDump(args []string) {
	var configPath, outPath, input string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config", "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: -config requires a path")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		case "-o", "--output":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: -o requires a path")
				os.Exit(1)
			}
			i++
			outPath = args[i]
		default:
			if strings.HasPrefix(args[i], "-") {
				fmt.Fprintf(os.Stderr, "Unknown flag: %s\n", args[i])
				os.Exit(1)
			}
			if input != "" {
				fmt.Fprintln(os.Stderr, "Error: dump takes exactly one bundle")
				os.Exit(1)
			}
			input = args[i]
		}
	}
	if input == "" {
		fmt.Fprintln(os.Stderr, "Error: dump takes exactly one bundle")
		os.Exit(1)
	}

	opts := loadOptions(configPath)

	data, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading bundle: %s\n", err)
		os.Exit(1)
	}
	b, derr := bundle.Deserialize(data)
	if derr != nil {
		printFindings(input+" failed to load:", []*diagnostics.DiagnosticError{derr})
		os.Exit(1)
	}

	var findings []*diagnostics.DiagnosticError
	if !b.Lowered {
		ctx := pipeline.NewPipelineContext(b.Module, opts)
		pipeline.New(
			&lowering.DefaultParameterProcessor{},
			&validate.ValidationProcessor{},
		).Run(ctx)
		findings = ctx.Errors
	}

	archive, err := dumpArchive(input, b, opts, findings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	formatted := txtar.Format(archive)
	if outPath == "" {
		os.Stdout.Write(formatted)
		return
	}
	if err := os.WriteFile(outPath, formatted, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing archive: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("Dumped %s -> %s\n", input, outPath)
}

// dumpArchive collects the build artifacts selected by the dump
// options into one txtar archive.
func dumpArchive(input string, b *bundle.Bundle, opts *config.Options, findings []*diagnostics.DiagnosticError) (*txtar.Archive, error) {
	comment := fmt.Sprintf("funir dump of %s\nmodule %s", input, b.Module.Name)
	if b.BuildID != "" {
		comment += fmt.Sprintf("\nbuild %s", b.BuildID)
	}
	archive := &txtar.Archive{Comment: []byte(comment + "\n")}

	if opts.Dump.Listing {
		listing := prettyprinter.NewCodePrinter(b.Module).PrintModule()
		archive.Files = append(archive.Files, txtar.File{
			Name: "listing.fxl",
			Data: []byte(listing),
		})
	}

	if opts.Dump.Descriptor {
		desc, err := bundle.EncodeDescriptor(b.Module)
		if err != nil {
			return nil, err
		}
		archive.Files = append(archive.Files, txtar.File{
			Name: "descriptor.hex",
			Data: []byte(hex.Dump(desc)),
		})
	}

	if opts.Dump.Diagnostics {
		var sb strings.Builder
		if len(findings) == 0 {
			sb.WriteString("none\n")
		}
		for _, f := range findings {
			fmt.Fprintf(&sb, "- %s\n", f.Error())
		}
		archive.Files = append(archive.Files, txtar.File{
			Name: "diagnostics.txt",
			Data: []byte(sb.String()),
		})
	}

	return archive, nil
}

func handleSample(args []string) {
	opts := config.DefaultOptions()
	for _, arg := range args {
		switch arg {
		case "-static", "--static":
			opts.StaticStubs = true
		case "-handler", "--handler":
			opts.HandlerDispatch = true
		default:
			fmt.Fprintf(os.Stderr, "Unknown flag: %s\n", arg)
			os.Exit(1)
		}
	}

	m := sampleModule()
	fmt.Println("// before lowering")
	fmt.Println(prettyprinter.NewCodePrinter(m).PrintModule())

	if err := lowering.NewContext(m, &opts).Lower(); err != nil {
		printFindings("sample failed with errors:", []*diagnostics.DiagnosticError{err})
		os.Exit(1)
	}
	if errs := validate.NewValidator(m).Validate(); len(errs) > 0 {
		printFindings("sample failed validation:", errs)
		os.Exit(1)
	}

	fmt.Printf("// after lowering, %d stubs\n", stubCount(m))
	fmt.Println(prettyprinter.NewCodePrinter(m).PrintModule())
}

// stubCount is a convenience for the sample banner.
func stubCount(m *ir.Module) int {
	n := 0
	for i := range m.Funcs {
		if m.Funcs[i].Origin == ir.OriginDefaultStub {
			n++
		}
	}
	return n
}
