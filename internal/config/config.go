// Package config holds the lowering options and the names of every
// synthesized artifact: the stub suffix, the mask parameter prefix and
// width, and the trailing marker/handler parameters.
//
// Options come from funir.yaml. Every field has a working default, so
// running without a config file is the common case.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Options is the top-level funir.yaml configuration.
type Options struct {
	// StaticStubs folds the dispatch and extension receivers of method
	// stubs into leading value parameters, producing free-standing
	// callables. Constructors are never folded; their receiver slot is
	// the outer instance of an inner class and must stay a receiver.
	StaticStubs bool `yaml:"staticStubs,omitempty"`

	// HandlerDispatch appends a trailing handler parameter to every
	// non-constructor stub. Stubs of declarations marked for handler
	// dispatch route through the handler when one is passed; everyone
	// else receives null there.
	HandlerDispatch bool `yaml:"handlerDispatch,omitempty"`

	// EmitDescriptor writes the binary convention descriptor next to
	// the lowered bundle.
	EmitDescriptor bool `yaml:"emitDescriptor,omitempty"`

	// CacheDir is where lowered bundles are cached, keyed by content.
	// Empty disables the cache.
	CacheDir string `yaml:"cacheDir,omitempty"`

	// Jobs is the number of input bundles lowered in parallel. Each
	// bundle is an independent arena, so parallelism stops at the file
	// boundary. 0 means one job per CPU.
	Jobs int `yaml:"jobs,omitempty"`

	// Dump selects the sections included in `funir dump` output.
	Dump DumpOptions `yaml:"dump,omitempty"`
}

// DumpOptions selects dump archive sections.
type DumpOptions struct {
	// Listing includes the readable module listing.
	Listing bool `yaml:"listing,omitempty"`

	// Descriptor includes a hex rendering of the convention descriptor.
	Descriptor bool `yaml:"descriptor,omitempty"`

	// Diagnostics includes the diagnostics emitted while lowering.
	Diagnostics bool `yaml:"diagnostics,omitempty"`
}

const maxJobs = 256

// DefaultOptions returns the options used when no funir.yaml is
// present.
func DefaultOptions() Options {
	var o Options
	o.setDefaults()
	return o
}

// LoadOptions reads and parses a funir.yaml file.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseOptions(data, path)
}

// ParseOptions parses funir.yaml content from bytes.
// The path argument is used only for error messages.
func ParseOptions(data []byte, path string) (*Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := opts.validate(path); err != nil {
		return nil, err
	}
	opts.setDefaults()
	return &opts, nil
}

// FindOptions searches for funir.yaml starting from dir and walking up
// to parent directories. Returns the path and nil if found, or empty
// string and nil if not found.
func FindOptions(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, OptionsFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the options for semantic errors.
func (o *Options) validate(path string) error {
	if o.Jobs < 0 {
		return fmt.Errorf("%s: jobs must not be negative, got %d", path, o.Jobs)
	}
	if o.Jobs > maxJobs {
		return fmt.Errorf("%s: jobs must not exceed %d, got %d", path, maxJobs, o.Jobs)
	}
	return nil
}

// setDefaults fills in defaults for omitted fields. Jobs stays 0 when
// omitted; the CLI resolves 0 to the CPU count.
func (o *Options) setDefaults() {
	if !o.Dump.Listing && !o.Dump.Descriptor && !o.Dump.Diagnostics {
		o.Dump.Listing = true
		o.Dump.Descriptor = true
	}
}

// Fingerprint renders the fields that change the lowered output. It
// feeds the bundle cache key: two runs with equal fingerprints over
// equal input produce byte-equal bundles.
func (o *Options) Fingerprint() []byte {
	return []byte(fmt.Sprintf("static=%t;handler=%t", o.StaticStubs, o.HandlerDispatch))
}
