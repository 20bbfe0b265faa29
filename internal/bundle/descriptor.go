package bundle

import (
	"fmt"
	"math"
	"strings"

	"github.com/funvibe/funbit/pkg/funbit"

	"github.com/funvibe/funir/internal/config"
	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/source"
)

// The convention descriptor is a compact bitstring table emitted next
// to lowered bundles, one record per synthesized stub, for consumers
// that link against lowered code without loading the module: linkers,
// VMs, foreign-function shims.
//
// Layout, all fields big-endian:
//
//	magic   4 bits (0xD)
//	version 4 bits (0x1)
//	count   16 bits
//	records count × 96 bits:
//	    stub handle     32 bits
//	    original handle 32 bits
//	    kind            1 bit (0 function, 1 constructor)
//	    handler         1 bit (stub takes a trailing handler)
//	    static          1 bit (receivers folded into parameters)
//	    reserved        5 bits
//	    value params    16 bits (original's count)
//	    mask words      8 bits
const (
	descriptorMagic   = 0xD
	descriptorVersion = 0x1

	descriptorHeaderSize = 3  // bytes: magic + version + count
	descriptorRecordSize = 12 // bytes per record
)

// DescriptorEntry is one decoded stub record.
type DescriptorEntry struct {
	Stub     ir.FuncID
	Original ir.FuncID
	Kind     ir.FuncKind

	// Handler is set when the stub's trailing parameter is the dispatch
	// handler slot.
	Handler bool

	// Static is set when the original's receivers were folded into the
	// stub's leading value parameters.
	Static bool

	// ParamCount is the original declaration's value parameter count;
	// MaskWords presence masks cover it.
	ParamCount int
	MaskWords  int
}

// EncodeDescriptor walks the module's synthesized stubs in arena order
// and packs one record per stub. Modules with no stubs encode to a
// bare header.
func EncodeDescriptor(m *ir.Module) ([]byte, error) {
	entries, err := collectEntries(m)
	if err != nil {
		return nil, err
	}

	b := funbit.NewBuilder()
	funbit.AddInteger(b, uint(descriptorMagic), funbit.WithSize(4))
	funbit.AddInteger(b, uint(descriptorVersion), funbit.WithSize(4))
	funbit.AddInteger(b, uint(len(entries)), funbit.WithSize(16))
	for _, e := range entries {
		funbit.AddInteger(b, uint(e.Stub), funbit.WithSize(32))
		funbit.AddInteger(b, uint(e.Original), funbit.WithSize(32))
		funbit.AddInteger(b, boolBit(e.Kind == ir.KindConstructor), funbit.WithSize(1))
		funbit.AddInteger(b, boolBit(e.Handler), funbit.WithSize(1))
		funbit.AddInteger(b, boolBit(e.Static), funbit.WithSize(1))
		funbit.AddInteger(b, uint(0), funbit.WithSize(5))
		funbit.AddInteger(b, uint(e.ParamCount), funbit.WithSize(16))
		funbit.AddInteger(b, uint(e.MaskWords), funbit.WithSize(8))
	}

	bs, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("descriptor encoding failed: %w", err)
	}
	return bs.ToBytes(), nil
}

func collectEntries(m *ir.Module) ([]DescriptorEntry, error) {
	var entries []DescriptorEntry
	for i := range m.Funcs {
		id := ir.FuncID(i + 1)
		st := m.Func(id)
		if st.Origin != ir.OriginDefaultStub {
			continue
		}
		if !m.ValidFunc(st.StubOf) {
			return nil, fmt.Errorf("stub '%s' has no original declaration", st.Name)
		}
		orig := m.Func(st.StubOf)

		words := 0
		handler := false
		for _, pid := range st.Params {
			name := m.Value(pid).Name
			if strings.HasPrefix(name, config.MaskParamPrefix) {
				words++
			}
			handler = name == config.HandlerParamName
		}

		origHasRecv := orig.DispatchReceiver.IsValid() || orig.ExtensionReceiver.IsValid()
		stubHasRecv := st.DispatchReceiver.IsValid() || st.ExtensionReceiver.IsValid()

		entries = append(entries, DescriptorEntry{
			Stub:       id,
			Original:   st.StubOf,
			Kind:       st.Kind,
			Handler:    handler,
			Static:     origHasRecv && !stubHasRecv,
			ParamCount: len(orig.Params),
			MaskWords:  words,
		})
	}

	if len(entries) > math.MaxUint16 {
		return nil, fmt.Errorf("descriptor cannot index %d stubs", len(entries))
	}
	for _, e := range entries {
		if e.ParamCount > math.MaxUint16 || e.MaskWords > math.MaxUint8 {
			return nil, fmt.Errorf("stub %d declares %d parameters, too many for a descriptor record", e.Stub, e.ParamCount)
		}
	}
	return entries, nil
}

func boolBit(b bool) uint {
	if b {
		return 1
	}
	return 0
}

// DecodeDescriptor parses a descriptor back into entries. It never
// panics on arbitrary input; anything malformed is an ErrB004.
func DecodeDescriptor(data []byte) ([]DescriptorEntry, *diagnostics.DiagnosticError) {
	if len(data) < descriptorHeaderSize {
		return nil, corruptDescriptor("%d bytes is shorter than the header", len(data))
	}

	var magic, version, count uint
	hm := funbit.NewMatcher()
	funbit.Integer(hm, &magic, funbit.WithSize(4))
	funbit.Integer(hm, &version, funbit.WithSize(4))
	funbit.Integer(hm, &count, funbit.WithSize(16))
	if _, err := hm.Match(funbit.NewBitStringFromBytes(data[:descriptorHeaderSize])); err != nil {
		return nil, corruptDescriptor("header: %s", err)
	}
	if magic != descriptorMagic {
		return nil, corruptDescriptor("magic %#x, want %#x", magic, uint(descriptorMagic))
	}
	if version != descriptorVersion {
		return nil, corruptDescriptor("version %d, want %d", version, uint(descriptorVersion))
	}
	if want := descriptorHeaderSize + int(count)*descriptorRecordSize; len(data) != want {
		return nil, corruptDescriptor("length %d does not match %d records", len(data), count)
	}

	entries := make([]DescriptorEntry, 0, count)
	for i := 0; i < int(count); i++ {
		chunk := data[descriptorHeaderSize+i*descriptorRecordSize:]
		chunk = chunk[:descriptorRecordSize]

		var stub, orig, ctor, handler, static, reserved, params, words uint
		rm := funbit.NewMatcher()
		funbit.Integer(rm, &stub, funbit.WithSize(32))
		funbit.Integer(rm, &orig, funbit.WithSize(32))
		funbit.Integer(rm, &ctor, funbit.WithSize(1))
		funbit.Integer(rm, &handler, funbit.WithSize(1))
		funbit.Integer(rm, &static, funbit.WithSize(1))
		funbit.Integer(rm, &reserved, funbit.WithSize(5))
		funbit.Integer(rm, &params, funbit.WithSize(16))
		funbit.Integer(rm, &words, funbit.WithSize(8))
		if _, err := rm.Match(funbit.NewBitStringFromBytes(chunk)); err != nil {
			return nil, corruptDescriptor("record %d: %s", i, err)
		}

		if stub == 0 || orig == 0 {
			return nil, corruptDescriptor("record %d references a null handle", i)
		}
		if wantWords := (params + config.MaskWidth - 1) / config.MaskWidth; words != wantWords {
			return nil, corruptDescriptor("record %d declares %d mask words for %d parameters", i, words, params)
		}

		kind := ir.KindFunction
		if ctor == 1 {
			kind = ir.KindConstructor
		}
		entries = append(entries, DescriptorEntry{
			Stub:       ir.FuncID(stub),
			Original:   ir.FuncID(orig),
			Kind:       kind,
			Handler:    handler == 1,
			Static:     static == 1,
			ParamCount: int(params),
			MaskWords:  int(words),
		})
	}
	return entries, nil
}

func corruptDescriptor(format string, args ...interface{}) *diagnostics.DiagnosticError {
	return diagnostics.NewError(diagnostics.ErrB004, source.Span{}, fmt.Sprintf(format, args...))
}
