// Package bundle is the serialized form of an IR module: a magic
// number, a format version and a gob payload, plus the binary
// calling-convention descriptor emitted next to lowered bundles and
// the content-addressed cache the CLI stores results in.
//
// Frontends deliver unlowered bundles; funir emits lowered ones. Both
// directions share one format, discriminated by the Lowered flag.
package bundle

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/google/uuid"

	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/source"
	"github.com/funvibe/funir/internal/typesystem"
	"github.com/funvibe/funir/internal/validate"
)

func init() {
	// Register every concrete node that can sit behind an Expr, Stmt
	// or Type interface field of the module.
	gob.Register(&ir.IntConst{})
	gob.Register(&ir.BoolConst{})
	gob.Register(&ir.StringConst{})
	gob.Register(&ir.NullConst{})
	gob.Register(&ir.GetValue{})
	gob.Register(&ir.Binary{})
	gob.Register(&ir.If{})
	gob.Register(&ir.Call{})
	gob.Register(&ir.ErrorExpr{})
	gob.Register(&ir.VarDecl{})
	gob.Register(&ir.Return{})
	gob.Register(&ir.ExprStmt{})
	gob.Register(&ir.Block{})
	gob.Register(typesystem.TVar{})
	gob.Register(typesystem.TCon{})
	gob.Register(typesystem.TApp{})
	gob.Register(typesystem.TFunc{})
}

// bundleMagic identifies a funir module bundle.
var bundleMagic = [4]byte{'F', 'I', 'R', 'B'}

// bundleVersion is the current bundle format version.
const bundleVersion byte = 0x01

// Bundle wraps one IR module for transport between tools.
type Bundle struct {
	// BuildID identifies the build that produced the bundle. Serialize
	// assigns a fresh one when it is empty.
	BuildID string

	// Lowered is set on bundles funir has already processed. Loading a
	// lowered bundle into the lowering pipeline is legal and a no-op.
	Lowered bool

	Module *ir.Module
}

// Serialize converts the bundle to its binary format:
// magic "FIRB" (4 bytes), version (1 byte), gob-encoded Bundle.
func (b *Bundle) Serialize() ([]byte, error) {
	if b.BuildID == "" {
		b.BuildID = uuid.NewString()
	}

	buf := new(bytes.Buffer)
	buf.Write(bundleMagic[:])
	buf.WriteByte(bundleVersion)

	enc := gob.NewEncoder(buf)
	if err := enc.Encode(b); err != nil {
		return nil, fmt.Errorf("bundle gob encoding failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize reads a bundle back from its binary format. The module
// passes the structural handle gate before it is returned: every
// declaration reference must resolve inside the arena. Lowering-state
// checks are deliberately not applied here, since unlowered bundles
// legitimately carry live defaults and absent arguments.
func Deserialize(data []byte) (*Bundle, *diagnostics.DiagnosticError) {
	if len(data) < 5 {
		return nil, diagnostics.NewError(diagnostics.ErrB001, source.Span{})
	}
	if !bytes.Equal(data[:4], bundleMagic[:]) {
		return nil, diagnostics.NewError(diagnostics.ErrB001, source.Span{})
	}
	if data[4] != bundleVersion {
		return nil, diagnostics.NewError(diagnostics.ErrB002, source.Span{}, data[4], bundleVersion)
	}

	dec := gob.NewDecoder(bytes.NewReader(data[5:]))
	var b Bundle
	if err := dec.Decode(&b); err != nil {
		return nil, diagnostics.NewError(diagnostics.ErrB003, source.Span{}, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks that the bundle carries a structurally sound module.
func (b *Bundle) Validate() *diagnostics.DiagnosticError {
	if b.Module == nil {
		return diagnostics.NewError(diagnostics.ErrB003, source.Span{}, "bundle carries no module")
	}
	if errs := validate.NewValidator(b.Module).Handles(); len(errs) > 0 {
		return errs[0]
	}
	return nil
}
