package config

// Names of the synthesized artifacts. '$' cannot appear in a surface
// identifier, so stubs and their trailing parameters never collide
// with user declarations.
const (
	StubSuffix       = "$default"
	MaskParamPrefix  = "$mask"
	MarkerParamName  = "$marker"
	HandlerParamName = "$handler"
)

// Type names of the synthesized trailing parameters. The marker type
// has no constructor in any surface program; its only value is the
// null the rewriter passes, which keeps stub overloads unambiguous.
const (
	MarkerTypeName  = "ConstructorMarker"
	HandlerTypeName = "DispatchHandler"
)

// MaskWidth is the number of presence bits one mask parameter carries.
// A declaration with n value parameters gets ceil(n / MaskWidth) mask
// parameters; bit i%MaskWidth of mask i/MaskWidth is set when value
// parameter i was omitted at the call site.
const MaskWidth = 32

// Bundle file extensions
const (
	BundleExt        = ".fir"
	LoweredBundleExt = ".firl"
	DescriptorExt    = ".fird"
)

// OptionsFileName is picked up from the working directory when no
// explicit -config path is given.
const OptionsFileName = "funir.yaml"
