package config

// TreeFileExt is the default extension of YAML tree documents.
const TreeFileExt = ".tree.yaml"

// TreeFileExtensions are all recognized tree document extensions
var TreeFileExtensions = []string{".tree.yaml", ".tree.yml", ".yaml", ".yml"}

// ProtoFileExtensions are the extensions of binary (protobuf) tree documents
var ProtoFileExtensions = []string{".tree.pb", ".pb"}

// MaxArity is the largest parameter count served by a precompiled thunk
// template. Shapes above it are generated on demand by the factory.
const MaxArity = 15

// DefaultTieredThreshold is the number of invocations a tiered thunk runs
// interpreted before it is promoted to the native back end.
const DefaultTieredThreshold = 32

// ParentSlot is the slot of a nested closure record that holds the
// enclosing record.
const ParentSlot = 0

// Policy names
const (
	PolicyImmediate   = "immediate"
	PolicyInterpreted = "interpreted"
	PolicyTiered      = "tiered"
)

// Back end names
const (
	NativeBackendName   = "native"
	TreeWalkBackendName = "tree-walk"
)

// DefaultAddr is the address thunkc serve listens on and thunkc call dials.
const DefaultAddr = "127.0.0.1:7070"

// DefaultHistoryLimit is the number of runs thunkc history shows.
const DefaultHistoryLimit = 20
