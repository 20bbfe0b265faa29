package ir

// Handles address declarations inside a Module. They are indexes into
// the module's arena slices, offset by one: the zero value is always
// invalid, so a map of handles can tell "unset" from "first entry".

type FuncID uint32

type ClassID uint32

type ValueID uint32

const (
	InvalidFunc  FuncID  = 0
	InvalidClass ClassID = 0
	InvalidValue ValueID = 0
)

func (id FuncID) IsValid() bool { return id != InvalidFunc }

func (id ClassID) IsValid() bool { return id != InvalidClass }

func (id ValueID) IsValid() bool { return id != InvalidValue }
