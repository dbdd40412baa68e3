package ir

// Op identifies the operation of a Node.
type Op uint8

const (
	OpInvalid Op = iota

	// Control.
	OpRoot
	OpHalt
	OpLoop
	OpStripMinedLoop
	OpRegion
	OpIf
	OpRangeCheck
	OpIfTrue
	OpIfFalse
	OpParsePredicate
	OpTemplateAssertionPred
	OpTrapCall
	OpSafePoint

	// Data.
	OpOpaqueLoopInit
	OpOpaqueLoopStride
	OpOpaqueAssertionPred
	OpBool
	OpCmpI
	OpCmpU
	OpAddI
	OpSubI
	OpMulI
	OpCastII
	OpConvI2L
	OpConI
	OpPhi
	OpParam
	OpStore
)

var opNames = [...]string{
	OpInvalid:               "Invalid",
	OpRoot:                  "Root",
	OpHalt:                  "Halt",
	OpLoop:                  "Loop",
	OpStripMinedLoop:        "StripMinedLoop",
	OpRegion:                "Region",
	OpIf:                    "If",
	OpRangeCheck:            "RangeCheck",
	OpIfTrue:                "IfTrue",
	OpIfFalse:               "IfFalse",
	OpParsePredicate:        "ParsePredicate",
	OpTemplateAssertionPred: "TemplateAssertionPred",
	OpTrapCall:              "TrapCall",
	OpSafePoint:             "SafePoint",
	OpOpaqueLoopInit:        "OpaqueLoopInit",
	OpOpaqueLoopStride:      "OpaqueLoopStride",
	OpOpaqueAssertionPred:   "OpaqueAssertionPred",
	OpBool:                  "Bool",
	OpCmpI:                  "CmpI",
	OpCmpU:                  "CmpU",
	OpAddI:                  "AddI",
	OpSubI:                  "SubI",
	OpMulI:                  "MulI",
	OpCastII:                "CastII",
	OpConvI2L:               "ConvI2L",
	OpConI:                  "ConI",
	OpPhi:                   "Phi",
	OpParam:                 "Param",
	OpStore:                 "Store",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "Op?"
}

// IsCFG reports whether op is a control-flow node.
func (op Op) IsCFG() bool {
	return op >= OpRoot && op <= OpSafePoint
}

// IsIf reports whether op is a two-way branch with projections.
func (op Op) IsIf() bool {
	return op == OpIf || op == OpRangeCheck
}

// IsProj reports whether op is a branch projection.
func (op Op) IsProj() bool {
	return op == OpIfTrue || op == OpIfFalse
}

// BoolTest is the comparison performed by a Bool node on its Cmp input.
type BoolTest uint8

const (
	TestEq BoolTest = iota
	TestNe
	TestLt
	TestLe
	TestGt
	TestGe
)

var testNames = [...]string{
	TestEq: "==", TestNe: "!=", TestLt: "<", TestLe: "<=", TestGt: ">", TestGe: ">=",
}

func (t BoolTest) String() string {
	if int(t) < len(testNames) {
		return testNames[t]
	}
	return "?"
}

// Eval applies the test to a comparison result (negative, zero, positive).
func (t BoolTest) Eval(cmp int) bool {
	switch t {
	case TestEq:
		return cmp == 0
	case TestNe:
		return cmp != 0
	case TestLt:
		return cmp < 0
	case TestLe:
		return cmp <= 0
	case TestGt:
		return cmp > 0
	case TestGe:
		return cmp >= 0
	}
	return false
}
