package ssaloop

import (
	"errors"
	"go/constant"
	"go/token"
	"io"
	"io/ioutil"
	"log"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

var ErrIdxNotInt = errors.New("index is not int")

// CountedLoop is one loop with a recognized counting index.
type CountedLoop struct {
	Fn     *ssa.Function
	Header *ssa.BasicBlock

	IV    *ssa.Phi  // index variable
	Init  int64     // initial index value
	Step  int64     // per-iteration increment (negative counts down)
	Limit ssa.Value // bound the index is compared against
	Cmp   token.Token

	// incr is the increment edge of IV. Range loops test the incremented
	// index rather than the phi itself.
	incr *ssa.BinOp
}

// Detector scans SSA functions for counted loops.
type Detector struct {
	logger *log.Logger
}

func NewDetector() *Detector {
	return &Detector{
		logger: log.New(ioutil.Discard, "loopscan: ", 0),
	}
}

func (d *Detector) SetLog(w io.Writer) {
	d.logger.SetOutput(w)
}

// Detect returns the counted loops of all source functions in info.
// Loops whose index or bound does not fit the counted shape are logged and
// skipped, not reported as errors.
func (d *Detector) Detect(info *Info) []CountedLoop {
	var loops []CountedLoop
	for fn := range ssautil.AllFunctions(info.Prog) {
		if fn.Synthetic != "" {
			continue
		}
		for _, blk := range fn.Blocks {
			if blk.Comment != "for.loop" && blk.Comment != "rangeindex.loop" {
				continue
			}
			if cl, ok := d.analyseHeader(fn, blk); ok {
				loops = append(loops, cl)
			}
		}
	}
	return loops
}

// analyseHeader works out index, step and bound from a loop header block.
// The header holds the index Phi (one constant edge, one increment edge)
// and the bounding If condition.
func (d *Detector) analyseHeader(fn *ssa.Function, blk *ssa.BasicBlock) (CountedLoop, bool) {
	cl := CountedLoop{Fn: fn, Header: blk}
	for _, instr := range blk.Instrs {
		switch instr := instr.(type) {
		case *ssa.Phi:
			d.extractIndex(instr, &cl)
		case *ssa.If:
			d.extractCond(instr, &cl)
		}
	}
	if cl.IV == nil || cl.Step == 0 {
		d.logger.Printf("#%d in %s: no counting index", blk.Index, fn.String())
		return cl, false
	}
	if cl.Limit == nil {
		d.logger.Printf("#%d in %s: no index bound", blk.Index, fn.String())
		return cl, false
	}
	d.logger.Printf("#%d in %s: counted loop init=%d step=%d", blk.Index, fn.String(), cl.Init, cl.Step)
	return cl, true
}

// extractIndex takes a Phi in the loop header and works out the initial
// value and increment.
func (d *Detector) extractIndex(phi *ssa.Phi, cl *CountedLoop) {
	if len(phi.Edges) != 2 {
		return
	}
	var init int64
	var step int64
	var incr *ssa.BinOp
	found := false
	for _, e := range phi.Edges {
		switch edge := e.(type) {
		case *ssa.Const:
			if val, err := getIntConst(edge); err == nil {
				init = val
				found = true
			}
		case *ssa.BinOp:
			switch edge.Op {
			case token.ADD:
				if y, ok := edge.Y.(*ssa.Const); ok {
					if val, err := getIntConst(y); err == nil {
						step = val
						incr = edge
					}
				}
			case token.SUB:
				if y, ok := edge.Y.(*ssa.Const); ok {
					if val, err := getIntConst(y); err == nil {
						step = -val
						incr = edge
					}
				}
			}
		}
	}
	if found && step != 0 {
		cl.IV = phi
		cl.Init = init
		cl.Step = step
		cl.incr = incr
	}
}

// extractCond takes the header If and works out the index bound. The
// condition must be a comparison with the index variable on one side.
func (d *Detector) extractCond(ifelse *ssa.If, cl *CountedLoop) {
	binop, ok := ifelse.Cond.(*ssa.BinOp)
	if !ok || cl.IV == nil {
		return
	}
	switch binop.Op {
	case token.LSS, token.LEQ, token.GTR, token.GEQ, token.NEQ:
	default:
		return
	}
	// Range loops compare the incremented index, plain for loops the phi.
	if binop.X == cl.IV || binop.X == ssa.Value(cl.incr) {
		cl.Limit = binop.Y
		cl.Cmp = binop.Op
	} else if binop.Y == cl.IV || binop.Y == ssa.Value(cl.incr) {
		cl.Limit = binop.X
		cl.Cmp = flip(binop.Op)
	}
}

func flip(op token.Token) token.Token {
	switch op {
	case token.LSS:
		return token.GTR
	case token.LEQ:
		return token.GEQ
	case token.GTR:
		return token.LSS
	case token.GEQ:
		return token.LEQ
	}
	return op
}

func getIntConst(c *ssa.Const) (int64, error) {
	if c.Value == nil || c.Value.Kind() != constant.Int {
		return 0, ErrIdxNotInt
	}
	if v, ok := constant.Int64Val(c.Value); ok {
		return v, nil
	}
	return 0, ErrIdxNotInt
}
