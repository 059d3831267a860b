package command

import "context"

// FuncInverseOp adapts a plain closure to InverseOp, the shape
// internal/engine uses to build inverse descriptors for each mutation kind
// without command needing to know treeops/workingcopy's concrete types.
type FuncInverseOp struct {
	Desc string
	Fn   func(ctx context.Context) (int64, error)
}

func (f FuncInverseOp) Apply(ctx context.Context) (int64, error) { return f.Fn(ctx) }
func (f FuncInverseOp) Describe() string                         { return f.Desc }
