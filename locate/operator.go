package locate

import "context"

type operatorKey struct{}

// SystemOperator is recorded when no operator is attached to the context
const SystemOperator = "system"

// WithOperator attaches the acting operator to ctx for audit events
func WithOperator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operatorKey{}, name)
}

// OperatorFrom returns the operator attached to ctx
func OperatorFrom(ctx context.Context) string {
	if name, ok := ctx.Value(operatorKey{}).(string); ok && name != "" {
		return name
	}
	return SystemOperator
}
