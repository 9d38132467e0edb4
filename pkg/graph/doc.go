// Package graph defines the operator-node surface shared by the
// converters: typed parameter values, parameter specs with validation,
// and the geometry bundle that flows between operators.
package graph
