// Package connector holds the foreign table connector framework.
//
// The connector package is organized into several sub-packages:
//
//   - core: the lifecycle interfaces a connector implements (Routines) and
//     the host surface it talks to (Host, Column, Row), plus cell and type
//     identifiers.
//
//   - registry: a factory registry. Connectors self-register from init and
//     hosts create them by name.
//
//   - sources: source connector implementations. Only sheets exists today;
//     import the sources package to link every connector in.
//
// # Lifecycle
//
// A host calls Init once per connector value, then for every query
// BeginScan, IterScan until it reports no more rows, and EndScan. ReScan
// and the modify routines belong to the same contract; read-only
// connectors reject them.
//
// # Errors
//
// Connectors return *errors.Error values from pkg/errors so hosts can
// branch on the error type and code.
package connector
