// Package engine defines the boundary between animate and the analysis engine
// that loads, animates and inspects an Event-B machine.
//
// animate never interprets a model itself. It resolves the machine file, hands
// its absolute path and a preference map to an Engine, and drives the
// resulting Session. Concrete engines are provided as registry modules.
package engine
