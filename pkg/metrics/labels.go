// Package metrics defines the Prometheus collectors of the scheduler. Every
// constructor accepts a nil Registerer and then returns a no-op value, so
// tests and optional wiring never need a registry.
package metrics

// normalizeLabel keeps empty label values visible as "unknown".
func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
