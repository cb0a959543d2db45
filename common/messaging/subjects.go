package messaging

// Subject constants for the intel message bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	SubjectMetricPoints    = "intel.metrics.points"   // Enriched metric points, one message per batch
	SubjectRejectedBatches = "intel.batches.rejected" // Batches that could not be processed
)

// Header keys set on published messages.
const (
	HeaderBatchID     = "Intel-Batch-Id"
	HeaderSourcePath  = "Intel-Source-Path"
	HeaderContentType = "Content-Type"
)

// MeasurementSubject returns a per-family subject for point fan-out.
// Example: intel.metrics.points.attack_intel
func MeasurementSubject(base, measurement string) string {
	return base + "." + measurement
}
