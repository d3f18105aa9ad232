package messaging

// Flags are per-envelope delivery modifiers (spec.md §3).
type Flags struct {
	// God bypasses both the range check and the delay: delivery time
	// equals publication time and eligibility rule 3 (spec.md §4.2)
	// applies.
	God bool
	// Kill marks the envelope as carrying a command-level kill directive
	// (spec.md §6 /simba/command/<name>); on receipt the node core sets
	// TickResult.KillRequested and the kernel detaches the node after the
	// barrier.
	Kill bool
}

// Envelope is one delivery of a publication to one subscriber.
type Envelope struct {
	Origin          string
	Topic           Topic
	Payload         any
	PublicationTime float64
	DeliveryTime    float64
	Flags           Flags

	// seq disambiguates envelopes with equal DeliveryTime from the same
	// (Origin, subscriber, Topic) triple, preserving FIFO order (spec.md
	// §4.2).
	seq uint64
}

// Seq returns the monotonically increasing per-(origin,subscriber,topic) sequence
// number the bus assigned this envelope, exposed for tests asserting FIFO
// order.
func (e Envelope) Seq() uint64 { return e.seq }
