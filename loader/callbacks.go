package loader

// Phase identifies a state of the load sequence.
type Phase string

// Load states, in order of a successful run.
const (
	// PhaseArming opens the transfer window on the loading node
	PhaseArming Phase = "arming"

	// PhaseTransferring streams the module image to the data node
	PhaseTransferring Phase = "transferring"

	// PhaseArmedComplete closes the transfer window
	PhaseArmedComplete Phase = "armed-complete"

	// PhasePolling waits for the status node to report idle
	PhasePolling Phase = "polling"

	// PhaseSucceeded concludes a load whose error node was empty
	PhaseSucceeded Phase = "succeeded"
)

// PhaseCallback is called on each state transition during a load.
// Implementations should return quickly to avoid delaying the protocol.
type PhaseCallback func(Phase)
