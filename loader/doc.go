// Package loader drives a TDX module load through the kernel's firmware
// upload interface.
//
// # Protocol
//
// The control interface is a sysfs directory with four attribute nodes:
//
//	<control-root>/loading   write "1" to open the transfer window,
//	                         "0" to close it
//	<control-root>/data      write the raw module image
//	<control-root>/status    reads "idle" once the load has concluded
//	<control-root>/error     empty on success, failure reason otherwise
//
// A load arms the interface, streams the blob, disarms, then polls the
// status node at a fixed interval until it reports "idle" or a wall-clock
// timeout expires. After the idle status the error node decides the outcome;
// its trimmed content is reported verbatim on failure.
//
// # Preconditions
//
// Load never touches the control interface for a rejected candidate: the
// module must be compatible with the platform snapshot, must not be a debug
// build unless the override is set, and must be TD-preserving-capable. The
// control root directory must exist.
//
// # Basic Usage
//
//	fs := afero.NewOsFs()
//	reader := platform.NewReader(fs)
//	snap := reader.Snapshot()
//
//	l := loader.New(fs, reader,
//	    loader.WithPhaseCallback(func(p loader.Phase) {
//	        fmt.Println("phase:", p)
//	    }),
//	)
//	result, err := l.Load(context.Background(), module, snap)
//
// # Error Handling
//
// The package provides structured error types:
//   - PreconditionError: candidate rejected before any write
//   - MissingControlRootError: control interface not present
//   - TimeoutError: status never reached "idle" in time
//   - DeviceError: the error node reported a failure
package loader
