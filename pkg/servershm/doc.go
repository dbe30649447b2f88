// Package servershm is the shared-memory control-bus exchange between an
// audio server process and any number of attached client processes.
//
// The server owns a float32 control-bus array allocated inside a managed
// shared memory segment (pkg/shm) whose name both sides derive from the
// server's port number. Clients open the segment by that name, look the
// published bus block up in the in-segment directory, and from then on read
// the very same memory the server writes, with no message protocol in
// between.
//
// Bus writes do not hit the array directly: they are queued and applied by
// DrainPendingUpdates at a safe point of the audio cycle, keeping the engine
// thread's read pass free of mid-block tearing from other writer threads.
package servershm
