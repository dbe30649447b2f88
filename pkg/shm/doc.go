// Package shm implements a managed shared memory segment: a named,
// cross-process memory region carrying its own allocator and a name-to-object
// directory, so independent processes can allocate structures inside the
// region and look them up by name.
//
// All references stored inside the region are byte offsets from the region
// base. Each process resolves offsets against its own mapping, which is what
// keeps the layout valid even when the region is mapped at different virtual
// addresses in different processes.
//
// Platform mapping primitives are in internal/shm.
package shm
