// Package secure provides memory-safe handling of decrypted secret values.
//
// This package wraps the memguard library. Decrypted values are staged in a
// locked buffer while they are copied to their destination, so that:
//
//   - the staging copy is protected from swapping via mlock
//   - the staging copy is wiped as soon as the write returns
//   - guard pages detect overflows of the staging buffer
//
// # Platform Behavior
//
// Memory locking behavior varies by platform:
//
//   - Linux: Requires RLIMIT_MEMLOCK to be set appropriately
//   - macOS: Works out of the box
//   - Windows: Uses VirtualLock
//
// # Security Guarantees
//
// Only the staging copy is protected. The string handed to the resolver by
// an engine is ordinary Go memory and is reclaimed by the garbage collector.
// Call memguard.Purge() at process exit to wipe any remaining buffers.
package secure
