// Package resource provides integer handle tables over shared owners.
//
// A Table stores one rc.Shared owner per handle. Callers outside the table
// refer to payloads by handle, the way a guest module refers to host
// objects, and decide per access whether they need ownership, observation
// or temporary access.
//
// # Access Modes
//
//	Get          new owner (caller releases it)
//	Observe      weak handle (does not keep the payload alive)
//	Borrow       raw pointer until ReturnBorrow; blocks Remove
//	Remove       drops the table's owner
//
// # Handle Table
//
//	table := resource.NewTable[File]()
//
//	s, _ := rc.New(File{path: "/tmp/a"})
//	handle, _ := table.Insert(FileTypeID, s) // s is now empty
//
//	f, _ := table.Get(handle)    // second owner
//	_ = table.Remove(handle)     // payload still alive through f
//	f.Release()                  // payload destroyed
//
// Handles are reused after Remove. Handle 0 is never issued.
//
// # Type IDs
//
// Each entry carries a caller-defined type ID. GetTyped rejects entries
// inserted under a different ID:
//
//	const FileTypeID = 1
//	const SocketTypeID = 2
//
//	f, err := table.GetTyped(handle, SocketTypeID) // KindInvalidInput
//
// # Observers
//
// Register observers to track handle lifecycle events:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("handle %d %s", e.Handle, e.Type)
//	}))
//
// Events are delivered after the table lock is released.
//
// # Closing
//
// Close releases every owner the table holds, including borrowed ones,
// and rejects further operations with errors.ErrClosed. Payloads that
// still have owners outside the table stay alive.
package resource
