// Package mailindex is a safe wrapper around a handle-based mail-indexing
// engine.
//
// The engine (package engine) owns every resource and hands out opaque
// handles that must be destroyed exactly once, children before parents.
// This package wraps each handle in a resource value that tracks who holds
// it and destroys it in the right order. Misuse that the engine would
// treat as undefined behavior (use after destroy, double release, closing
// a resource that is still borrowed) panics with *MisuseError instead.
//
// # Basic Usage
//
//	eng := memory.New(memory.WithIndex("/mail", idx))
//
//	db, err := mailindex.Open(ctx, "/mail", mailindex.ModeReadOnly,
//	    mailindex.WithEngine(eng),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	q, err := db.CreateQuery("tag:inbox")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer q.Close()
//	q.SetSort(mailindex.SortOldestFirst)
//
//	msgs, err := q.SearchMessages()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer msgs.Close()
//	for msg := range msgs.All() {
//	    fmt.Println(msg.ID(), msg.Header("subject"))
//	    msg.Close()
//	}
//	if err := msgs.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Ownership
//
// Every resource is created by an operation on its owner and holds one
// token on it. A token is in one of three modes:
//
//   - Borrowed: the default for method sugar such as db.CreateQuery and
//     q.SearchMessages. The owner cannot be destroyed while the borrow is
//     outstanding.
//   - Shared: reference counted. The owner is destroyed when its own
//     reference and every shared token are released, in any order and
//     from any goroutine.
//   - Exclusive: created by Own, which moves the owner's reference into a
//     Ref. Releasing the Ref destroys the owner.
//
// Functions taking a Ref (CreateQuery, SearchMessagesFrom,
// SearchThreadsFrom, DirectoryFrom) let the caller pick the mode:
//
//	msgs, err := mailindex.SearchMessagesFrom(q.Share())
//	q.Close() // the query lives until msgs is closed
//
// Messages and threads yielded by an iterator hold a token derived from
// the iterator's own parent token, so they outlive the iterator but not
// the query. An Exclusive parent token is promoted to Shared when derived.
//
// # Iterators
//
// Messages, Threads, Tags and Filenames are single-pass. Once Next
// returns false the iterator is exhausted for good; search again to
// restart. Messages.CollectTags consumes the rest of the iterator.
//
// # Events
//
// Adding or removing a tag publishes a TagEvent on the database's event
// bus. The default transport drops events; use WithEventTransport or
// WithRedisClient to deliver them.
package mailindex
