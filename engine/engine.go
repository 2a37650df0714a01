// Package engine defines the contract of the mail-indexing engine that
// mailindex wraps.
//
// The engine owns every resource. Callers only ever see opaque Handle
// values and must follow three rules for each resource kind:
//
//   - Constructors return the zero Handle (Nil) on failure.
//   - Read and query calls take a live handle and return plain values,
//     child handles, or a Status.
//   - Destroy is not idempotent. It must be called exactly once per
//     successfully created handle, and never on a handle whose children
//     are still alive.
//
// Breaking these rules is undefined behavior as far as the contract is
// concerned. Implementations may crash, corrupt memory, or (like
// engine/memory) panic with a diagnostic.
package engine

// Handle is an opaque reference to a resource owned by the engine.
type Handle uint64

// Nil is the null handle returned by failed constructors.
const Nil Handle = 0

// IsNil reports whether h is the null handle.
func (h Handle) IsNil() bool { return h == Nil }

// DatabaseMode selects how a database is opened.
type DatabaseMode int

const (
	ModeReadOnly DatabaseMode = iota
	ModeReadWrite
)

func (m DatabaseMode) String() string {
	switch m {
	case ModeReadOnly:
		return "read-only"
	case ModeReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

// Sort is the result order of a query.
type Sort int

const (
	SortOldestFirst Sort = iota
	SortNewestFirst
	SortMessageID
	SortUnsorted
)

func (s Sort) String() string {
	switch s {
	case SortOldestFirst:
		return "oldest-first"
	case SortNewestFirst:
		return "newest-first"
	case SortMessageID:
		return "message-id"
	case SortUnsorted:
		return "unsorted"
	default:
		return "unknown"
	}
}

// DatabaseEngine covers the root resource.
type DatabaseEngine interface {
	// DatabaseCreate creates a new, empty database at path.
	DatabaseCreate(path string) (Handle, Status)
	// DatabaseOpen opens an existing database at path.
	DatabaseOpen(path string, mode DatabaseMode) (Handle, Status)
	// DatabaseDestroy closes the database and frees the handle.
	DatabaseDestroy(db Handle) Status

	DatabasePath(db Handle) string
	DatabaseVersion(db Handle) uint

	// DatabaseGetDirectory returns Nil with StatusSuccess when the
	// directory is not indexed.
	DatabaseGetDirectory(db Handle, path string) (Handle, Status)
	// DatabaseFindMessage returns Nil with StatusSuccess when no message
	// has the given id.
	DatabaseFindMessage(db Handle, messageID string) (Handle, Status)
	// DatabaseAllTags returns every tag used in the database.
	DatabaseAllTags(db Handle) Handle
}

// QueryEngine covers search definitions.
//
// Creating a query never touches the index. Only the search and count
// calls do.
type QueryEngine interface {
	// QueryCreate returns Nil when the query string is malformed or the
	// engine is out of resources.
	QueryCreate(db Handle, query string) Handle
	QueryString(q Handle) string
	QuerySetSort(q Handle, sort Sort)
	QuerySort(q Handle) Sort
	QueryAddTagExclude(q Handle, tag string) Status
	QuerySearchMessages(q Handle) (Handle, Status)
	QuerySearchThreads(q Handle) (Handle, Status)
	QueryCountMessages(q Handle) (uint32, Status)
	QueryCountThreads(q Handle) (uint32, Status)
	QueryDestroy(q Handle)
}

// MessagesEngine covers single-pass message result cursors.
type MessagesEngine interface {
	MessagesValid(m Handle) bool
	// MessagesGet returns the current message. Its handle is a child of
	// the cursor's owner, not of the cursor.
	MessagesGet(m Handle) Handle
	MessagesMoveToNext(m Handle)
	// MessagesCollectTags returns the union of the tags of every message
	// not yet visited and moves the cursor past the end.
	MessagesCollectTags(m Handle) Handle
	MessagesDestroy(m Handle)
}

// MessageEngine covers one message.
type MessageEngine interface {
	MessageID(m Handle) string
	MessageThreadID(m Handle) string
	MessageFilename(m Handle) string
	MessageFilenames(m Handle) Handle
	// MessageDate returns the message date in seconds since the epoch.
	MessageDate(m Handle) int64
	MessageHeader(m Handle, name string) string
	MessageTags(m Handle) Handle
	MessageAddTag(m Handle, tag string) Status
	MessageRemoveTag(m Handle, tag string) Status
	MessageDestroy(m Handle)
}

// ThreadsEngine covers single-pass thread result cursors.
type ThreadsEngine interface {
	ThreadsValid(t Handle) bool
	// ThreadsGet returns the current thread as a child of the cursor's
	// owner.
	ThreadsGet(t Handle) Handle
	ThreadsMoveToNext(t Handle)
	ThreadsDestroy(t Handle)
}

// ThreadEngine covers one thread.
type ThreadEngine interface {
	ThreadID(t Handle) string
	ThreadSubject(t Handle) string
	ThreadAuthors(t Handle) string
	ThreadTotalMessages(t Handle) int
	ThreadMatchedMessages(t Handle) int
	ThreadOldestDate(t Handle) int64
	ThreadNewestDate(t Handle) int64
	ThreadMessages(t Handle) Handle
	ThreadTopLevelMessages(t Handle) Handle
	ThreadTags(t Handle) Handle
	ThreadDestroy(t Handle)
}

// TagsEngine covers single-pass tag cursors.
type TagsEngine interface {
	TagsValid(t Handle) bool
	TagsGet(t Handle) string
	TagsMoveToNext(t Handle)
	TagsDestroy(t Handle)
}

// DirectoryEngine covers indexed directories.
type DirectoryEngine interface {
	DirectoryMtime(d Handle) int64
	DirectoryChildDirectories(d Handle) Handle
	DirectoryChildFiles(d Handle) Handle
	DirectoryDestroy(d Handle)
}

// FilenamesEngine covers single-pass path cursors.
type FilenamesEngine interface {
	FilenamesValid(f Handle) bool
	FilenamesGet(f Handle) string
	FilenamesMoveToNext(f Handle)
	FilenamesDestroy(f Handle)
}

// Engine is the full contract.
//
// Composed of one interface per resource kind so wrappers can depend on
// the narrowest slice they need.
type Engine interface {
	DatabaseEngine
	QueryEngine
	MessagesEngine
	MessageEngine
	ThreadsEngine
	ThreadEngine
	TagsEngine
	DirectoryEngine
	FilenamesEngine
}
