package engine

import "fmt"

// Status is the result code of an engine call. Zero is success; every
// other value is an engine-defined failure.
type Status int

const (
	StatusSuccess Status = iota
	StatusOutOfMemory
	StatusReadOnlyDatabase
	StatusIndexException
	StatusFileError
	StatusFileNotEmail
	StatusDuplicateMessageID
	StatusNullPointer
	StatusTagTooLong
	StatusUnbalancedFreezeThaw
	StatusUnbalancedAtomic
	StatusUnsupportedOperation
)

var statusText = map[Status]string{
	StatusSuccess:              "no error occurred",
	StatusOutOfMemory:          "out of memory",
	StatusReadOnlyDatabase:     "attempt to write to a read-only database",
	StatusIndexException:       "an index exception occurred",
	StatusFileError:            "something went wrong trying to read or write a file",
	StatusFileNotEmail:         "file is not an email",
	StatusDuplicateMessageID:   "message id is identical to a message in database",
	StatusNullPointer:          "erroneous NULL pointer",
	StatusTagTooLong:           "tag value is too long",
	StatusUnbalancedFreezeThaw: "unbalanced number of freeze/thaw calls",
	StatusUnbalancedAtomic:     "unbalanced atomic begin/end calls",
	StatusUnsupportedOperation: "unsupported operation",
}

// OK reports whether s is StatusSuccess.
func (s Status) OK() bool { return s == StatusSuccess }

func (s Status) String() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return fmt.Sprintf("unknown status %d", int(s))
}
