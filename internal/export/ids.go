package export

import (
	"fmt"

	"github.com/google/uuid"
)

// Fixed namespaces for derived ids. Changing these re-keys every imported row.
var (
	nsConversation = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // uuid.NameSpaceDNS
	nsMessage      = uuid.MustParse("91f09d9b-2c47-4b67-9a6e-cf1b7d2a8f01")
	nsFile         = uuid.MustParse("4c6f8a3e-0d5b-4f2a-8f5c-9e1a2b3c4d5e")
)

// ConversationID returns the stable id for a record: the source-supplied id
// when present, otherwise a SHA1-namespace UUID over the record's document
// (scope, typically the input file name), the title, the raw creation
// timestamp, and the record's index within that document. The seed depends
// only on the record and its own document, never on what else a run happens
// to include, so resumed or subset runs derive the same ids and
// delete-then-insert emission converges.
func ConversationID(sourceID, scope, title, rawCreateTime string, ordinal int) string {
	if sourceID != "" {
		return sourceID
	}
	seed := fmt.Sprintf("%s|%s|%s|%d", scope, title, rawCreateTime, ordinal)
	return uuid.NewSHA1(nsConversation, []byte(seed)).String()
}

// MessageID derives the id of the idx-th message in a conversation.
func MessageID(conversationID string, idx int) string {
	return uuid.NewSHA1(nsMessage, []byte(fmt.Sprintf("%s#%d", conversationID, idx))).String()
}

// FileID derives the id of a media asset from its pointer. Two references to
// the same asset (in any conversation) share an id, so the copied artifact
// and its file-table row are written once however many times it appears.
func FileID(assetPointer string) string {
	return uuid.NewSHA1(nsFile, []byte(assetPointer)).String()
}
