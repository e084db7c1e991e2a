package sessioncache

import "fmt"

// Kind enumerates the account-scoped singleton resources.
type Kind uint8

const (
	KindMailBox Kind = iota + 1
	KindContactList
	KindFileSystem
	KindShares
	KindProperties
)

// Kinds lists every resource kind: MailBox, Properties, then the fan-out
// kinds, which load concurrently.
var Kinds = [...]Kind{KindMailBox, KindProperties, KindContactList, KindFileSystem, KindShares}

// fanOutKinds are loaded concurrently for non-restricted accounts.
var fanOutKinds = [...]Kind{KindContactList, KindFileSystem, KindShares}

// well-known root instance ids (unpadded base64 of the type name)
const (
	MailBoxRootID     = "bWFpbGJveA"
	ContactListRootID = "Y29udGFjdGxpc3Q"
	FileSystemRootID  = "ZmlsZXN5c3RlbQ"
	SharesRootID      = "c2hhcmVz"
	PropertiesRootID  = "dHV0YW5vdGFwcm9wZXJ0aWVz"
)

// RootID returns the well-known root instance id of k.
func (k Kind) RootID() string {
	switch k {
	case KindMailBox:
		return MailBoxRootID
	case KindContactList:
		return ContactListRootID
	case KindFileSystem:
		return FileSystemRootID
	case KindShares:
		return SharesRootID
	case KindProperties:
		return PropertiesRootID
	default:
		return ""
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool { return k >= KindMailBox && k <= KindProperties }

func (k Kind) String() string {
	switch k {
	case KindMailBox:
		return "mailbox"
	case KindContactList:
		return "contact_list"
	case KindFileSystem:
		return "file_system"
	case KindShares:
		return "shares"
	case KindProperties:
		return "properties"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}
