package sessioncache

// Reference locates a stored record. ListID is empty for element types
// that do not live in a list.
type Reference struct {
	ListID    string `json:"listId,omitempty" msgpack:"listId,omitempty"`
	ElementID string `json:"elementId" msgpack:"elementId"`
}

func (r Reference) String() string {
	if r.ListID == "" {
		return r.ElementID
	}
	return r.ListID + "/" + r.ElementID
}

// IsZero reports whether r points nowhere.
func (r Reference) IsZero() bool { return r.ListID == "" && r.ElementID == "" }

// RootPointer indirects from a (group, root id) pair to the resource record.
type RootPointer struct {
	GroupID   string
	RootID    string
	Reference Reference
}

// Record is one of the five cached resource records.
type Record interface {
	Kind() Kind
}

// Bucketed is a record that carries a share bucket encrypted under the group key.
type Bucketed interface {
	Record
	BucketID() string
	EncryptedBucketKey() []byte
}

// FolderRef points at the list holding the mailbox's system folders.
type FolderRef struct {
	ListID string `json:"listId" msgpack:"listId"`
}

type MailBox struct {
	ID                   string    `json:"id" msgpack:"id"`
	ShareBucketID        string    `json:"shareBucketId" msgpack:"shareBucketId"`
	SymEncShareBucketKey []byte    `json:"symEncShareBucketKey" msgpack:"symEncShareBucketKey"`
	SystemFolders        FolderRef `json:"systemFolders" msgpack:"systemFolders"`
}

func (*MailBox) Kind() Kind                   { return KindMailBox }
func (m *MailBox) BucketID() string           { return m.ShareBucketID }
func (m *MailBox) EncryptedBucketKey() []byte { return m.SymEncShareBucketKey }

type ContactList struct {
	ID                   string `json:"id" msgpack:"id"`
	ShareBucketID        string `json:"shareBucketId" msgpack:"shareBucketId"`
	SymEncShareBucketKey []byte `json:"symEncShareBucketKey" msgpack:"symEncShareBucketKey"`
	ContactsListID       string `json:"contactsListId" msgpack:"contactsListId"`
}

func (*ContactList) Kind() Kind                   { return KindContactList }
func (c *ContactList) BucketID() string           { return c.ShareBucketID }
func (c *ContactList) EncryptedBucketKey() []byte { return c.SymEncShareBucketKey }

type FileSystem struct {
	ID                   string `json:"id" msgpack:"id"`
	ShareBucketID        string `json:"shareBucketId" msgpack:"shareBucketId"`
	SymEncShareBucketKey []byte `json:"symEncShareBucketKey" msgpack:"symEncShareBucketKey"`
	FilesListID          string `json:"filesListId" msgpack:"filesListId"`
}

func (*FileSystem) Kind() Kind                   { return KindFileSystem }
func (f *FileSystem) BucketID() string           { return f.ShareBucketID }
func (f *FileSystem) EncryptedBucketKey() []byte { return f.SymEncShareBucketKey }

// Shares holds the lists of incoming and outgoing share requests.
type Shares struct {
	ID             string `json:"id" msgpack:"id"`
	RequestsListID string `json:"requestsListId" msgpack:"requestsListId"`
	GrantsListID   string `json:"grantsListId" msgpack:"grantsListId"`
}

func (*Shares) Kind() Kind { return KindShares }

// Properties are account-wide settings.
type Properties struct {
	ID                       string `json:"id" msgpack:"id"`
	NotificationMailLanguage string `json:"notificationMailLanguage,omitempty" msgpack:"notificationMailLanguage,omitempty"`
	GroupEncEntropy          []byte `json:"groupEncEntropy,omitempty" msgpack:"groupEncEntropy,omitempty"`
}

func (*Properties) Kind() Kind { return KindProperties }
