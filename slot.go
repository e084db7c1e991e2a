package sessioncache

// Slot holds either nothing or one committed record. The zero value is empty.
type Slot[T any] struct {
	value   T
	present bool
}

// Present returns a populated slot.
func Present[T any](v T) Slot[T] { return Slot[T]{value: v, present: true} }

// Empty returns an unpopulated slot.
func Empty[T any]() Slot[T] { return Slot[T]{} }

// Get returns the record and whether the slot is populated.
func (s Slot[T]) Get() (T, bool) { return s.value, s.present }

func (s Slot[T]) IsEmpty() bool { return !s.present }

// slots is the per-kind storage owned by Cache. Each field is replaced as a
// whole under Cache.mu, never mutated in place.
type slots struct {
	mailBox     Slot[*MailBox]
	contactList Slot[*ContactList]
	fileSystem  Slot[*FileSystem]
	shares      Slot[*Shares]
	properties  Slot[*Properties]
}

func (s *slots) get(k Kind) Slot[Record] {
	switch k {
	case KindMailBox:
		return widen(s.mailBox)
	case KindContactList:
		return widen(s.contactList)
	case KindFileSystem:
		return widen(s.fileSystem)
	case KindShares:
		return widen(s.shares)
	case KindProperties:
		return widen(s.properties)
	default:
		return Empty[Record]()
	}
}

// put stores r in the slot matching its concrete type. Records of any other
// type are never passed in: RootResolver.Load rejects them.
func (s *slots) put(r Record) {
	switch v := r.(type) {
	case *MailBox:
		s.mailBox = Present(v)
	case *ContactList:
		s.contactList = Present(v)
	case *FileSystem:
		s.fileSystem = Present(v)
	case *Shares:
		s.shares = Present(v)
	case *Properties:
		s.properties = Present(v)
	}
}

func widen[T Record](s Slot[T]) Slot[Record] {
	v, ok := s.Get()
	if !ok {
		return Empty[Record]()
	}
	return Present[Record](v)
}
