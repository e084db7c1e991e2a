// Package sessioncache resolves and caches the account-scoped singleton
// resources of one login session: mailbox, properties, contact list,
// file system and shares.
//
// Components:
//   - RootResolver: maps (group id, Kind) to a root pointer, then loads the record it references.
//   - BucketKeyDeriver: decrypts a record's share bucket key with the session group key.
//   - Cache: runs the initialization protocol once per login and exposes the cached slots.
//
// Initialization order:
//
//	MailBox (+ folder tree) -> Properties -> [restricted? stop] -> ContactList | FileSystem | Shares
//
// The first two steps are strictly sequential; a failure stops the run. The
// last three run concurrently; each commits its own slot on success, and the
// run fails after all of them finished if any one failed.
//
// Bucket data is never cached. Every call to a *BucketData accessor derives
// the key again from the live session group key.
//
// Usage:
//
//	c, _ := sessioncache.New(sessioncache.Options{
//	    Session:    session,
//	    Pointers:   loader,
//	    Entities:   loader,
//	    Crypto:     symcrypto.XChaCha{},
//	    FolderTree: folders.NewBuilder(loader, registry),
//	})
//	if err := c.InitForUser(ctx); err != nil { ... }
//	bd, err := c.MailBoxBucketData()
package sessioncache
