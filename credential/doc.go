// Package credential holds the session identity and the checks that gate a
// connection attempt on it.
//
// Guard performs structural and expiry validation of bearer tokens without
// verifying signatures: the remote service is the authority, the client only
// avoids dialing with a token the service will certainly refuse.
//
// Store is the read-only view of the external credential store. FileStore reads
// a JSON document from disk and StaticStore holds an identity in memory.
package credential
