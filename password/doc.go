// Package password hashes and verifies member passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes made with weaker parameters so a
// directory can rehash on the next password change.
//
// This package never stores passwords and never logs them.
package password
