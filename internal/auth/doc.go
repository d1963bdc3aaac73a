// Package auth implements the session lifecycle: issuing signed credentials
// mirrored into the session store, validating them against both signature and
// store state, and revoking them by deleting the store record.
//
// The one invariant everything here serves: a session record exists in the
// store iff its token is valid for authorization. Cache write failure aborts
// issuance, and validation fails closed on any store error.
package auth
