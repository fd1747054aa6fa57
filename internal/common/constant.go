package common

// AccessTokenHeaderName is the HTTP header carrying the bearer access token.
const AccessTokenHeaderName = "Authorization"

// DraftTypeAdmission is the draft type for the student admission wizard.
// The draft store keys one row per (owner, draft type).
const DraftTypeAdmission = "admission"

// MaxReplayAttempts bounds per-item retries during offline queue replay.
// An item that fails this many times is discarded and reported.
const MaxReplayAttempts = 3
