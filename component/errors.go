package component

import "errors"

// ErrLoadCancelled is the in-band signal a FindComponent call resumes
// with after CancelComponentsLoad has been broadcast. It is not, on its
// own, a real failure: the boot orchestrator only treats it as fatal if
// no other failure preceded it.
var ErrLoadCancelled = errors.New("component: load cancelled")
