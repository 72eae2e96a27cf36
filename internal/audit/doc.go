// Package audit stores the activity trail of the automation creator panel.
//
// Every state-changing panel operation (opening, submitting, resetting and
// closing sessions, deleting generated automations) is written to the
// audit_entries table with the token subject that performed it. Entries are
// append-only and are listed newest first.
package audit
