// Package submission turns a description into an automation by calling the
// host's creation service and, when the result is not returned inline,
// polling the fetch service under a bounded retry policy.
//
// Every path through Orchestrator.Submit resolves to exactly one Outcome.
// Backend failures never escape as errors.
package submission
