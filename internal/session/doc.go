// Package session drives one panel session through its phases:
//
//	collecting ──Submit──▶ submitting ──▶ done | error
//	     ▲                                   │
//	     └───────────────Reset───────────────┘
//
// In guided mode answers are collected by a conversation.Engine and the
// transcript is submitted. In single mode one free-text description is
// submitted directly.
//
// A Controller allows one submission in flight. Every submission ends in
// done or error, including when the submitter panics.
package session
