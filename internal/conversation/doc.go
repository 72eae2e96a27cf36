// Package conversation drives the guided question/answer flow used to
// describe an automation before it is generated.
//
// An Engine walks a fixed, ordered list of clarifying questions. Each valid
// answer is recorded against the current step and echoed into a message log,
// followed by the next question. Once the last question is answered the engine
// is complete and its Transcript becomes the description submitted to the
// automation backend.
//
// States:
//
//	AwaitingStep(0) ─answer─▶ AwaitingStep(1) ─answer─▶ ... ─answer─▶ Complete
//	      ▲                                                            │
//	      └──────────────────────────── Reset ◀────────────────────────┘
//
// # Thread Safety
//
// Engine is not safe for concurrent use. It is owned by a single session
// controller, which serialises access.
package conversation
