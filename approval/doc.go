// Package approval implements the human-in-the-loop state machine for
// sensitive actions. At most one action per session waits for confirmation:
//
//	NONE -> PENDING -> (EXECUTED | DISCARDED | EXPIRED) -> NONE
//
// Detection of approval requests and classification of the user's reply sit
// behind small interfaces (Detector, ReplyClassifier) so the phrase based
// defaults can be replaced without touching the state machine.
package approval
