// Package errors provides structured, coded error handling for the signing core.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Record errors
	CodeRecordNotFound       Code = "RECORD_NOT_FOUND"
	CodeRecordNotSignable    Code = "RECORD_NOT_SIGNABLE"
	CodeRecordInvalidKind    Code = "RECORD_INVALID_KIND"
	CodeRecordNoSigners      Code = "RECORD_NO_SIGNERS"
	CodeRecordInvalidStatus  Code = "RECORD_INVALID_STATUS_TRANSITION"
	CodeRecordDuplicateRole  Code = "RECORD_DUPLICATE_SIGNER_ROLE"
	CodeRecordEmptyID        Code = "RECORD_EMPTY_ID"
	CodeSlotNotFound         Code = "SLOT_NOT_FOUND"
	CodeSlotAlreadySigned    Code = "SLOT_ALREADY_SIGNED"
	CodeSlotEmptyRole        Code = "SLOT_EMPTY_ROLE"
	CodeSignatureEmpty       Code = "EMPTY_SIGNATURE"
	CodeSignatureInvalidVia  Code = "SIGNATURE_INVALID_VIA"
	CodeSignatureTooLarge    Code = "SIGNATURE_TOO_LARGE"
	CodeSignatureUndecodable Code = "SIGNATURE_UNDECODABLE"

	// Token errors
	CodeTokenNotFound        Code = "TOKEN_NOT_FOUND"
	CodeTokenExpired         Code = "TOKEN_EXPIRED"
	CodeTokenAlreadyConsumed Code = "TOKEN_ALREADY_CONSUMED"
	CodeTokenSuperseded      Code = "TOKEN_SUPERSEDED"
	CodeTokenTargetMismatch  Code = "TOKEN_TARGET_MISMATCH"
	CodeTokenRequired        Code = "TOKEN_REQUIRED"
	CodeTokenEmptyRecipient  Code = "TOKEN_EMPTY_RECIPIENT"
	CodeTokenInvalidTTL      Code = "TOKEN_INVALID_TTL"
	CodeTokenGrantInvalid    Code = "TOKEN_GRANT_INVALID"

	// Election errors
	CodeElectionNotFound       Code = "ELECTION_NOT_FOUND"
	CodeElectionNotDraft       Code = "ELECTION_NOT_DRAFT"
	CodeElectionNotOpen        Code = "ELECTION_NOT_OPEN"
	CodeElectionCandidateCount Code = "ELECTION_CANDIDATE_COUNT"
	CodeCandidateUnknown       Code = "UNKNOWN_CANDIDATE"
	CodeCandidateEmptyName     Code = "CANDIDATE_EMPTY_NAME"
	CodeVoterNotFound          Code = "VOTER_NOT_FOUND"
	CodeVoterAlreadyVoted      Code = "VOTER_ALREADY_VOTED"
	CodeVoterEmptyContact      Code = "VOTER_EMPTY_CONTACT"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeRecordInvalidKind,
		CodeRecordNoSigners,
		CodeRecordDuplicateRole,
		CodeRecordEmptyID,
		CodeSlotEmptyRole,
		CodeSignatureEmpty,
		CodeSignatureInvalidVia,
		CodeSignatureTooLarge,
		CodeSignatureUndecodable,
		CodeTokenEmptyRecipient,
		CodeTokenInvalidTTL,
		CodeCandidateEmptyName,
		CodeVoterEmptyContact:
		return http.StatusBadRequest

	// Conflict - state doesn't allow the operation
	case CodeRecordNotSignable,
		CodeRecordInvalidStatus,
		CodeSlotAlreadySigned,
		CodeElectionNotDraft,
		CodeElectionNotOpen,
		CodeElectionCandidateCount,
		CodeCandidateUnknown,
		CodeVoterAlreadyVoted,
		CodeConflict:
		return http.StatusConflict

	// Unauthorized - token-security failures
	case CodeTokenNotFound,
		CodeTokenExpired,
		CodeTokenAlreadyConsumed,
		CodeTokenSuperseded,
		CodeTokenTargetMismatch,
		CodeTokenRequired,
		CodeTokenGrantInvalid:
		return http.StatusUnauthorized

	// Not found - resource doesn't exist
	case CodeRecordNotFound,
		CodeSlotNotFound,
		CodeElectionNotFound,
		CodeVoterNotFound,
		CodeNotFound:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}

// TokenSecurity reports whether this code belongs to the token-security
// class, whose detail must not be revealed to unauthenticated callers.
func (c Code) TokenSecurity() bool {
	switch c {
	case CodeTokenNotFound,
		CodeTokenExpired,
		CodeTokenAlreadyConsumed,
		CodeTokenSuperseded,
		CodeTokenTargetMismatch,
		CodeTokenGrantInvalid:
		return true
	default:
		return false
	}
}
