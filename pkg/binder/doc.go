// Package binder decodes JSON request bodies into structs.
//
// The binder enforces an application/json content type and a body size limit,
// rejects unknown fields and trailing data, and cleans decoded strings of
// control characters and surrounding whitespace:
//
//	type VerifyRequest struct {
//	    ChallengeID string `json:"challenge_id"`
//	    Code        string `json:"code"`
//	}
//
//	var req VerifyRequest
//	if err := binder.JSON()(r, &req); err != nil {
//	    // errors.Is(err, binder.ErrUnsupportedMediaType) etc.
//	}
package binder
