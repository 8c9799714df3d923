package model

import "github.com/golang-jwt/jwt/v5"

// LoginRequest is the credential payload for interviewer login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token
type LoginResponse struct {
	Token         string `json:"token"`
	InterviewerID string `json:"interviewerId"`
}

// InterviewerClaims are the JWT claims for an interviewer token
type InterviewerClaims struct {
	InterviewerID string `json:"interviewerId"`
	jwt.RegisteredClaims
}
