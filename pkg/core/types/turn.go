// Package types defines the shared data model: turns, sessions metadata,
// languages, scenarios, and audio clips.
package types

import (
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleTutor Role = "tutor"
)

// Turn is one message exchange unit, authored by the user or by the tutor
// persona. User turns carry the literal text and/or a reference to submitted
// audio; tutor turns carry the decoded structured response.
type Turn struct {
	Role       Role            `json:"role"`
	Text       string          `json:"text,omitempty"`
	Audio      *AudioRef       `json:"audio,omitempty"`
	Structured *StructuredTurn `json:"structured,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// HasInput reports whether a user turn carries any content. A turn with
// neither text nor audio is rejected before it reaches the vendor.
func (t Turn) HasInput() bool {
	return t.Text != "" || (t.Audio != nil && t.Audio.Data != "")
}

// AudioRef references user-submitted audio: base64 payload plus mime type.
type AudioRef struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

// StructuredTurn is the decoded {correction, response} object a tutor turn
// must conform to.
type StructuredTurn struct {
	Correction Correction `json:"correction"`
	Response   Reply      `json:"response"`
}

// Correction is the tutor's grammar feedback on the user's last input.
// CorrectedText and Explanation are populated when HasMistake is true; by
// product decision missing fields are tolerated and default to empty rather
// than rejecting the turn.
type Correction struct {
	HasMistake    bool   `json:"hasMistake"`
	CorrectedText string `json:"correctedText,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
}

// Reply is the tutor's conversational response in the target language with
// bridge-language renderings.
type Reply struct {
	TargetText string `json:"targetText"`
	English    string `json:"english"`
	Chinese    string `json:"chinese"`
}
