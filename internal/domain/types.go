package domain

import "time"

type SessionID string
type UserID string
type MessageID string
type FeedbackID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ExperienceLevel is the free-form seniority hint passed to the interviewer.
type ExperienceLevel string

const (
	LevelJunior ExperienceLevel = "junior"
	LevelMid    ExperienceLevel = "mid-level"
	LevelSenior ExperienceLevel = "senior"
)

// DeviceKind identifies a local capture device class.
type DeviceKind string

const (
	DeviceMicrophone DeviceKind = "microphone"
	DeviceCamera     DeviceKind = "camera"
)

// PermissionStatus is the per-device consent state.
type PermissionStatus string

const (
	PermissionUnknown PermissionStatus = "unknown"
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
)

// DenyReason classifies why device access could not be granted.
type DenyReason string

const (
	DenyNone       DenyReason = ""
	DenyUserDenied DenyReason = "user_denied"
	DenyNoDevice   DenyReason = "no_device"
	DenyDeviceBusy DenyReason = "device_busy"
	DenyUnknown    DenyReason = "unknown"
)

// Sentiment is the overall read of one answer.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type Timestamp = time.Time
