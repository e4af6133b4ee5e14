package engine

import (
	"fmt"

	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/model"
)

// Engine-side defaults mirrored from the downstream API.
const (
	defaultMaxTextTokensPerSegment = 120
	defaultEmotionWeight           = 0.8
)

// Emotion factor names the downstream engine understands.
var emotionFactorNames = map[string]bool{
	"happy":       true,
	"angry":       true,
	"sad":         true,
	"afraid":      true,
	"disgusted":   true,
	"melancholic": true,
	"surprised":   true,
	"calm":        true,
}

// ValidationError rejects a submission before it ever enters the queue.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ValidateSpec checks the mode/parameter-group pairing: exactly one group
// may be populated, and it must match the declared mode.
func ValidateSpec(spec *model.JobSpec) error {
	switch spec.Mode {
	case model.ModeSpeaker:
		if spec.EmotionAudioID != "" {
			return validationErrorf("emotionAudioId must not be provided for speaker mode")
		}
		if len(spec.EmotionFactors) > 0 {
			return validationErrorf("emotionFactors must not be provided for speaker mode")
		}
		if spec.EmotionText != "" {
			return validationErrorf("emotionText must not be provided for speaker mode")
		}
	case model.ModeReference:
		if spec.EmotionAudioID == "" {
			return validationErrorf("emotionAudioId is required for reference mode")
		}
		if len(spec.EmotionFactors) > 0 {
			return validationErrorf("emotionFactors must not be provided for reference mode")
		}
		if spec.EmotionText != "" {
			return validationErrorf("emotionText must not be provided for reference mode")
		}
	case model.ModeVector:
		if len(spec.EmotionFactors) == 0 {
			return validationErrorf("emotionFactors is required for vector mode")
		}
		if spec.EmotionAudioID != "" {
			return validationErrorf("emotionAudioId must not be provided for vector mode")
		}
		if spec.EmotionText != "" {
			return validationErrorf("emotionText must not be provided for vector mode")
		}
		for name, weight := range spec.EmotionFactors {
			if !emotionFactorNames[name] {
				return validationErrorf("unknown emotion factor %q", name)
			}
			if weight < 0 || weight > 1 {
				return validationErrorf("emotion factor %q out of range [0,1]", name)
			}
		}
	case model.ModeText:
		if spec.EmotionText == "" {
			return validationErrorf("emotionText is required for text mode")
		}
		if spec.EmotionAudioID != "" {
			return validationErrorf("emotionAudioId must not be provided for text mode")
		}
		if len(spec.EmotionFactors) > 0 {
			return validationErrorf("emotionFactors must not be provided for text mode")
		}
	default:
		return validationErrorf("unsupported mode %q", spec.Mode)
	}

	if spec.EmotionWeight != nil && (*spec.EmotionWeight < 0 || *spec.EmotionWeight > 1) {
		return validationErrorf("emotionWeight out of range [0,1]")
	}
	return nil
}

// BuildPayload assembles the mode-specific dispatch payload from a job spec
// and the resolved audio bytes. Pure function, no side effects. emotionAudio
// is only consulted for reference mode.
func BuildPayload(spec *model.JobSpec, promptAudio, emotionAudio []byte) *client.SynthesisRequest {
	req := &client.SynthesisRequest{
		Mode:                    spec.Mode,
		Text:                    spec.Text,
		PromptAudio:             promptAudio,
		MaxTextTokensPerSegment: defaultMaxTextTokensPerSegment,
		GenerationArgs:          spec.GenerationArgs,
	}

	switch spec.Mode {
	case model.ModeReference:
		weight := defaultEmotionWeight
		if spec.EmotionWeight != nil {
			weight = *spec.EmotionWeight
		}
		req.EmotionAudio = emotionAudio
		req.EmotionWeight = &weight
	case model.ModeVector:
		req.EmotionFactors = spec.EmotionFactors
		random := spec.EmotionRandom
		req.EmotionRandom = &random
	case model.ModeText:
		req.EmotionText = spec.EmotionText
		random := spec.EmotionRandom
		req.EmotionRandom = &random
	}
	return req
}
