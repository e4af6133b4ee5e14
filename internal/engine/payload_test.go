package engine

import (
	"bytes"
	"testing"

	"github.com/voiceforge/api/internal/model"
)

func baseSpec(mode model.TtsMode) *model.JobSpec {
	return &model.JobSpec{
		Mode:    mode,
		Text:    "hello world",
		VoiceID: "voice-1",
	}
}

func TestValidateSpecSpeaker(t *testing.T) {
	if err := ValidateSpec(baseSpec(model.ModeSpeaker)); err != nil {
		t.Errorf("plain speaker spec rejected: %v", err)
	}

	spec := baseSpec(model.ModeSpeaker)
	spec.EmotionFactors = map[string]float64{"happy": 0.5}
	if err := ValidateSpec(spec); err == nil {
		t.Error("speaker mode with emotionFactors should be rejected")
	}

	spec = baseSpec(model.ModeSpeaker)
	spec.EmotionAudioID = "upload-1"
	if err := ValidateSpec(spec); err == nil {
		t.Error("speaker mode with emotionAudioId should be rejected")
	}
}

func TestValidateSpecReference(t *testing.T) {
	spec := baseSpec(model.ModeReference)
	if err := ValidateSpec(spec); err == nil {
		t.Error("reference mode without emotionAudioId should be rejected")
	}

	spec.EmotionAudioID = "upload-1"
	if err := ValidateSpec(spec); err != nil {
		t.Errorf("valid reference spec rejected: %v", err)
	}

	spec.EmotionText = "joyful"
	if err := ValidateSpec(spec); err == nil {
		t.Error("reference mode with emotionText should be rejected")
	}
}

func TestValidateSpecVector(t *testing.T) {
	spec := baseSpec(model.ModeVector)
	if err := ValidateSpec(spec); err == nil {
		t.Error("vector mode without factors should be rejected")
	}

	spec.EmotionFactors = map[string]float64{"happy": 0.5, "calm": 1.0}
	if err := ValidateSpec(spec); err != nil {
		t.Errorf("valid vector spec rejected: %v", err)
	}

	spec.EmotionFactors = map[string]float64{"happy": 1.5}
	if err := ValidateSpec(spec); err == nil {
		t.Error("factor weight above 1 should be rejected")
	}

	spec.EmotionFactors = map[string]float64{"ecstatic": 0.5}
	if err := ValidateSpec(spec); err == nil {
		t.Error("unknown factor name should be rejected")
	}
}

func TestValidateSpecText(t *testing.T) {
	spec := baseSpec(model.ModeText)
	if err := ValidateSpec(spec); err == nil {
		t.Error("text mode without emotionText should be rejected")
	}

	spec.EmotionText = "like a pirate"
	if err := ValidateSpec(spec); err != nil {
		t.Errorf("valid text spec rejected: %v", err)
	}
}

func TestValidateSpecUnknownMode(t *testing.T) {
	if err := ValidateSpec(baseSpec("whisper")); err == nil {
		t.Error("unknown mode should be rejected")
	}
}

func TestValidateSpecEmotionWeightRange(t *testing.T) {
	spec := baseSpec(model.ModeReference)
	spec.EmotionAudioID = "upload-1"
	w := 1.2
	spec.EmotionWeight = &w
	if err := ValidateSpec(spec); err == nil {
		t.Error("emotionWeight above 1 should be rejected")
	}
}

func TestBuildPayloadSpeaker(t *testing.T) {
	prompt := []byte("wav-bytes")
	req := BuildPayload(baseSpec(model.ModeSpeaker), prompt, nil)

	if !bytes.Equal(req.PromptAudio, prompt) {
		t.Error("prompt audio not carried through")
	}
	if req.MaxTextTokensPerSegment != defaultMaxTextTokensPerSegment {
		t.Errorf("unexpected segment limit %d", req.MaxTextTokensPerSegment)
	}
	if req.EmotionAudio != nil || req.EmotionWeight != nil || req.EmotionFactors != nil {
		t.Error("speaker payload must not carry emotion fields")
	}
}

func TestBuildPayloadReferenceDefaultsWeight(t *testing.T) {
	spec := baseSpec(model.ModeReference)
	spec.EmotionAudioID = "upload-1"
	emotion := []byte("emotion-wav")

	req := BuildPayload(spec, []byte("prompt"), emotion)
	if !bytes.Equal(req.EmotionAudio, emotion) {
		t.Error("emotion audio not carried through")
	}
	if req.EmotionWeight == nil || *req.EmotionWeight != defaultEmotionWeight {
		t.Errorf("expected default emotion weight %v, got %v", defaultEmotionWeight, req.EmotionWeight)
	}

	w := 0.3
	spec.EmotionWeight = &w
	req = BuildPayload(spec, []byte("prompt"), emotion)
	if req.EmotionWeight == nil || *req.EmotionWeight != 0.3 {
		t.Errorf("explicit emotion weight lost: %v", req.EmotionWeight)
	}
}

func TestBuildPayloadVector(t *testing.T) {
	spec := baseSpec(model.ModeVector)
	spec.EmotionFactors = map[string]float64{"sad": 0.9}

	req := BuildPayload(spec, []byte("prompt"), nil)
	if req.EmotionFactors["sad"] != 0.9 {
		t.Error("emotion factors not carried through")
	}
	if req.EmotionRandom == nil || *req.EmotionRandom {
		t.Error("emotionRandom should default to false")
	}
}

func TestBuildPayloadText(t *testing.T) {
	spec := baseSpec(model.ModeText)
	spec.EmotionText = "very excited"
	spec.EmotionRandom = true

	req := BuildPayload(spec, []byte("prompt"), nil)
	if req.EmotionText != "very excited" {
		t.Error("emotion text not carried through")
	}
	if req.EmotionRandom == nil || !*req.EmotionRandom {
		t.Error("emotionRandom flag lost")
	}
}
