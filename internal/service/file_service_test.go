package service

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/voiceforge/api/internal/client"
)

// makeWAV builds a minimal PCM WAV file with the given byte rate and data
// length.
func makeWAV(byteRate uint32, dataLen int) []byte {
	data := make([]byte, dataLen)
	buf := make([]byte, 0, 44+dataLen)

	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataLen))
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, 1) // mono
	buf = binary.LittleEndian.AppendUint32(buf, byteRate/2)
	buf = binary.LittleEndian.AppendUint32(buf, byteRate)
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint16(buf, 16)

	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataLen))
	buf = append(buf, data...)
	return buf
}

func TestWavDuration(t *testing.T) {
	// 44100 Hz, 16-bit mono = 88200 bytes/s; 2 seconds of samples.
	audio := makeWAV(88200, 176400)
	if d := wavDuration(audio); math.Abs(d-2.0) > 0.001 {
		t.Errorf("duration %v, want 2.0", d)
	}
}

func TestWavDurationInvalidInput(t *testing.T) {
	if d := wavDuration([]byte("not a wav file at all, just text")); d != 0 {
		t.Errorf("expected 0 for garbage input, got %v", d)
	}
	if d := wavDuration(nil); d != 0 {
		t.Errorf("expected 0 for nil input, got %v", d)
	}
}

func TestSaveAndReadResult(t *testing.T) {
	storage, err := client.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	files := NewFileService(storage)
	ctx := context.Background()

	audio := makeWAV(88200, 88200)
	result, err := files.SaveResult(ctx, "job-1", audio)
	if err != nil {
		t.Fatalf("save result: %v", err)
	}
	if result.AudioID != "job-1" || result.AudioURL != "/api/audio/job-1" || result.Format != "wav" {
		t.Errorf("unexpected result: %+v", result)
	}
	if math.Abs(result.DurationSeconds-1.0) > 0.001 {
		t.Errorf("duration %v, want 1.0", result.DurationSeconds)
	}

	got, err := files.ReadResult(ctx, "job-1")
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if len(got) != len(audio) {
		t.Errorf("result bytes mismatch: %d vs %d", len(got), len(audio))
	}
}
