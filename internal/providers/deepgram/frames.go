package deepgram

import (
	"encoding/json"
	"errors"
	"strings"

	"smartnotes/internal/domain"
)

type frameKind int

const (
	frameTranscript frameKind = iota
	frameSkip
	frameError
	frameUndecodable
)

// listenFrame covers the Results and Error messages of the listen socket.
type listenFrame struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (f listenFrame) failure() error {
	for _, text := range []string{f.Description, f.Message} {
		if text = strings.TrimSpace(text); text != "" {
			return errors.New(text)
		}
	}
	return errors.New("deepgram returned an unknown error")
}

// decodeFrame turns one listen frame into a transcript event. Metadata,
// SpeechStarted and UtteranceEnd frames carry no text and are skipped, as are
// empty interims; an empty final still closes the utterance.
func decodeFrame(payload []byte) (domain.TranscriptEvent, frameKind, error) {
	var frame listenFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return domain.TranscriptEvent{}, frameUndecodable, err
	}

	switch {
	case strings.EqualFold(frame.Type, "Error"):
		return domain.TranscriptEvent{}, frameError, frame.failure()
	case frame.Type != "" && !strings.EqualFold(frame.Type, "Results"):
		return domain.TranscriptEvent{}, frameSkip, nil
	case len(frame.Channel.Alternatives) == 0:
		return domain.TranscriptEvent{}, frameSkip, nil
	}

	best := frame.Channel.Alternatives[0]
	event := domain.TranscriptEvent{
		Kind:          domain.TranscriptKindPartial,
		Text:          strings.TrimSpace(best.Transcript),
		IsSpeechFinal: frame.SpeechFinal,
		Confidence:    best.Confidence,
	}
	if frame.IsFinal {
		event.Kind = domain.TranscriptKindFinal
	} else if event.Text == "" {
		return domain.TranscriptEvent{}, frameSkip, nil
	}
	return event, frameTranscript, nil
}
