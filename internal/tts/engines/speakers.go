package engines

import (
	"fmt"
	"strconv"

	"github.com/miovo/miovo/internal/ttypes"
)

// Speaker is a backend speaker as listed by /speakers. Engines differ in
// which fields they fill: AivisSpeech returns uuid plus styles, simpler
// gateways return a bare speaker_id.
type Speaker struct {
	Name        string  `json:"name"`
	SpeakerUUID string  `json:"speaker_uuid,omitempty"`
	SpeakerID   *int    `json:"speaker_id,omitempty"`
	Styles      []Style `json:"styles,omitempty"`
}

// Style is one voice of a speaker; its ID is what synthesis expects.
type Style struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
	Type string `json:"type,omitempty"`
}

// FlattenSpeakers turns speakers into one selectable voice per style.
// A speaker without styles becomes a single voice.
func FlattenSpeakers(speakers []Speaker) []ttypes.Voice {
	var voices []ttypes.Voice
	for _, sp := range speakers {
		if len(sp.Styles) == 0 {
			id := 0
			if sp.SpeakerID != nil {
				id = *sp.SpeakerID
			}
			name := sp.Name
			if name == "" {
				name = fmt.Sprintf("Speaker %d", id)
			}
			voices = append(voices, ttypes.Voice{
				ID:        fmt.Sprintf("speaker-%d", id),
				Name:      name,
				SpeakerID: id,
			})
			continue
		}

		prefix := "speaker"
		switch {
		case sp.SpeakerUUID != "":
			prefix = sp.SpeakerUUID
		case sp.SpeakerID != nil && *sp.SpeakerID != 0:
			prefix = strconv.Itoa(*sp.SpeakerID)
		}
		for _, st := range sp.Styles {
			voices = append(voices, ttypes.Voice{
				ID:        fmt.Sprintf("%s-%d", prefix, st.ID),
				Name:      fmt.Sprintf("%s (%s)", sp.Name, st.Name),
				SpeakerID: st.ID,
			})
		}
	}
	return voices
}
