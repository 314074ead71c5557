package deepgram

import "testing"

func TestParseLiveMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		payload   string
		wantText  string
		wantFinal bool
		wantOK    bool
	}{
		{
			name:    "interim hypothesis ignored",
			payload: `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"book an app","confidence":0.61}]}}`,
			wantOK:  false,
		},
		{
			name:      "finalized segment",
			payload:   `{"type":"Results","is_final":true,"speech_final":false,"channel":{"alternatives":[{"transcript":"book an appointment","confidence":0.93}]}}`,
			wantText:  "book an appointment",
			wantFinal: false,
			wantOK:    true,
		},
		{
			name:      "end of utterance",
			payload:   `{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"for tomorrow","confidence":0.97}]}}`,
			wantText:  "for tomorrow",
			wantFinal: true,
			wantOK:    true,
		},
		{
			name:      "empty speech-final flushes the utterance",
			payload:   `{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`,
			wantText:  "",
			wantFinal: true,
			wantOK:    true,
		},
		{
			name:    "control message",
			payload: `{"type":"Metadata","request_id":"abc"}`,
			wantOK:  false,
		},
		{
			name:    "garbage",
			payload: `not json`,
			wantOK:  false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			text, _, final, ok := parseLiveMessage([]byte(tc.payload))
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if text != tc.wantText {
				t.Errorf("text = %q, want %q", text, tc.wantText)
			}
			if final != tc.wantFinal {
				t.Errorf("final = %v, want %v", final, tc.wantFinal)
			}
		})
	}
}
