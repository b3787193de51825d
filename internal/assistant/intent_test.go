package assistant

import "testing"

func TestDetectIntent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		message string
		want    Intent
	}{
		{
			name:    "plain conceptual question",
			message: "Can you explain how photosynthesis works?",
			want:    Intent{},
		},
		{
			name:    "video words",
			message: "Is there a video I can watch about cell division?",
			want:    Intent{WantsVideo: true},
		},
		{
			name:    "image words",
			message: "Do you have a diagram of the water cycle?",
			want:    Intent{WantsImages: true},
		},
		{
			name:    "what does it look like",
			message: "What does a mitochondrion actually look like?",
			want:    Intent{WantsImages: true},
		},
		{
			name:    "freshness words",
			message: "What's the latest news on the Artemis program?",
			want:    Intent{WantsWeb: true},
		},
		{
			name:    "show me pictures",
			message: "show me some pictures of the Colosseum",
			want:    Intent{WantsImages: true},
		},
		{
			name:    "show me a clip",
			message: "Show me a clip of the moon landing",
			want:    Intent{WantsVideo: true},
		},
		{
			name:    "release year pattern",
			message: "Is the sequel coming out in 2026?",
			want:    Intent{WantsWeb: true},
		},
		{
			name:    "flags stack",
			message: "Find the latest pictures and videos of the eclipse",
			want:    Intent{WantsWeb: true, WantsImages: true, WantsVideo: true},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := DetectIntent(tc.message)
			if got != tc.want {
				t.Fatalf("DetectIntent(%q) = %+v, want %+v", tc.message, got, tc.want)
			}
		})
	}
}
