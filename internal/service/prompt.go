package service

import (
	"fmt"
	"strings"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
)

// reviewInstructions is the scoring contract sent to the model. The model
// must answer with strict JSON matching the document parsed in
// parseModelReview.
const reviewInstructions = `You are a content-safety reviewer for a family video platform.
Score the video on each of these nine axes from 0 (absent) to 10 (dominant):

- profanity: insults, swearing, crude language
- music: musical content of any kind
- mixedGender: mixed-gender interaction or immodest dress
- sexualInnuendo: sexual references or innuendo
- drugs: drugs, alcohol or smoking
- violence: violence, threats, frightening content
- mockingReligion: mockery or disrespect of religion
- gambling: gambling or games of chance
- sensitiveIdeas: ideologically sensitive themes for children

Respond ONLY with JSON, no prose and no code fences:
{
  "scores": {"profanity": 0, "music": 0, "mixedGender": 0, "sexualInnuendo": 0, "drugs": 0, "violence": 0, "mockingReligion": 0, "gambling": 0, "sensitiveIdeas": 0},
  "evidence": [{"axisKey": "profanity", "note": "what was observed", "approximateOffsetMs": 12000}],
  "summary": "one short paragraph describing the content"
}

Evidence notes must be specific and at most 500 characters. Include
approximateOffsetMs only when you can estimate where in the audio the
observation occurred; omit it otherwise.`

// BuildReviewPrompt assembles the full prompt for one video. When no audio
// could be obtained the model is asked to score from the metadata alone,
// with the same output contract.
func BuildReviewPrompt(title, description string, hasAudio bool) string {
	var sb strings.Builder
	sb.WriteString(reviewInstructions)
	sb.WriteString("\n\nVideo title: ")
	sb.WriteString(title)
	if description != "" {
		sb.WriteString("\nVideo description: ")
		sb.WriteString(truncate(description, 2000))
	}
	if hasAudio {
		sb.WriteString("\n\nThe full audio track is attached. Base your scores primarily on the audio.")
	} else {
		sb.WriteString("\n\nNo audio is available. Score from the title and description only, conservatively.")
	}
	return sb.String()
}

// axisList is a helper for log lines summarizing nonzero axes.
func axisList(scores model.AxisScores) string {
	var parts []string
	for _, k := range model.AxisKeys {
		if v := scores[k]; v > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, v))
		}
	}
	if len(parts) == 0 {
		return "clean"
	}
	return strings.Join(parts, " ")
}
