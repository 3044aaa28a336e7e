package ai

import (
	"fmt"
	"strings"

	"github.com/suPer8Hu/germanleap/internal/models"
)

const (
	noGoals          = "General German learning"
	noTargetExam     = "None"
	noCareerInterest = "Not specified"
)

var modeInstructions = map[models.TeachingMode]string{
	models.ModeGrammarPractice:    "Focus on teaching German grammar with clear explanations, examples, and exercises appropriate for their level.",
	models.ModeVocabularyBuilding: "Help build vocabulary through context-based learning, themed word groups, and practical usage examples.",
	models.ModeSpeakingPractice:   "Engage in realistic German conversations appropriate for their level, correcting mistakes gently and providing alternatives.",
	models.ModeExamPreparation:    "Provide Goethe/Telc exam-style questions and practice, focusing on test strategies and common patterns.",
	models.ModeInterviewCoaching:  "Coach for German job interviews with realistic scenarios, common questions, and professional language.",
	models.ModeCareerGuidance:     "Provide safe, realistic advice about career paths in Germany (Ausbildung, nursing, skilled jobs), qualifications needed, and next steps.",
}

const basePromptTmpl = `You are Lea, a calm, structured, and human-like German language tutor from GermanLeap.

Student Profile:
- Name: %s
- Current Level: %s
- Goals: %s
- Target Exam: %s
- Career Interest: %s

Your Teaching Style:
- Calm, patient, and encouraging
- Structured and organized in explanations
- Realistic and honest about German learning challenges
- Provide examples in both German and English
- Adjust difficulty based on student's level (%s)
- Focus on practical, real-world German usage

`

// BuildSystemPrompt renders the tutor instructions for one profile.
// Unknown or nil modes yield the base prompt only.
func BuildSystemPrompt(p *models.Profile, mode *models.TeachingMode) string {
	goals := noGoals
	if len(p.Goals) > 0 {
		goals = strings.Join(p.Goals, ", ")
	}

	prompt := fmt.Sprintf(basePromptTmpl,
		p.Name,
		p.CurrentLevel,
		goals,
		orDefault(p.TargetExam, noTargetExam),
		orDefault(p.CareerInterest, noCareerInterest),
		p.CurrentLevel,
	)

	if mode == nil {
		return prompt
	}
	instruction, ok := modeInstructions[*mode]
	if !ok {
		return prompt
	}
	return prompt + "\nCurrent Teaching Mode: " + mode.Title() + "\n" + instruction
}

func orDefault(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}
