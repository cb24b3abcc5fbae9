package adjudication

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/manthanabc/EDAI-5/internal/evidence"
	"github.com/manthanabc/EDAI-5/internal/extract"
	"github.com/manthanabc/EDAI-5/internal/model"
)

const noResponse = "No response provided."

const normalizeSystem = `You are an AI Case Analyst. Read the raw statements from the Claimant and the Respondent and restate them as structured arguments.`

const normalizeUser = `Case Title: %s

Claimant's Description:
%s

Respondent's Response:
%s

Evidence Files (Metadata):
%s

Task:
1. Extract each distinct argument or claim made by the Claimant.
2. Extract each distinct argument or counter-claim made by the Respondent.
3. For every argument, note any supporting evidence that is mentioned or uploaded.
4. If the attached images show evidence, describe it briefly in the "evidence" field.
5. Rephrase everything in clear, professional language.

Respond with JSON only, in this format:
{
  "claimantArguments": [
    {"claim": "Claim statement...", "evidence": "Reference to evidence or 'None'"}
  ],
  "respondentArguments": [
    {"claim": "Counter-claim statement...", "evidence": "Reference to evidence or 'None'"}
  ]
}`

const verdictSystem = `You are an AI Arbitrator. Decide the dispute using the rule context, the case details, and any attached visual evidence.

Context (Legal Guidelines & RAG Retrieval):
%s

Task:
1. Analyze the case against the guidelines and the normalized arguments.
2. Examine the attached images, if any, as evidence.
3. Give a clear verdict in favor of the Claimant or the Respondent.
4. Give detailed reasoning.
5. Cite the specific rules from the guidelines that support the decision.

Respond with JSON only, in this format:
{
  "content": "Verdict statement...",
  "reasoning": "Detailed reasoning...",
  "citations": ["Rule 1.1: Fairness", "Rule 2.2: Performance"]
}`

const verdictUser = `Case Details:
Title: %s

Normalized Analysis:
Claimant Arguments: %s
Respondent Arguments: %s

Original Description (Claimant): %s
Original Response (Respondent): %s

Evidence Files (Metadata):
%s`

const biasPrompt = `You are an AI Bias Auditor. Check the verdict and reasoning below for logical fallacies and bias.

Verdict: %s
Reasoning: %s

Task:
1. Identify any logical fallacies (for example ad hominem or straw man).
2. Check for bias against either party.
3. Decide whether the verdict follows soundly from the reasoning given.

Respond with JSON only, in this format:
{
  "passed": true,
  "reasoning": "Explanation of the check..."
}`

var (
	analysisSchema = extract.MustCompileSchema(`{
  "type": "object",
  "properties": {
    "claimantArguments": {"type": "array", "items": {"$ref": "#/$defs/argument"}},
    "respondentArguments": {"type": "array", "items": {"$ref": "#/$defs/argument"}}
  },
  "$defs": {
    "argument": {
      "type": "object",
      "properties": {
        "claim": {"type": "string"},
        "evidence": {"type": ["string", "null"]}
      },
      "required": ["claim"]
    }
  }
}`)

	verdictSchema = extract.MustCompileSchema(`{
  "type": "object",
  "properties": {
    "content": {"type": "string"},
    "reasoning": {"type": "string"},
    "citations": {"type": ["array", "null"], "items": {"type": "string"}}
  },
  "required": ["content"]
}`)

	biasSchema = extract.MustCompileSchema(`{
  "type": "object",
  "properties": {
    "passed": {"type": "boolean"},
    "reasoning": {"type": "string"}
  },
  "required": ["passed"]
}`)
)

func respondentText(snap model.CaseSnapshot) string {
	if strings.TrimSpace(snap.RespondentDescription) == "" {
		return noResponse
	}
	return snap.RespondentDescription
}

func normalizePrompt(snap model.CaseSnapshot) string {
	return fmt.Sprintf(normalizeUser,
		snap.Title,
		snap.ClaimantDescription,
		respondentText(snap),
		evidence.Listing(snap.Documents),
	)
}

func verdictPrompt(snap model.CaseSnapshot, analysis model.NormalizedAnalysis) string {
	return fmt.Sprintf(verdictUser,
		snap.Title,
		argumentsJSON(analysis.ClaimantArguments),
		argumentsJSON(analysis.RespondentArguments),
		snap.ClaimantDescription,
		respondentText(snap),
		evidence.Listing(snap.Documents),
	)
}

func argumentsJSON(args []model.Argument) string {
	if args == nil {
		args = []model.Argument{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// retrievalQuery is the text the reference passages are ranked against.
func retrievalQuery(snap model.CaseSnapshot) string {
	return snap.ClaimantDescription + " " + snap.RespondentDescription
}
