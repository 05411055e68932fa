package ai

import (
	"fmt"
	"strings"

	"resume-forge/internal/model"
)

// trimTactics is applied in order until the document fits one page.
var trimTactics = []string{
	"Shorten any bullet over 180 characters: cut subordinate clauses, remove tool names already in skills",
	"Reduce the summary to 2 sentences maximum",
	"Cut the least relevant certification",
	"Remove coursework lines from education",
	"Shorten skill category lines: remove skills least relevant to the job description",
	"If still too long, reduce to 4 bullets per job instead of 5",
}

// BuildTrimMessage asks the generator to shorten document, which compiled to
// pages pages, using the fixed ordered checklist.
func BuildTrimMessage(document string, pages int, jobDescription string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The resume you generated compiled to %d pages instead of 1. You MUST trim it to fit exactly 1 page.\n\n", pages)
	b.WriteString("Here is the LaTeX you generated:\n\n<ORIGINAL_LATEX>\n")
	b.WriteString(document)
	b.WriteString("\n</ORIGINAL_LATEX>\n\nApply these fixes in order until it fits 1 page:\n")
	for i, t := range trimTactics {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	b.WriteString("\nReturn the SAME two-block format: <LATEX>...</LATEX> and <ASSESSMENT>...</ASSESSMENT>.\n")
	b.WriteString("The assessment should be identical to your previous one unless the content changed materially; only the LaTeX changes.\n\n")
	b.WriteString("Original job description for reference:\n")
	b.WriteString(jobDescription)
	return b.String()
}

// BuildUserMessage returns the user turn for a run. Feedback turns the
// request into a regeneration.
func BuildUserMessage(jobDescription, feedback string) string {
	if strings.TrimSpace(feedback) == "" {
		return jobDescription
	}
	return "JOB_DESCRIPTION:\n" + jobDescription +
		"\n\nUSER_FEEDBACK:\n" + feedback +
		"\nPlease regenerate the resume incorporating this feedback while maintaining all honesty guardrails."
}

// BuildSystemPrompt renders the tailoring instructions around the user's
// master resume data bank.
func BuildSystemPrompt(r *model.Resume) string {
	var bank strings.Builder
	if r != nil {
		for i, s := range r.Sections {
			if i > 0 {
				bank.WriteString("\n\n")
			}
			fmt.Fprintf(&bank, "=== %s ===\n%s", s.Name, strings.Join(s.Lines, "\n"))
		}
	}

	var links strings.Builder
	titles := ""
	if r != nil {
		titles = r.TitlesHeld
		for _, l := range r.Contact.Links {
			fmt.Fprintf(&links, "- %s: \\href{%s}{%s}\n", l.Kind, l.URL, l.Label)
		}
	}

	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n---\n\nMASTER RESUME DATA BANK\n========================\n\n")
	b.WriteString("The following data is the ONLY source of truth. Every section that adds value for the target job MUST be used.\n\n")
	b.WriteString(bank.String())
	fmt.Fprintf(&b, "\n\nTITLES ACTUALLY HELD: %s\n", titles)
	if links.Len() > 0 {
		b.WriteString("\nPROFILE LINKS (use these exact hyperlinks in the contact line):\n")
		b.WriteString(links.String())
	}
	b.WriteString("\n---\n")
	b.WriteString(promptRules)
	b.WriteString(promptPreamble)
	return b.String()
}

const promptHeader = `You are a resume tailoring engine. You receive a job description and produce two outputs:

1. Complete LaTeX source code for a tailored 1-page resume
2. A structured assessment in JSON format

Return BOTH outputs in every response, formatted exactly as:

<LATEX>
[complete .tex file; must compile with pdflatex to exactly 1 page]
</LATEX>

<ASSESSMENT>
{
  "fit_level": "STRONG|MODERATE|WEAK",
  "required_match_pct": number,
  "preferred_match_pct": number,
  "required_skills": [{"skill": "name", "status": "matched|coursework|missing", "backing": "evidence or null"}],
  "preferred_skills": [{"skill": "name", "status": "matched|coursework|missing|partial", "backing": "evidence or null"}],
  "gaps": ["honest gap descriptions"],
  "strengths": ["2-3 top selling points for this role"],
  "interview_risks": ["areas that will get probed hardest"],
  "recommendation": "Apply / Apply but expect low response / Skip",
  "title_mismatch": boolean,
  "experience_gap": boolean,
  "selected_bullets": {"job_0": ["B1", "B3", "B5", "B7", "B2"]}
}
</ASSESSMENT>
`

const promptRules = `
TAILORING RULES (NON-NEGOTIABLE)
================================

- Evaluate fit strictly on the data bank. Never assume skills that are not listed.
- Subtitle: actual titles held only, formatted "Primary Title | Secondary Title".
- Summary: honest title framing plus experience duration; at most 2 sentences and 350 characters.
- Metrics: write improvements as "from X to Y". No bare percentages unless the bank only has a percentage. No vague qualifiers.
- Skills: at most 5 categories, first one "Languages". Each line under 150 characters.
- Bullets: exactly 5 per job, each under 190 characters. Priority: job keyword match, then quantitative metrics, then technical depth.
- Bold only "from X to Y" metrics and key scope phrases with \textbf{...}; balance every brace.
- Escape LaTeX special characters in content: & $ % _ { }.
- Always include patents and publications when present, each in its own section, one line per entry.
- Certifications: at most 3, one short line each. No coursework unless the role is research.
- Honesty: no fabrication, no metric distortion, no title or skill inflation.

PAGE BUDGET: about 62 rendered lines on US Letter. You cannot see the compiled PDF, so when in doubt, trim shorter.
`

const promptPreamble = `
LATEX TEMPLATE (pdflatex, 10pt, helvet, 1 page):

\documentclass[letterpaper,10pt]{article}
\usepackage[T1]{fontenc}
\usepackage[scaled=0.92]{helvet}
\renewcommand{\familydefault}{\sfdefault}
\usepackage[margin=0.65in, top=0.32in, bottom=0.25in]{geometry}
\usepackage{enumitem}
\usepackage{titlesec}
\usepackage[dvipsnames]{xcolor}
\usepackage{hyperref}
\usepackage{tabularx}
\usepackage{microtype}
\hypersetup{colorlinks=true,pdfborder={0 0 0}}
\titleformat{\section}{\large\bfseries}{}{0em}{}[\titlerule]
\titlespacing{\section}{0pt}{8pt}{4pt}
\setlist[itemize]{leftmargin=0.24in,itemsep=1pt,parsep=0pt,topsep=2pt}
\pagestyle{empty}
\setlength{\parindent}{0pt}

RESPONSE FORMAT:
Return EXACTLY two blocks: <LATEX>...</LATEX> and <ASSESSMENT>...</ASSESSMENT>. No other text.
`
